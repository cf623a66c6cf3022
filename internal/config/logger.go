package config

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger returns the application logger writing to w at the named
// level (debug, info, warn, error).
func NewLogger(level string, w io.Writer) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "c9install",
		Level:  lvl,
	}), nil
}
