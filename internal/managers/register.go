package managers

import (
	"github.com/blackwell-systems/c9install/internal/registry"
)

// Manager names.
const (
	BrewName = "brew"
	BashName = "bash"
	ExecName = "exec"
)

// Config tunes the default managers.
type Config struct {
	BrewPath string
	ExecPTY  bool
	WorkDir  string
}

// Register adds the default managers and their aliases to r.
func Register(r *registry.Registry, cfg Config) {
	brew := NewBrew()
	if cfg.BrewPath != "" {
		brew.Path = cfg.BrewPath
	}
	r.Add(BrewName, brew)
	r.Add(BashName, &Bash{Dir: cfg.WorkDir})
	r.Add(ExecName, &Exec{PTY: cfg.ExecPTY})

	r.AddAlias(BrewName, "homebrew")
	r.AddAlias(BashName, "sh", "shell")
}
