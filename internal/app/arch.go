package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/c9install/internal/arch"
)

var archCmd = &cobra.Command{
	Use:   "arch",
	Short: "Print the host architecture tag",
	Long: `Probe the host architecture and print the tag package tasks are selected
by: x64 or x86. ARM hosts report x86.`,
	Example: `  c9install arch`,
	RunE:    runArch,
}

func runArch(cmd *cobra.Command, args []string) error {
	_, logger, err := loadConfig()
	if err != nil {
		return err
	}

	d := arch.New(newProber(), logger)
	defer d.Close()

	ctx, cancel := context.WithTimeout(commandContext(cmd.Context()), 10*time.Second)
	defer cancel()

	tag, err := d.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to detect architecture: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tag)
	return nil
}
