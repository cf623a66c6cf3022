package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	dirFlag      string
	configFlag   string
	logLevelFlag string

	// logOutput receives log lines. Tests point it at io.Discard.
	logOutput io.Writer = os.Stderr

	// RootCmd is the root command for c9install
	RootCmd = &cobra.Command{
		Use:   "c9install",
		Short: "Install and track the packages a workspace needs",
		Long: `c9install runs install sessions for the packages listed in a manifest.

Each package has a version. A package is installed when the installed record
holds that version, and is skipped on later runs until the manifest version
changes or it is reinstalled.

Packages are installed one at a time. The first failure stops the run, and
Ctrl+C aborts it between tasks.

Quick Start:
  1. Describe packages in ~/.c9/packages.yaml
  2. c9install install
  3. c9install status

Examples:
  # Show what would be installed, then install it
  c9install install

  # Install without prompting, leaving out an optional task
  c9install install --yes --skip docs

  # Install one package again
  c9install reinstall "Cloud9 IDE"

  # Show past install runs
  c9install history`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "c9install: workspace package installer")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'c9install install' to install the manifest.")
			fmt.Fprintln(out, "Run 'c9install --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "", "installer directory (default: ~/.c9)")
	RootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default: <dir>/config.toml)")
	RootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(reinstallCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(archCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(managersCmd)
	RootCmd.AddCommand(selfcheckCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
