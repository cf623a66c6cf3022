package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/c9install/internal/installer"
	"github.com/blackwell-systems/c9install/internal/manifest"
	"github.com/blackwell-systems/c9install/internal/output"
)

var (
	reinstallVerbose bool

	reinstallCmd = &cobra.Command{
		Use:   "reinstall <package>",
		Short: "Install a package again",
		Long: `Run a package's install session again, even if the installed record already
holds its manifest version. Optional tasks run as the manifest selects them.`,
		Example: `  c9install reinstall "Cloud9 IDE"`,
		Args:    cobra.ExactArgs(1),
		RunE:    runReinstall,
	}
)

func init() {
	reinstallCmd.Flags().BoolVarP(&reinstallVerbose, "verbose", "v", false, "show task output")
}

func runReinstall(cmd *cobra.Command, args []string) error {
	name := args[0]

	a, err := newAppContext()
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := manifest.Load(a.cfg.Manifest)
	if err != nil {
		return err
	}
	pkg, ok := m.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", manifest.ErrUnknownPackage, name)
	}

	if err := a.loadRecord(); err != nil {
		return err
	}
	f, err := a.newFactory(true)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	f.Subscribe(output.NewReporter(out, reinstallVerbose || a.cfg.Verbose).Handle)

	ctx := commandContext(cmd.Context())
	s, err := f.CreateSession(ctx, pkg.Request())
	if err != nil {
		return err
	}
	if s == nil {
		// Installed already: the request is registered, so ask for it again.
		if _, err := f.Reinstall(ctx, name); err != nil {
			return err
		}
		if s, ok = f.Lookup(name); !ok {
			return fmt.Errorf("failed to create session for %s", name)
		}
	}
	if err := prepare(ctx, s); err != nil {
		return err
	}

	engine := f.Engine()
	stop := abortOnInterrupt(engine, a.logger)
	defer stop()

	res, err := engine.Run(ctx, []*installer.Session{s})
	return report(out, cmd.ErrOrStderr(), res, err)
}
