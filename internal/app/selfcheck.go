package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/c9install/internal/installer"
	"github.com/blackwell-systems/c9install/internal/manifest"
	"github.com/blackwell-systems/c9install/internal/output"
)

var (
	selfcheckPackage string
	selfcheckTimeout time.Duration

	selfcheckCmd = &cobra.Command{
		Use:   "selfcheck",
		Short: "Install the core package before first use",
		Long: `Load the installed record and install the core package if it is missing or
out of date. Tools that must not start before the core package is in place run
this first; it exits non-zero if the install fails.

The core package is the first one in the manifest unless --package is given.
With auto_start disabled in the config, the install is started explicitly
once the package is populated.`,
		Example: `  c9install selfcheck && c9 open .`,
		RunE:    runSelfcheck,
	}
)

func init() {
	selfcheckCmd.Flags().StringVar(&selfcheckPackage, "package", "", "core package name (default: first manifest package)")
	selfcheckCmd.Flags().DurationVar(&selfcheckTimeout, "timeout", 30*time.Minute, "give up after this long")
}

func runSelfcheck(cmd *cobra.Command, args []string) error {
	a, err := newAppContext()
	if err != nil {
		return err
	}
	defer a.Close()

	pkg, err := corePackage(a.cfg.Manifest, selfcheckPackage)
	if err != nil {
		return err
	}

	f, err := a.newFactory(!a.cfg.AutoStart)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	f.Subscribe(output.NewReporter(out, a.cfg.Verbose).Handle)

	b := &installer.Bootstrap{
		Factory: f,
		Load:    a.loadRecord,
		Request: pkg.Request(),
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd.Context()), selfcheckTimeout)
	defer cancel()

	installedCore := false
	if err := b.BeforeConnect(ctx, func(installed bool) { installedCore = installed }); err != nil {
		return err
	}
	if installedCore {
		fmt.Fprintf(out, "Ready (installed %s %d)\n", pkg.Name, pkg.Version)
		return nil
	}
	fmt.Fprintln(out, "Ready")
	return nil
}

// corePackage loads the manifest at path and returns the package named
// name, or the first package when name is empty.
func corePackage(path, name string) (*manifest.Package, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		names := m.Names()
		if len(names) == 0 {
			return nil, fmt.Errorf("manifest %s lists no packages", path)
		}
		name = names[0]
	}
	pkg, ok := m.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", manifest.ErrUnknownPackage, name)
	}
	return pkg, nil
}
