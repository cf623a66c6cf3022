package app

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/c9install/internal/installer"
	"github.com/blackwell-systems/c9install/internal/manifest"
	"github.com/blackwell-systems/c9install/internal/output"
)

var (
	installForce   bool
	installYes     bool
	installSkip    []string
	installVerbose bool

	installCmd = &cobra.Command{
		Use:   "install [packages...]",
		Short: "Install packages from the manifest",
		Long: `Install the named packages, or every package in the manifest.

Packages whose recorded version matches the manifest are skipped unless
--force is given. The remaining packages are shown with their tasks before
anything runs; optional tasks can be left out with --skip, and a package
whose optional tasks are all skipped is not installed.

Packages run one at a time in manifest order. The first failing task stops
the run. Ctrl+C aborts the run once the current task returns.`,
		Example: `  # Install everything that is out of date
  c9install install

  # Install one package without prompting
  c9install install --yes "Cloud9 IDE"

  # Leave out an optional task
  c9install install --skip docs

  # Show task output as it runs
  c9install install --verbose`,
		RunE: runInstall,
	}
)

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "install even if the recorded version matches")
	installCmd.Flags().BoolVarP(&installYes, "yes", "y", false, "skip confirmation prompt")
	installCmd.Flags().StringSliceVar(&installSkip, "skip", nil, "optional task or package to leave out (repeatable)")
	installCmd.Flags().BoolVarP(&installVerbose, "verbose", "v", false, "show task output")
}

func runInstall(cmd *cobra.Command, args []string) error {
	a, err := newAppContext()
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := manifest.Load(a.cfg.Manifest)
	if err != nil {
		return err
	}
	reqs, err := m.Requests(args...)
	if err != nil {
		return err
	}

	if err := a.loadRecord(); err != nil {
		return err
	}
	f, err := a.newFactory(true)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	reporter := output.NewReporter(out, installVerbose || a.cfg.Verbose)
	f.Subscribe(reporter.Handle)

	ctx := commandContext(cmd.Context())
	sessions, err := createSessions(ctx, f, reqs, installForce)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprint(out, output.CompletionMessage(nil))
		return nil
	}

	if err := applySkips(sessions, installSkip); err != nil {
		abortAll(sessions)
		return err
	}

	if !installYes {
		printPlan(out, sessions)
		if !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Install %d packages? [y/N]: ", countSelected(sessions))) {
			abortAll(sessions)
			fmt.Fprintln(out, "Installation cancelled")
			return nil
		}
	}

	engine := f.Engine()
	stop := abortOnInterrupt(engine, a.logger)
	defer stop()

	reporter.TrackBatch(countSelected(sessions))
	res, err := engine.RunSelected(ctx, sessions)
	return report(out, cmd.ErrOrStderr(), res, err)
}

// createSessions creates a populated session for each request that is
// not installed yet. If one fails to populate, the others are aborted.
func createSessions(ctx context.Context, f *installer.Factory, reqs []installer.Request, force bool) ([]*installer.Session, error) {
	var sessions []*installer.Session
	for _, req := range reqs {
		req.Force = force
		s, err := f.CreateSession(ctx, req)
		if err != nil {
			abortAll(sessions)
			return nil, err
		}
		if s == nil {
			continue
		}
		sessions = append(sessions, s)
	}

	for _, s := range sessions {
		if err := prepare(ctx, s); err != nil {
			abortAll(sessions)
			return nil, err
		}
	}
	return sessions, nil
}

// applySkips deselects optional tasks by name, or every optional task of a
// package named in names. Required tasks cannot be skipped.
func applySkips(sessions []*installer.Session, names []string) error {
	for _, name := range names {
		matched := false
		for _, s := range sessions {
			if s.Package().Name == name {
				installer.SetOptional(s, false)
				matched = true
				continue
			}
			for _, t := range s.Tasks() {
				if t.Name != name {
					continue
				}
				if !t.Optional {
					return fmt.Errorf("task %q of %s is required and cannot be skipped", name, s.Package().Name)
				}
				t.Checked = installer.Unchecked
				matched = true
			}
		}
		if !matched {
			return fmt.Errorf("nothing named %q to skip", name)
		}
	}
	return nil
}

func countSelected(sessions []*installer.Session) int {
	n := 0
	for _, s := range sessions {
		if installer.PackageCheckState(s) != installer.Unchecked {
			n++
		}
	}
	return n
}

func printPlan(out io.Writer, sessions []*installer.Session) {
	for _, s := range sessions {
		if intro := s.Introduction(); intro != "" {
			fmt.Fprintf(out, "%s: %s\n", s.Package().Name, intro)
		}
	}
	fmt.Fprint(out, output.RenderSessionTable(sessions))
	fmt.Fprintln(out)
}

func abortAll(sessions []*installer.Session) {
	for _, s := range sessions {
		s.Abort()
	}
}
