package app

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/c9install/internal/installed"
	"github.com/blackwell-systems/c9install/internal/manifest"
	"github.com/blackwell-systems/c9install/internal/output"
	"github.com/blackwell-systems/c9install/internal/store"
	"github.com/blackwell-systems/c9install/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show installed packages and pending installs",
	Long: `Display the installed record, the last install run of each package and the
manifest packages that are not installed at their current version.

Shows:
  • Record watcher status
  • Installed record, history and manifest locations
  • Installed packages with their last run
  • Packages waiting to be installed`,
	Example: `  # Check status
  c9install status`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newAppContext()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.loadRecord(); err != nil {
		return err
	}
	rec := a.record.Snapshot()

	last := make(map[string]*store.Run, len(rec))
	for name := range rec {
		run, err := a.history.LastRun(name)
		if err != nil {
			return fmt.Errorf("failed to read install history: %w", err)
		}
		if run != nil {
			last[name] = run
		}
	}

	running, err := watcher.IsDaemonRunning(a.cfg.PIDFile)
	if err != nil {
		return fmt.Errorf("failed to check watcher status: %w", err)
	}

	out := cmd.OutOrStdout()
	const label = "%-10s"

	fmt.Fprintln(out)
	if running {
		fmt.Fprintf(out, label+"running (since %s)\n", "Watcher:", daemonSince(a.cfg.PIDFile))
	} else {
		fmt.Fprintf(out, label+"stopped  (run 'c9install watch --daemon')\n", "Watcher:")
	}
	fmt.Fprintf(out, label+"%s · %d packages\n", "Record:", a.cfg.Record, len(rec))
	fmt.Fprintf(out, label+"%s\n", "History:", a.cfg.DB)
	fmt.Fprintf(out, label+"%s\n", "Manifest:", a.cfg.Manifest)
	fmt.Fprintln(out)

	fmt.Fprint(out, output.RenderRecordTable(rec, last))

	m, err := manifest.Load(a.cfg.Manifest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	printPending(out, m, rec)
	return nil
}

func printPending(out io.Writer, m *manifest.Manifest, rec installed.Record) {
	var pending []manifest.Package
	for _, p := range m.Packages {
		if v, ok := rec[p.Name]; !ok || v != p.Version {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Pending:")
	for _, p := range pending {
		if v, ok := rec[p.Name]; ok {
			fmt.Fprintf(out, "  %s %d (installed %d)\n", p.Name, p.Version, v)
			continue
		}
		fmt.Fprintf(out, "  %s %d\n", p.Name, p.Version)
	}
	fmt.Fprintln(out, "\nRun 'c9install install' to install them.")
}

// daemonSince uses the PID file's mtime as the daemon start time.
func daemonSince(pidFile string) string {
	fi, err := os.Stat(pidFile)
	if err != nil {
		return "unknown"
	}
	return fi.ModTime().Format(time.DateTime)
}
