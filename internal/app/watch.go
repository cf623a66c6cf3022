package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/c9install/internal/installed"
	"github.com/blackwell-systems/c9install/internal/installer"
	"github.com/blackwell-systems/c9install/internal/manifest"
	"github.com/blackwell-systems/c9install/internal/output"
	"github.com/blackwell-systems/c9install/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchPackage     string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Keep the core package installed as the record changes",
		Long: `Watch the installed record and reload it whenever another process or an
editor changes it. If the record no longer lists the core package at its
manifest version (the file was removed, or the entry dropped or rolled back),
the core package is installed again.

The core package is the first one in the manifest unless --package is given.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as a detached background process
  • Stop: Stop a running daemon

Changes that arrive close together are folded into a single reload.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  c9install watch

  # Keep a specific package installed
  c9install watch --package Collab

  # Run as background daemon
  c9install watch --daemon

  # Stop running daemon
  c9install watch --stop

  # Use custom PID and log files
  c9install watch --daemon --pid-file /tmp/watch.pid --log-file /tmp/watch.log`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: <dir>/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: <dir>/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().StringVar(&watchPackage, "package", "", "core package name (default: first manifest package)")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newAppContext()
	if err != nil {
		return err
	}
	defer a.Close()

	if watchPIDFile == "" {
		watchPIDFile = a.cfg.PIDFile
	}
	if watchLogFile == "" {
		watchLogFile = a.cfg.LogFile
	}

	out := cmd.OutOrStdout()

	if watchStop {
		return stopWatchDaemon(out)
	}

	pkg, err := corePackage(a.cfg.Manifest, watchPackage)
	if err != nil {
		return err
	}
	if err := a.loadRecord(); err != nil {
		a.logger.Warn("installed record unreadable", "path", a.cfg.Record, "error", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd.Context()), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	w, err := newRecordWatcher(ctx, a, pkg)
	if err != nil {
		return err
	}

	if watchDaemon {
		return startWatchDaemon(out, w, a.cfg.Dir)
	}

	if watchDaemonChild {
		return w.RunDaemon(ctx, watchPIDFile)
	}

	return runWatchForeground(ctx, out, w)
}

// newRecordWatcher watches the shared installed record and reinstalls pkg
// whenever a reload shows it missing. The record must already be loaded.
func newRecordWatcher(ctx context.Context, a *appContext, pkg *manifest.Package) (*watcher.Watcher, error) {
	f, err := a.newFactory(!a.cfg.AutoStart)
	if err != nil {
		return nil, err
	}
	k := &coreKeeper{
		ctx:    ctx,
		record: a.record,
		logger: a.logger.WithPrefix("watch"),
		bootstrap: &installer.Bootstrap{
			Factory: f,
			Load:    a.loadRecord,
			Request: pkg.Request(),
		},
	}

	w, err := watcher.New(a.record, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w.OnReload = k.onReload
	return w, nil
}

// coreKeeper reruns the first-boot self check when the record stops
// listing the core package at its current version.
type coreKeeper struct {
	ctx       context.Context
	record    *installed.Store
	bootstrap *installer.Bootstrap
	logger    *log.Logger
}

func (k *coreKeeper) onReload(_ installed.Record, err error) {
	if err != nil && !errors.Is(err, installed.ErrRecordMissing) {
		// The store keeps the previous record on read errors.
		return
	}

	req := k.bootstrap.Request
	if k.record.IsInstalled(req.Name, req.Version) {
		return
	}
	k.logger.Info("core package missing from installed record, reinstalling", "package", req.Name, "version", req.Version)

	err = k.bootstrap.BeforeConnect(k.ctx, func(reinstalled bool) {
		if reinstalled {
			k.logger.Info("core package reinstalled", "package", req.Name, "version", req.Version)
		}
	})
	if err != nil {
		k.logger.Error("core package reinstall failed", "package", req.Name, "error", err)
	}
}

func stopWatchDaemon(out io.Writer) error {
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	fmt.Fprintln(out, "✓ Daemon stopped")
	return nil
}

func startWatchDaemon(out io.Writer, w *watcher.Watcher, dir string) error {
	spinner := output.NewSpinner("Starting daemon...")
	spinner.SetWriter(out)
	spinner.Start()
	args := []string{
		"--dir", dir,
		"--pid-file", watchPIDFile,
		"--log-file", watchLogFile,
	}
	if configFlag != "" {
		args = append(args, "--config", configFlag)
	}
	if watchPackage != "" {
		args = append(args, "--package", watchPackage)
	}
	err := w.StartDaemon(watchPIDFile, watchLogFile, args...)
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Fprintf(out, "✓ Record watcher started\n")
	fmt.Fprintf(out, "  PID file: %s\n", watchPIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", watchLogFile)
	fmt.Fprintf(out, "\nTo stop: c9install watch --stop\n")
	return nil
}

func runWatchForeground(ctx context.Context, out io.Writer, w *watcher.Watcher) error {
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	fmt.Fprintln(out, "Watching the installed record (press Ctrl+C to stop)...")

	<-ctx.Done()

	if err := w.Stop(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	fmt.Fprintln(out, "\nWatcher stopped")
	return nil
}
