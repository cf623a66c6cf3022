package watcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
)

// DaemonChildFlag is passed to the re-executed binary to run the watcher in
// the foreground of the detached process.
const DaemonChildFlag = "--daemon-child"

// StartDaemon re-executes the current binary as a detached `watch`
// process, writes its PID to pidFile and sends its output to logFile.
// extraArgs are appended to the child's command line.
func (w *Watcher) StartDaemon(pidFile, logFile string, extraArgs ...string) error {
	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon already running (PID file: %s)", pidFile)
	}

	logF, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logF.Close()

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := append([]string{"watch", DaemonChildFlag}, extraArgs...)
	cmd := exec.Command(executable, args...)
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon process: %w", err)
	}

	if err := writePID(pidFile, cmd.Process.Pid); err != nil {
		cmd.Process.Kill()
		return err
	}

	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("failed to release process: %w", err)
	}
	return nil
}

// RunDaemon runs the watcher until ctx is done or SIGTERM/SIGINT arrives,
// then removes pidFile.
func (w *Watcher) RunDaemon(ctx context.Context, pidFile string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	<-ctx.Done()
	w.logger.Info("shutting down")

	if err := w.Stop(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}

	if pidFile != "" {
		if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove PID file: %w", err)
		}
	}
	return nil
}

// StopDaemon sends SIGTERM to the daemon recorded in pidFile.
func StopDaemon(pidFile string) error {
	pid, err := readPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon not running (PID file not found)")
		}
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM to process %d: %w", pid, err)
	}
	return nil
}

// IsDaemonRunning reports whether the process in pidFile is alive. A stale
// PID file is removed.
func IsDaemonRunning(pidFile string) (bool, error) {
	pid, err := readPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		if _, ok := err.(*strconv.NumError); ok {
			return false, nil
		}
		return false, err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}
	// Signal 0 probes for existence without delivering anything.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		os.Remove(pidFile)
		return false, nil
	}
	return true, nil
}

func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

func writePID(pidFile string, pid int) error {
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}
