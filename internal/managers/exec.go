package managers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"

	"github.com/blackwell-systems/c9install/internal/installer"
)

// Exec runs a command directly.
//
// Options:
//
//	command  program and arguments, as a list or a single program name
//	args     extra arguments
//	dir      working directory
//	env      extra environment variables
//	pty      run under a pseudo-terminal (overrides the manager default)
type Exec struct {
	// PTY runs commands under a pseudo-terminal by default, for installers
	// that only print progress when attached to a terminal.
	PTY bool
}

// Execute runs the task's command, streaming its output to out.
func (e *Exec) Execute(ctx context.Context, task *installer.Task, out io.Writer) error {
	argv, err := stringsOption(task, "command")
	if err != nil {
		return err
	}
	extraArgs, err := stringsOption(task, "args")
	if err != nil {
		return err
	}
	argv = append(argv, extraArgs...)
	if len(argv) == 0 {
		return errors.New("exec: no command given")
	}
	dir, err := stringOption(task, "dir")
	if err != nil {
		return err
	}
	env, err := envOption(task, "env")
	if err != nil {
		return err
	}
	usePTY := e.PTY
	if _, ok := task.Options["pty"]; ok {
		if usePTY, err = boolOption(task, "pty"); err != nil {
			return err
		}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	if usePTY {
		err = runPTY(cmd, out)
	} else {
		cmd.Stdout = out
		cmd.Stderr = out
		err = cmd.Run()
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run %s: %w", argv[0], err)
	}
	return nil
}

func runPTY(cmd *exec.Cmd, out io.Writer) error {
	f, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	// Reading the pty fails with EIO once the child has exited.
	if _, err := io.Copy(out, f); err != nil && !errors.Is(err, syscall.EIO) {
		_ = cmd.Wait()
		return err
	}
	return cmd.Wait()
}
