package managers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/blackwell-systems/c9install/internal/installer"
)

// ExitError reports a non-zero exit status from a script or command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exited with status %d", e.Code)
}

// Bash runs shell scripts with an embedded POSIX/bash interpreter, so
// install scripts behave the same whether or not the host has bash.
//
// Options:
//
//	script  script source (required)
//	args    positional parameters ($1, $2, ...)
//	dir     working directory
//	env     extra environment variables
type Bash struct {
	// Dir is the default working directory.
	Dir string
}

// Execute parses and runs the task's script, writing stdout and stderr to
// out.
func (b *Bash) Execute(ctx context.Context, task *installer.Task, out io.Writer) error {
	script, err := stringOption(task, "script")
	if err != nil {
		return err
	}
	if strings.TrimSpace(script) == "" {
		return errors.New("bash: no script given")
	}
	args, err := stringsOption(task, "args")
	if err != nil {
		return err
	}
	dir, err := stringOption(task, "dir")
	if err != nil {
		return err
	}
	if dir == "" {
		dir = b.Dir
	}
	extra, err := envOption(task, "env")
	if err != nil {
		return err
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(script), taskLabel(task))
	if err != nil {
		return fmt.Errorf("failed to parse script: %w", err)
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(append(os.Environ(), extra...)...)),
		interp.StdIO(nil, out, out),
	}
	if dir != "" {
		opts = append(opts, interp.Dir(dir))
	}
	if len(args) > 0 {
		// "--" keeps arguments such as "-v" from being read as shell options.
		opts = append(opts, interp.Params(append([]string{"--"}, args...)...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if status, ok := interp.IsExitStatus(err); ok {
			return &ExitError{Code: int(status)}
		}
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

func taskLabel(task *installer.Task) string {
	if task.Name != "" {
		return task.Name
	}
	return "script"
}
