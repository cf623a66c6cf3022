package managers

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/blackwell-systems/c9install/internal/installer"
)

// Brew installs formulae with Homebrew.
//
// Options:
//
//	formula  name to install (defaults to the task name)
//	version  appended as formula@version unless the formula has one
//	tap      tap added first if it is not present yet
//	cask     install as a cask
type Brew struct {
	// Path to the brew binary. Defaults to "brew" on PATH.
	Path string

	// run and output are replaced in tests.
	run    func(ctx context.Context, out io.Writer, name string, args ...string) error
	output func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewBrew returns a Brew manager using the brew binary on PATH.
func NewBrew() *Brew {
	return &Brew{Path: "brew", run: runStreaming, output: runOutput}
}

// Execute installs the formula described by task.
func (b *Brew) Execute(ctx context.Context, task *installer.Task, out io.Writer) error {
	formula, err := stringOption(task, "formula")
	if err != nil {
		return err
	}
	if formula == "" {
		formula = task.Name
	}
	if formula == "" {
		return fmt.Errorf("brew: no formula given")
	}
	version, err := stringOption(task, "version")
	if err != nil {
		return err
	}
	tap, err := stringOption(task, "tap")
	if err != nil {
		return err
	}
	cask, err := boolOption(task, "cask")
	if err != nil {
		return err
	}

	if tap != "" {
		if err := b.AddTap(ctx, tap, out); err != nil {
			return err
		}
	}
	return b.Install(ctx, formula, version, cask, out)
}

// Install installs a specific version of a formula via brew install.
// If version is empty, installs the latest version.
func (b *Brew) Install(ctx context.Context, formula, version string, cask bool, out io.Writer) error {
	fullName := formula
	// Homebrew uses @ syntax for versioned formulae (e.g., node@16).
	if version != "" && !strings.Contains(formula, "@") {
		fullName = fmt.Sprintf("%s@%s", formula, version)
	}

	args := []string{"install"}
	if cask {
		args = append(args, "--cask")
	}
	args = append(args, fullName)

	if err := b.run(ctx, out, b.path(), args...); err != nil {
		return fmt.Errorf("brew install %s failed: %w", fullName, err)
	}
	return nil
}

// AddTap adds a Homebrew tap if not already present.
func (b *Brew) AddTap(ctx context.Context, tap string, out io.Writer) error {
	exists, err := b.TapExists(ctx, tap)
	if err != nil {
		return fmt.Errorf("failed to check if tap exists: %w", err)
	}
	if exists {
		return nil
	}

	if err := b.run(ctx, out, b.path(), "tap", tap); err != nil {
		return fmt.Errorf("brew tap %s failed: %w", tap, err)
	}
	return nil
}

// TapExists checks if a tap is already added.
func (b *Brew) TapExists(ctx context.Context, tap string) (bool, error) {
	output, err := b.output(ctx, b.path(), "tap")
	if err != nil {
		return false, fmt.Errorf("brew tap failed: %w", err)
	}

	for _, t := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if strings.TrimSpace(t) == tap {
			return true, nil
		}
	}
	return false, nil
}

func (b *Brew) path() string {
	if b.Path == "" {
		return "brew"
	}
	return b.Path
}

func runStreaming(ctx context.Context, out io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

func runOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return nil, err
	}
	return output, nil
}
