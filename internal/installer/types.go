// Package installer orchestrates install sessions: it decides whether a
// package needs installing, collects its tasks once the host architecture is
// known, and runs sessions strictly one after another.
package installer

import (
	"context"
	"fmt"
	"io"

	"github.com/blackwell-systems/c9install/internal/arch"
)

// Package identifies what a session installs. A package may be reinstalled
// under a new version; its identity is Name.
type Package struct {
	Name    string
	Version int
}

func (p Package) String() string {
	return fmt.Sprintf("%s %d", p.Name, p.Version)
}

// CheckState is the selection state of a task or package. Indeterminate
// means some, but not all, optional children are selected.
type CheckState int

const (
	Checked CheckState = iota
	Unchecked
	Indeterminate
)

func (c CheckState) String() string {
	switch c {
	case Checked:
		return "checked"
	case Unchecked:
		return "unchecked"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("CheckState(%d)", int(c))
	}
}

// Task is one install step. Manager names the package manager that runs
// it; Options is passed through to that manager untouched.
type Task struct {
	Name        string
	Description string
	Manager     string
	Options     map[string]any

	Optional bool
	Checked  CheckState
	// Ignore is set by Select for optional tasks the user deselected.
	Ignore bool
}

// Executor runs a single task, writing any interim output to out. It must
// return promptly once ctx is cancelled.
type Executor interface {
	Execute(ctx context.Context, task *Task, out io.Writer) error
}

// ExecutorFunc adapts a function into an Executor.
type ExecutorFunc func(ctx context.Context, task *Task, out io.Writer) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, task *Task, out io.Writer) error {
	return f(ctx, task, out)
}

// ScriptManager is the manager name used for pre- and post-install scripts.
const ScriptManager = "bash"

// Platform describes the host a populator is filling tasks for.
type Platform struct {
	OS   string
	Arch arch.Tag
}

// Populator fills a session once the host architecture is known.
type Populator func(platform Platform, p *Populated) error

// Populated collects what a Populator contributes to a session.
type Populated struct {
	tasks        []*Task
	introduction string
	preInstall   string
	postInstall  string
}

// AddTask appends a task. Tasks run in the order they are added.
func (p *Populated) AddTask(t *Task) {
	p.tasks = append(p.tasks, t)
}

// SetIntroduction sets text shown to the user before installing.
func (p *Populated) SetIntroduction(text string) {
	p.introduction = text
}

// SetPreInstallScript sets a shell script run before the first task.
func (p *Populated) SetPreInstallScript(script string) {
	p.preInstall = script
}

// SetPostInstallScript sets a shell script run after the last task.
func (p *Populated) SetPostInstallScript(script string) {
	p.postInstall = script
}

// VersionStore is the subset of the installed record the orchestrator uses.
type VersionStore interface {
	Ready() <-chan struct{}
	IsInstalled(name string, version int) bool
	MarkInstalled(name string, version int)
	Persist()
}

// ArchResolver resolves the host architecture once and broadcasts it.
type ArchResolver interface {
	Trigger()
	OnResolved(fn func(arch.Tag))
}
