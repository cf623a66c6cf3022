// Package registry maps package manager names to the managers that run
// install tasks.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/blackwell-systems/c9install/internal/installer"
)

// ErrUnknownManager is returned when a task names a manager that is not
// registered under that name or any alias.
var ErrUnknownManager = errors.New("unknown package manager")

// Manager runs install tasks of one kind.
type Manager interface {
	Execute(ctx context.Context, task *installer.Task, out io.Writer) error
}

// ManagerFunc adapts a function into a Manager.
type ManagerFunc func(ctx context.Context, task *installer.Task, out io.Writer) error

// Execute calls f.
func (f ManagerFunc) Execute(ctx context.Context, task *installer.Task, out io.Writer) error {
	return f(ctx, task, out)
}

// Entry describes a registered manager for listing.
type Entry struct {
	Name    string
	Aliases []string
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]Manager
	aliases  map[string]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		managers: make(map[string]Manager),
		aliases:  make(map[string]string),
	}
}

// Add registers m under name, replacing any manager already there.
func (r *Registry) Add(name string, m Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[name] = m
}

// Remove unregisters name. Aliases pointing at it are kept so that a later
// Add under the same name is reachable through them again.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, name)
}

// AddAlias makes each alias resolve to canonical. canonical does not need to
// be registered yet.
func (r *Registry) AddAlias(canonical string, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range aliases {
		if a == "" || a == canonical {
			continue
		}
		r.aliases[a] = canonical
	}
}

// Lookup returns the manager registered under name, following one alias.
// A manager registered directly under name wins over an alias.
func (r *Registry) Lookup(name string) (Manager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.managers[name]; ok {
		return m, nil
	}
	if canonical, ok := r.aliases[name]; ok {
		if m, ok := r.managers[canonical]; ok {
			return m, nil
		}
		return nil, fmt.Errorf("%w: %s (alias of %s)", ErrUnknownManager, name, canonical)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownManager, name)
}

// Names returns the registered manager names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.managers))
	for n := range r.managers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entries lists registered managers with their aliases, sorted by name.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byCanonical := make(map[string][]string)
	for alias, canonical := range r.aliases {
		byCanonical[canonical] = append(byCanonical[canonical], alias)
	}

	entries := make([]Entry, 0, len(r.managers))
	for name := range r.managers {
		aliases := byCanonical[name]
		sort.Strings(aliases)
		entries = append(entries, Entry{Name: name, Aliases: aliases})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Executor adapts the registry to installer.Executor by dispatching each task
// to the manager it names.
type Executor struct {
	Registry *Registry
}

// Execute looks up task.Manager and runs the task with it.
func (e Executor) Execute(ctx context.Context, task *installer.Task, out io.Writer) error {
	m, err := e.Registry.Lookup(task.Manager)
	if err != nil {
		return err
	}
	return m.Execute(ctx, task, out)
}
