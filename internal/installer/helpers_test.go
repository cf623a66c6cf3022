package installer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/c9install/internal/arch"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

type memStore struct {
	mu        sync.Mutex
	ready     chan struct{}
	record    map[string]int
	persisted int
}

func newMemStore(installed map[string]int) *memStore {
	s := &memStore{ready: make(chan struct{}), record: make(map[string]int)}
	for k, v := range installed {
		s.record[k] = v
	}
	close(s.ready)
	return s
}

func (s *memStore) Ready() <-chan struct{} { return s.ready }

func (s *memStore) IsInstalled(name string, version int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.record[name]
	return ok && v == version
}

func (s *memStore) MarkInstalled(name string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record[name] = version
}

func (s *memStore) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted++
}

func (s *memStore) version(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.record[name]
	return v, ok
}

// fakeArch resolves only when told to.
type fakeArch struct {
	mu       sync.Mutex
	tag      arch.Tag
	resolved bool
	pending  []func(arch.Tag)
	triggers int
}

func resolvedArch(tag arch.Tag) *fakeArch {
	return &fakeArch{tag: tag, resolved: true}
}

func (a *fakeArch) Trigger() {
	a.mu.Lock()
	a.triggers++
	a.mu.Unlock()
}

func (a *fakeArch) OnResolved(fn func(arch.Tag)) {
	a.mu.Lock()
	if a.resolved {
		tag := a.tag
		a.mu.Unlock()
		fn(tag)
		return
	}
	a.pending = append(a.pending, fn)
	a.mu.Unlock()
}

func (a *fakeArch) resolve(tag arch.Tag) {
	a.mu.Lock()
	a.tag = tag
	a.resolved = true
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()
	for _, fn := range pending {
		fn(tag)
	}
}

// recorder executes tasks by name, recording the order they ran in.
type recorder struct {
	mu     sync.Mutex
	ran    []string
	behave map[string]func(ctx context.Context, out io.Writer) error
}

func newRecorder() *recorder {
	return &recorder{behave: make(map[string]func(context.Context, io.Writer) error)}
}

func (r *recorder) on(task string, fn func(ctx context.Context, out io.Writer) error) {
	r.behave[task] = fn
}

func (r *recorder) Execute(ctx context.Context, task *Task, out io.Writer) error {
	r.mu.Lock()
	r.ran = append(r.ran, task.Name)
	fn := r.behave[task.Name]
	r.mu.Unlock()
	if fn != nil {
		return fn(ctx, out)
	}
	return nil
}

func (r *recorder) tasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ran))
	copy(out, r.ran)
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, e := range l.events {
		out[i] = e.Kind
	}
	return out
}

func (l *eventLog) data() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var s string
	for _, e := range l.events {
		if e.Kind == EventData {
			s += string(e.Data)
		}
	}
	return s
}

type fixture struct {
	factory *Factory
	store   *memStore
	arch    *fakeArch
	exec    *recorder
}

func newFixture(t *testing.T, installed map[string]int, manual bool) *fixture {
	t.Helper()
	fx := &fixture{
		store: newMemStore(installed),
		arch:  resolvedArch(arch.X64),
		exec:  newRecorder(),
	}
	f, err := NewFactory(Options{
		Store:       fx.store,
		Arch:        fx.arch,
		Executor:    fx.exec,
		Logger:      quietLogger(),
		OS:          "linux",
		ManualStart: manual,
	})
	require.NoError(t, err)
	f.MarkSystemReady()
	fx.factory = f
	return fx
}

// tasks returns a populator adding one required task per name.
func tasks(names ...string) Populator {
	return func(_ Platform, p *Populated) error {
		for _, n := range names {
			p.AddTask(&Task{Name: n, Manager: "exec"})
		}
		return nil
	}
}

func (fx *fixture) session(t *testing.T, name string, version int, populate Populator) *Session {
	t.Helper()
	s, err := fx.factory.CreateSession(context.Background(), Request{
		Name:     name,
		Version:  version,
		Populate: populate,
	})
	require.NoError(t, err)
	require.NotNil(t, s, fmt.Sprintf("session for %s", name))
	return s
}
