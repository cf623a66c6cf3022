package installer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is a session's position in its lifecycle.
type State int

const (
	StatePending State = iota
	StateAwaitingArchitecture
	StatePopulated
	StateRunning
	StateStopped
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAwaitingArchitecture:
		return "awaiting-architecture"
	case StatePopulated:
		return "populated"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed || s == StateAborted
}

// Session is the unit of work for installing one package at one version.
// Sessions are created by a Factory and run by an Engine.
type Session struct {
	pkg     Package
	factory *Factory

	mu           sync.Mutex
	state        State
	tasks        []*Task
	introduction string
	preInstall   string
	postInstall  string
	err          error
	runID        string
	aborting     bool
	cancel       context.CancelFunc
	done         []func(error)

	populatedOnce sync.Once
	populated     chan struct{}
	stopped       chan struct{}

	events notifier
}

func newSession(f *Factory, pkg Package) *Session {
	return &Session{
		pkg:       pkg,
		factory:   f,
		state:     StatePending,
		populated: make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Package returns the package this session installs.
func (s *Session) Package() Package {
	return s.pkg
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error the session stopped with, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Executing reports whether the session is running tasks.
func (s *Session) Executing() bool {
	return s.State() == StateRunning
}

// Tasks returns the populated tasks. The slice is a copy; the tasks are
// shared so that callers can change their selection before starting.
func (s *Session) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Introduction returns the text to show before installing.
func (s *Session) Introduction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.introduction
}

// PreInstallScript returns the script run before the first task.
func (s *Session) PreInstallScript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preInstall
}

// PostInstallScript returns the script run after the last task.
func (s *Session) PostInstallScript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postInstall
}

// HasOptional reports whether any task may be deselected.
func (s *Session) HasOptional() bool {
	for _, t := range s.Tasks() {
		if t.Optional {
			return true
		}
	}
	return false
}

// Subscribe registers fn for this session's events and returns a function
// that removes it.
func (s *Session) Subscribe(fn func(Event)) func() {
	return s.events.subscribe(fn)
}

// Populated is closed once the task list is filled, or the session stopped
// before that could happen.
func (s *Session) Populated() <-chan struct{} {
	return s.populated
}

// Done is closed once the session has stopped, failed or been aborted.
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

// Wait blocks until the session is done and returns its error.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.stopped:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the session through the factory's engine. Unless force is set,
// the before-start gates are consulted first; if any suppresses the start,
// Start returns nil and the session stays populated.
func (s *Session) Start(ctx context.Context, force bool) error {
	switch st := s.State(); {
	case st == StatePopulated:
	case st.Terminal() || st == StateRunning:
		return ErrAlreadyStarted
	default:
		return ErrNotPopulated
	}

	engine := s.factory.engine
	gen := engine.generation()
	if !force && !s.factory.gates.allow(s) {
		s.factory.logger.Debug("start deferred by gate", "package", s.pkg.Name)
		return nil
	}

	_, err := engine.run(ctx, []*Session{s}, gen)
	return err
}

// Abort stops the session. A running session finishes its current task's
// cancellation and stops before the next one; a session that has not
// started is stopped immediately.
func (s *Session) Abort() {
	s.mu.Lock()
	switch {
	case s.state == StateRunning:
		s.aborting = true
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	case s.state.Terminal():
		s.mu.Unlock()
		return
	}
	fin := s.finishLocked(ErrAborted)
	s.mu.Unlock()
	s.afterFinish(fin)
}

// Unload aborts the session if needed and drops it from the factory.
func (s *Session) Unload() {
	s.Abort()
	s.factory.release(s)
}

func (s *Session) addDone(fn func(error)) {
	s.mu.Lock()
	if s.state.Terminal() {
		err := s.err
		s.mu.Unlock()
		fn(err)
		return
	}
	s.done = append(s.done, fn)
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) markPopulated() {
	s.populatedOnce.Do(func() { close(s.populated) })
}

// populate fills the session. It is a no-op if the session left the
// awaiting-architecture state in the meantime, for example by being aborted.
func (s *Session) populate(platform Platform, fn Populator) error {
	if s.State() != StateAwaitingArchitecture {
		return nil
	}

	p := &Populated{}
	if fn != nil {
		if err := fn(platform, p); err != nil {
			err = fmt.Errorf("failed to populate %s: %w", s.pkg.Name, err)
			s.mu.Lock()
			if s.state != StateAwaitingArchitecture {
				s.mu.Unlock()
				return nil
			}
			fin := s.finishLocked(err)
			s.mu.Unlock()
			s.afterFinish(fin)
			return err
		}
	}

	s.mu.Lock()
	if s.state != StateAwaitingArchitecture {
		s.mu.Unlock()
		return nil
	}
	s.tasks = p.tasks
	s.introduction = p.introduction
	s.preInstall = p.preInstall
	s.postInstall = p.postInstall
	s.state = StatePopulated
	s.mu.Unlock()

	s.markPopulated()
	return nil
}

// run executes the task list. It is called by the Engine only; engineAborted
// reports an Abort on the engine that may have missed this session.
func (s *Session) run(ctx context.Context, runID string, engineAborted func() bool) error {
	s.mu.Lock()
	switch {
	case s.state == StatePopulated:
	case s.state == StateAborted:
		s.mu.Unlock()
		return ErrAborted
	case s.state.Terminal() || s.state == StateRunning:
		s.mu.Unlock()
		return ErrAlreadyStarted
	default:
		s.mu.Unlock()
		return ErrNotPopulated
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.state = StateRunning
	s.runID = runID
	s.cancel = cancel
	s.aborting = false
	tasks := s.executionListLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventStart})

	err := s.runTasks(ctx, tasks, engineAborted)

	s.mu.Lock()
	fin := s.finishLocked(err)
	s.mu.Unlock()
	s.afterFinish(fin)
	return err
}

// executionListLocked wraps the populated tasks with the install scripts.
func (s *Session) executionListLocked() []*Task {
	tasks := make([]*Task, 0, len(s.tasks)+2)
	if s.preInstall != "" {
		tasks = append(tasks, &Task{
			Name:    "pre-install script",
			Manager: ScriptManager,
			Options: map[string]any{"script": s.preInstall},
		})
	}
	tasks = append(tasks, s.tasks...)
	if s.postInstall != "" {
		tasks = append(tasks, &Task{
			Name:    "post-install script",
			Manager: ScriptManager,
			Options: map[string]any{"script": s.postInstall},
		})
	}
	return tasks
}

func (s *Session) runTasks(ctx context.Context, tasks []*Task, engineAborted func() bool) error {
	out := &dataWriter{session: s}
	stop := func() bool {
		return s.abortRequested() || engineAborted() || ctx.Err() != nil
	}
	for _, task := range tasks {
		if stop() {
			return ErrAborted
		}
		if task.Ignore {
			continue
		}

		s.emit(Event{Kind: EventEach, Task: task})

		if err := s.factory.executor.Execute(ctx, task, out); err != nil {
			if stop() {
				return ErrAborted
			}
			return &TaskError{Package: s.pkg, Task: taskLabel(task), Err: err}
		}
	}
	return nil
}

func (s *Session) abortRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborting
}

type finished struct {
	err  error
	done []func(error)
	ok   bool
}

// finishLocked moves the session to its terminal state. The caller must
// hold s.mu and call afterFinish once it has released it.
func (s *Session) finishLocked(err error) finished {
	if s.state.Terminal() {
		return finished{}
	}
	switch {
	case err == nil:
		s.state = StateStopped
	case errors.Is(err, ErrAborted):
		s.state = StateAborted
	default:
		s.state = StateFailed
	}
	s.err = err
	s.cancel = nil
	done := s.done
	s.done = nil
	return finished{err: err, done: done, ok: true}
}

func (s *Session) afterFinish(fin finished) {
	if !fin.ok {
		return
	}
	s.markPopulated()

	f := s.factory
	if fin.err == nil {
		f.store.MarkInstalled(s.pkg.Name, s.pkg.Version)
		f.store.Persist()
		f.logger.Info("package installed", "package", s.pkg.Name, "version", s.pkg.Version)
	} else {
		f.logger.Debug("session stopped", "package", s.pkg.Name, "version", s.pkg.Version, "error", fin.err)
	}

	f.release(s)
	s.emit(Event{Kind: EventStop, Err: fin.err})
	close(s.stopped)

	for _, fn := range fin.done {
		fn(fin.err)
	}
}

func (s *Session) emit(e Event) {
	e.Session = s
	s.mu.Lock()
	e.RunID = s.runID
	s.mu.Unlock()

	s.events.emit(e)
	s.factory.events.emit(e)
}

func taskLabel(t *Task) string {
	if t.Name != "" {
		return t.Name
	}
	return t.Manager
}

// dataWriter forwards task output as EventData.
type dataWriter struct {
	session *Session
}

func (w *dataWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := make([]byte, len(p))
	copy(data, p)
	w.session.emit(Event{Kind: EventData, Data: data})
	return len(p), nil
}
