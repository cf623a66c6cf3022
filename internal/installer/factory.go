package installer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/c9install/internal/arch"
)

// Request asks the factory for a session.
type Request struct {
	Name     string
	Version  int
	Populate Populator
	// Done is called once with the session's outcome, or with nil right
	// away when the package is already installed at Version.
	Done func(error)
	// Force installs even when the recorded version matches.
	Force bool
}

// Options configures a Factory.
type Options struct {
	Store    VersionStore
	Arch     ArchResolver
	Executor Executor
	// Engine runs started sessions. A new Engine is created when nil.
	Engine *Engine
	Logger *log.Logger
	// OS is reported to populators. Defaults to runtime.GOOS.
	OS string
	// ManualStart leaves populated sessions for the caller to start instead
	// of starting them (gated by BeforeStart) as soon as they are populated.
	ManualStart bool
}

// Factory creates sessions, skips packages that are already installed and
// tracks the sessions that have not stopped yet.
type Factory struct {
	store       VersionStore
	arch        ArchResolver
	executor    Executor
	engine      *Engine
	logger      *log.Logger
	os          string
	manualStart bool

	readyOnce   sync.Once
	systemReady chan struct{}

	mu       sync.Mutex
	active   map[string]*Session
	requests map[string]Request

	events notifier
	gates  gates
}

// NewFactory validates opts and returns a Factory. The host is not
// considered ready until MarkSystemReady is called.
func NewFactory(opts Options) (*Factory, error) {
	if opts.Store == nil {
		return nil, errors.New("installer: store is required")
	}
	if opts.Arch == nil {
		return nil, errors.New("installer: architecture resolver is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("installer: executor is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	engine := opts.Engine
	if engine == nil {
		engine = NewEngine(logger)
	}
	goos := opts.OS
	if goos == "" {
		goos = runtime.GOOS
	}

	return &Factory{
		store:       opts.Store,
		arch:        opts.Arch,
		executor:    opts.Executor,
		engine:      engine,
		logger:      logger.WithPrefix("installer"),
		os:          goos,
		manualStart: opts.ManualStart,
		systemReady: make(chan struct{}),
		active:      make(map[string]*Session),
		requests:    make(map[string]Request),
	}, nil
}

// Engine returns the engine sessions are run on.
func (f *Factory) Engine() *Engine {
	return f.engine
}

// MarkSystemReady releases CreateSession calls waiting on the host.
func (f *Factory) MarkSystemReady() {
	f.readyOnce.Do(func() { close(f.systemReady) })
}

// SystemReady is closed once MarkSystemReady has been called.
func (f *Factory) SystemReady() <-chan struct{} {
	return f.systemReady
}

// CreateSession returns a session for req, or nil if the package is already
// installed at req.Version and req.Force is not set; in that case req.Done
// is called with nil before CreateSession returns.
//
// CreateSession first waits for the installed record to load, then for the
// host to be ready. The populator runs once the architecture is resolved.
// ctx bounds the waits and, unless ManualStart is set, the automatic start.
func (f *Factory) CreateSession(ctx context.Context, req Request) (*Session, error) {
	if req.Name == "" {
		return nil, errors.New("installer: package name is required")
	}

	select {
	case <-f.store.Ready():
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for installed record: %w", ctx.Err())
	}
	select {
	case <-f.systemReady:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for system ready: %w", ctx.Err())
	}

	f.mu.Lock()
	f.requests[req.Name] = req

	if !req.Force && f.store.IsInstalled(req.Name, req.Version) {
		f.mu.Unlock()
		f.logger.Debug("already installed, skipping", "package", req.Name, "version", req.Version)
		if req.Done != nil {
			req.Done(nil)
		}
		return nil, nil
	}

	if existing, ok := f.active[req.Name]; ok && existing.pkg.Version == req.Version {
		f.mu.Unlock()
		if req.Done != nil {
			existing.addDone(req.Done)
		}
		return existing, nil
	}

	s := newSession(f, Package{Name: req.Name, Version: req.Version})
	if req.Done != nil {
		s.done = append(s.done, req.Done)
	}
	f.active[req.Name] = s
	f.mu.Unlock()

	s.setState(StateAwaitingArchitecture)
	f.logger.Debug("session created", "package", req.Name, "version", req.Version)

	populate := req.Populate
	f.arch.OnResolved(func(tag arch.Tag) {
		f.populate(ctx, s, populate, tag)
	})
	f.arch.Trigger()

	return s, nil
}

func (f *Factory) populate(ctx context.Context, s *Session, fn Populator, tag arch.Tag) {
	platform := Platform{OS: f.os, Arch: tag}
	if err := s.populate(platform, fn); err != nil {
		f.logger.Warn("populate failed", "package", s.pkg.Name, "error", err)
		return
	}
	if s.State() != StatePopulated {
		return
	}
	f.logger.Debug("session populated", "package", s.pkg.Name, "arch", tag, "tasks", len(s.Tasks()))

	if f.manualStart {
		return
	}
	go func() {
		if err := s.Start(ctx, false); err != nil {
			f.logger.Warn("install failed", "package", s.pkg.Name, "version", s.pkg.Version, "error", err)
		}
	}()
}

// Reinstall creates a forced session for name using the request it was
// last created with. It returns false if name was never requested.
func (f *Factory) Reinstall(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	req, ok := f.requests[name]
	f.mu.Unlock()
	if !ok {
		return false, nil
	}

	req.Force = true
	if _, err := f.CreateSession(ctx, req); err != nil {
		return true, err
	}
	return true, nil
}

// Active returns the sessions that have not stopped, ordered by name.
func (f *Factory) Active() []*Session {
	f.mu.Lock()
	out := make([]*Session, 0, len(f.active))
	for _, s := range f.active {
		out = append(out, s)
	}
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].pkg.Name < out[j].pkg.Name
	})
	return out
}

// Lookup returns the active session for name.
func (f *Factory) Lookup(name string) (*Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.active[name]
	return s, ok
}

// Unload aborts and drops the active session for name.
func (f *Factory) Unload(name string) bool {
	s, ok := f.Lookup(name)
	if !ok {
		return false
	}
	s.Unload()
	return true
}

// Subscribe registers fn for the events of every session.
func (f *Factory) Subscribe(fn func(Event)) func() {
	return f.events.subscribe(fn)
}

// AddGate registers a before-start gate and returns a function removing it.
func (f *Factory) AddGate(gate BeforeStartGate) func() {
	return f.gates.add(gate)
}

func (f *Factory) release(s *Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.active[s.pkg.Name]; ok && cur == s {
		delete(f.active, s.pkg.Name)
	}
}
