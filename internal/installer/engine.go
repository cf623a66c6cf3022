package installer

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Engine runs sessions one at a time. Runs never overlap: a second Run
// waits for the first to return.
type Engine struct {
	logger *log.Logger

	runMu    sync.Mutex
	aborting atomic.Bool
	abortGen atomic.Uint64

	mu    sync.Mutex
	batch []*Session
}

// Result lists what a run completed.
type Result struct {
	RunID     string
	Completed []Package
}

// Summary renders one "name version" line per completed package.
func (r *Result) Summary() string {
	if r == nil || len(r.Completed) == 0 {
		return ""
	}
	lines := make([]string, len(r.Completed))
	for i, pkg := range r.Completed {
		lines[i] = pkg.String()
	}
	return strings.Join(lines, "\n")
}

// NewEngine creates an Engine.
func NewEngine(logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{logger: logger.WithPrefix("engine")}
}

// Run executes sessions in order. It stops at the first failing session:
// later sessions are left untouched so that they can be retried. If Abort is
// called, the running session is aborted and no further session starts.
// An Abort that lands while Run waits for an earlier run also stops it.
//
// The returned Result is never nil and lists the sessions that completed.
func (e *Engine) Run(ctx context.Context, sessions []*Session) (*Result, error) {
	return e.run(ctx, sessions, e.generation())
}

// generation identifies the Aborts seen so far. A run started with an
// older generation is aborted before it installs anything.
func (e *Engine) generation() uint64 {
	return e.abortGen.Load()
}

func (e *Engine) run(ctx context.Context, sessions []*Session, gen uint64) (*Result, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	aborted := func() bool { return e.abortGen.Load() != gen }
	e.aborting.Store(aborted())
	res := &Result{RunID: uuid.NewString()}

	e.mu.Lock()
	e.batch = sessions
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.batch = nil
		e.mu.Unlock()
	}()

	for _, s := range sessions {
		if aborted() || ctx.Err() != nil {
			e.logger.Info("batch aborted", "run", res.RunID, "remaining", s.pkg.Name)
			return res, ErrAborted
		}

		e.logger.Info("installing package", "run", res.RunID, "package", s.pkg.Name, "version", s.pkg.Version)
		if err := s.run(ctx, res.RunID, aborted); err != nil {
			e.logger.Error("package install failed", "run", res.RunID, "package", s.pkg.Name, "error", err)
			return res, err
		}
		res.Completed = append(res.Completed, s.pkg)
	}
	return res, nil
}

// RunSelected applies the task selection, aborts the sessions the user
// deselected entirely and runs the rest.
func (e *Engine) RunSelected(ctx context.Context, sessions []*Session) (*Result, error) {
	gen := e.generation()
	selected, ignored := Select(sessions)
	for _, s := range ignored {
		s.Abort()
	}
	return e.run(ctx, selected, gen)
}

// Abort requests that the current run stop. The running session's task is
// cancelled and no further session is started, including sessions whose
// runs are queued behind the current one.
func (e *Engine) Abort() {
	e.abortGen.Add(1)
	e.aborting.Store(true)

	e.mu.Lock()
	batch := make([]*Session, len(e.batch))
	copy(batch, e.batch)
	e.mu.Unlock()

	for _, s := range batch {
		if s.Executing() {
			s.Abort()
		}
	}
}

// Aborting reports whether Abort was called during the current run.
func (e *Engine) Aborting() bool {
	return e.aborting.Load()
}
