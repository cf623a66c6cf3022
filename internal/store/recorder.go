package store

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/c9install/internal/installer"
)

// Recorder writes installer events to the history. Subscribe Handle to a
// factory to record every session it runs.
type Recorder struct {
	store  *Store
	logger *log.Logger
	now    func() time.Time

	mu   sync.Mutex
	rows map[*installer.Session]int64
}

// NewRecorder returns a Recorder writing to s.
func NewRecorder(s *Store, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		store:  s,
		logger: logger.WithPrefix("history"),
		now:    time.Now,
		rows:   make(map[*installer.Session]int64),
	}
}

// Handle records e. Storage errors are logged, never returned: history is
// not allowed to fail an install.
func (r *Recorder) Handle(e installer.Event) {
	switch e.Kind {
	case installer.EventStart:
		pkg := e.Session.Package()
		id, err := r.store.StartRun(e.RunID, pkg.Name, pkg.Version, r.now())
		if err != nil {
			r.logger.Warn("failed to record run start", "package", pkg.Name, "error", err)
			return
		}
		r.mu.Lock()
		r.rows[e.Session] = id
		r.mu.Unlock()

	case installer.EventEach:
		id, ok := r.row(e.Session, false)
		if !ok || e.Task == nil {
			return
		}
		if err := r.store.AddRunTask(id, e.Task.Name, e.Task.Manager, r.now()); err != nil {
			r.logger.Warn("failed to record task", "task", e.Task.Name, "error", err)
		}

	case installer.EventStop:
		id, ok := r.row(e.Session, true)
		if !ok {
			// Stopped without running, e.g. aborted before start.
			return
		}
		errMsg := ""
		if e.Err != nil {
			errMsg = e.Err.Error()
		}
		if err := r.store.FinishRun(id, statusOf(e.Err), errMsg, r.now()); err != nil {
			r.logger.Warn("failed to record run outcome", "package", e.Session.Package().Name, "error", err)
		}
	}
}

func (r *Recorder) row(s *installer.Session, remove bool) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.rows[s]
	if ok && remove {
		delete(r.rows, s)
	}
	return id, ok
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusStopped
	case errors.Is(err, installer.ErrAborted):
		return StatusAborted
	default:
		return StatusFailed
	}
}
