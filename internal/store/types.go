package store

import "time"

// Run statuses.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusFailed  = "failed"
	StatusAborted = "aborted"
)

// Run is one session's install attempt. Several Runs share a RunID when
// they were executed in the same batch.
type Run struct {
	ID        int64
	RunID     string
	Package   string
	Version   int
	Status    string
	Error     string
	StartedAt time.Time
	// StoppedAt is zero while the run is in progress.
	StoppedAt time.Time
}

// Duration returns how long the run took, or zero if it has not stopped.
func (r *Run) Duration() time.Duration {
	if r.StoppedAt.IsZero() {
		return 0
	}
	return r.StoppedAt.Sub(r.StartedAt)
}

// RunTask is a task started during a run.
type RunTask struct {
	InstallID int64
	Task      string
	Manager   string
	StartedAt time.Time
}
