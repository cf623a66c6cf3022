package installer

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is reported for sessions and batches stopped on request.
	ErrAborted = errors.New("Aborted")

	// ErrNotPopulated is returned when starting a session whose task list
	// has not been filled yet.
	ErrNotPopulated = errors.New("session is not populated")

	// ErrAlreadyStarted is returned when starting a session that is running
	// or has stopped.
	ErrAlreadyStarted = errors.New("session already started")
)

// TaskError reports the failure of a single task. Later tasks in the session
// and later sessions in the batch are not run.
type TaskError struct {
	Package Package
	Task    string
	Err     error
}

func (e *TaskError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("%s: %v", e.Package, e.Err)
	}
	return fmt.Sprintf("%s: task %s failed: %v", e.Package, e.Task, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
