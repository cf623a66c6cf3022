package store

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/c9install/internal/arch"
	"github.com/blackwell-systems/c9install/internal/installer"
)

type memRecord struct{ ready chan struct{} }

func (m memRecord) Ready() <-chan struct{}     { return m.ready }
func (memRecord) IsInstalled(string, int) bool { return false }
func (memRecord) MarkInstalled(string, int)    {}
func (memRecord) Persist()                     {}

type x64 struct{}

func (x64) Trigger()                     {}
func (x64) OnResolved(fn func(arch.Tag)) { fn(arch.X64) }

func newRecordedFactory(t *testing.T, exec installer.ExecutorFunc) (*installer.Factory, *Store) {
	t.Helper()
	st := newTestStore(t)
	t.Cleanup(func() { st.Close() })

	ready := make(chan struct{})
	close(ready)
	logger := log.NewWithOptions(io.Discard, log.Options{})

	f, err := installer.NewFactory(installer.Options{
		Store:       memRecord{ready: ready},
		Arch:        x64{},
		Executor:    exec,
		Logger:      logger,
		ManualStart: true,
	})
	require.NoError(t, err)
	f.MarkSystemReady()
	f.Subscribe(NewRecorder(st, logger).Handle)
	return f, st
}

func twoTasks(_ installer.Platform, p *installer.Populated) error {
	p.AddTask(&installer.Task{Name: "fetch", Manager: "exec"})
	p.AddTask(&installer.Task{Name: "configure", Manager: "bash"})
	return nil
}

func TestRecorder_Success(t *testing.T) {
	f, st := newRecordedFactory(t, func(context.Context, *installer.Task, io.Writer) error { return nil })

	s, err := f.CreateSession(context.Background(), installer.Request{Name: "Cloud9 IDE", Version: 1, Populate: twoTasks})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background(), false))

	run, err := st.LastRun("Cloud9 IDE")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, StatusStopped, run.Status)
	assert.Empty(t, run.Error)
	assert.NotEmpty(t, run.RunID)
	assert.False(t, run.StoppedAt.IsZero())

	tasks, err := st.GetRunTasks(run.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "fetch", tasks[0].Task)
	assert.Equal(t, "bash", tasks[1].Manager)
}

func TestRecorder_Failure(t *testing.T) {
	f, st := newRecordedFactory(t, func(_ context.Context, task *installer.Task, _ io.Writer) error {
		if task.Name == "configure" {
			return errors.New("exit status 1")
		}
		return nil
	})

	s, err := f.CreateSession(context.Background(), installer.Request{Name: "Collab", Version: 2, Populate: twoTasks})
	require.NoError(t, err)
	require.Error(t, s.Start(context.Background(), false))

	run, err := st.LastRun("Collab")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Contains(t, run.Error, "exit status 1")
	assert.Equal(t, 2, run.Version)
}

func TestRecorder_AbortBeforeStartIsNotRecorded(t *testing.T) {
	f, st := newRecordedFactory(t, func(context.Context, *installer.Task, io.Writer) error { return nil })

	s, err := f.CreateSession(context.Background(), installer.Request{Name: "Collab", Version: 1, Populate: twoTasks})
	require.NoError(t, err)
	s.Abort()

	runs, err := st.ListRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusStopped, statusOf(nil))
	assert.Equal(t, StatusAborted, statusOf(installer.ErrAborted))
	assert.Equal(t, StatusFailed, statusOf(errors.New("boom")))
}
