package watcher

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/c9install/internal/installed"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	st := installed.NewStore(filepath.Join(dir, "installed"), quietLogger())
	w, err := New(st, quietLogger())
	require.NoError(t, err)
	return w
}

type reloads struct {
	mu   sync.Mutex
	ch   chan struct{}
	last installed.Record
	err  error
}

func (r *reloads) record(rec installed.Record, err error) {
	r.mu.Lock()
	r.last, r.err = rec, err
	r.mu.Unlock()
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

func (r *reloads) wait(t *testing.T) (installed.Record, error) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("record was not reloaded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.err
}

func TestNew_NilSource(t *testing.T) {
	_, err := New(nil, quietLogger())
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "installed")
	st := installed.NewStore(path, quietLogger())
	_, err := st.Load()
	require.ErrorIs(t, err, installed.ErrRecordMissing)

	w, err := New(st, quietLogger())
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	r := &reloads{ch: make(chan struct{}, 1)}
	w.OnReload = r.record

	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("Cloud9 IDE@1\nc9.ide.collab@2\n"), 0644))

	_, _ = r.wait(t)
	require.Eventually(t, func() bool {
		return st.IsInstalled("Cloud9 IDE", 1) && st.IsInstalled("c9.ide.collab", 2)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatcher_ReloadsOnRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "installed")
	require.NoError(t, os.WriteFile(path, []byte("Cloud9 IDE@1\n"), 0644))

	st := installed.NewStore(path, quietLogger())
	_, err := st.Load()
	require.NoError(t, err)

	w, err := New(st, quietLogger())
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	r := &reloads{ch: make(chan struct{}, 1)}
	w.OnReload = r.record

	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	_, err = r.wait(t)
	assert.True(t, errors.Is(err, installed.ErrRecordMissing))
	assert.False(t, st.IsInstalled("Cloud9 IDE", 1))
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)
	w.SetDebounce(10 * time.Millisecond)
	r := &reloads{ch: make(chan struct{}, 1)}
	w.OnReload = r.record

	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "history.db"), []byte("x"), 0644))

	select {
	case <-r.ch:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_StopBeforeStart(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())
	assert.NoError(t, w.Stop())
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w := newTestWatcher(t, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, w.Start())
}
