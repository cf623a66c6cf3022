package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/c9install/internal/watcher"
)

func TestWatchCommand(t *testing.T) {
	assert.Equal(t, "watch", watchCmd.Use)
	assert.NotEmpty(t, watchCmd.Short)
	assert.NotEmpty(t, watchCmd.Long)
	assert.NotEmpty(t, watchCmd.Example)
	assert.NotNil(t, watchCmd.RunE)
}

func TestWatchCommandFlags(t *testing.T) {
	tests := []struct {
		name         string
		flagName     string
		shouldHidden bool
	}{
		{name: "daemon flag", flagName: "daemon"},
		{name: "daemon-child flag", flagName: "daemon-child", shouldHidden: true},
		{name: "pid-file flag", flagName: "pid-file"},
		{name: "log-file flag", flagName: "log-file"},
		{name: "stop flag", flagName: "stop"},
		{name: "package flag", flagName: "package"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := watchCmd.Flags().Lookup(tt.flagName)
			require.NotNil(t, flag, "flag %q not registered", tt.flagName)
			assert.NotEmpty(t, flag.Usage)
			assert.Equal(t, tt.shouldHidden, flag.Hidden)
		})
	}
}

func TestWatchStop_NotRunning(t *testing.T) {
	dir := setupWorkspace(t, "")

	out, err := execute(t, "", "watch", "--stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")
	assert.Equal(t, filepath.Join(dir, "watch.pid"), watchPIDFile)
}

func TestWatchStop_StalePIDFile(t *testing.T) {
	dir := setupWorkspace(t, "")
	pidFile := filepath.Join(dir, "custom.pid")
	// An unparseable PID file counts as not running.
	writeFile(t, pidFile, "not-a-pid\n")

	out, err := execute(t, "", "watch", "--stop", "--pid-file", pidFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")
}

func TestWatch_UnknownPackage(t *testing.T) {
	setupWorkspace(t, testManifest)

	_, err := execute(t, "", "watch", "--package", "Nope")
	assert.Error(t, err)
}

// newTestKeeper loads the workspace record and returns the watcher that
// keeps the first manifest package installed.
func newTestKeeper(t *testing.T) (*appContext, *watcher.Watcher) {
	t.Helper()
	a, err := newAppContext()
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NoError(t, a.loadRecord())

	pkg, err := corePackage(a.cfg.Manifest, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	w, err := newRecordWatcher(ctx, a, pkg)
	require.NoError(t, err)
	return a, w
}

func TestWatch_ReinstallsCoreWhenRecordRemoved(t *testing.T) {
	dir := setupWorkspace(t, testManifest)
	path := filepath.Join(dir, "installed")
	writeFile(t, path, "Cloud9 IDE@1\nCollab@2\n")

	a, w := newTestKeeper(t)
	w.SetDebounce(10 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && string(data) == "Cloud9 IDE@1\n"
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, a.record.IsInstalled("Cloud9 IDE", 1))
	assert.False(t, a.record.IsInstalled("Collab", 2))
}

func TestWatch_ReinstallsCoreWhenVersionDrops(t *testing.T) {
	dir := setupWorkspace(t, testManifest)
	path := filepath.Join(dir, "installed")
	writeFile(t, path, "Cloud9 IDE@1\n")

	a, w := newTestKeeper(t)

	writeFile(t, path, "Cloud9 IDE@0\nCollab@2\n")
	rec, err := a.record.Reload()
	w.OnReload(rec, err)

	assert.Equal(t, "Cloud9 IDE@1\nCollab@2\n", readFile(t, path))
	runs := history(t, dir)
	require.Len(t, runs, 1)
	assert.Equal(t, "Cloud9 IDE", runs[0].Package)
}

func TestWatch_NoReinstallWhenCorePresent(t *testing.T) {
	dir := setupWorkspace(t, testManifest)
	path := filepath.Join(dir, "installed")
	writeFile(t, path, "Cloud9 IDE@1\nCollab@2\n")

	a, w := newTestKeeper(t)

	// Dropping another package does not touch the core package.
	writeFile(t, path, "Cloud9 IDE@1\n")
	rec, err := a.record.Reload()
	w.OnReload(rec, err)

	// A read error keeps the previous record and installs nothing.
	w.OnReload(nil, errors.New("permission denied"))

	assert.Equal(t, "Cloud9 IDE@1\n", readFile(t, path))
	assert.Empty(t, history(t, dir))
}
