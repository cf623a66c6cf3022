package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/c9install/internal/store"
)

func TestStatus_FreshWorkspace(t *testing.T) {
	setupWorkspace(t, testManifest)

	out, err := execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Watcher:")
	assert.Contains(t, out, "stopped")
	assert.Contains(t, out, "0 packages")
	assert.Contains(t, out, "Pending:")
	assert.Contains(t, out, "  Cloud9 IDE 1\n")
	assert.Contains(t, out, "  Collab 2\n")
}

func TestStatus_AfterInstall(t *testing.T) {
	dir := setupWorkspace(t, testManifest)
	writeFile(t, filepath.Join(dir, "installed"), "Cloud9 IDE@1\nCollab@1\n")

	out, err := execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "2 packages")
	assert.Contains(t, out, "Cloud9 IDE")
	assert.Contains(t, out, "  Collab 2 (installed 1)\n")
	assert.NotContains(t, out, "  Cloud9 IDE 1\n")
}

func TestArch(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"x86_64", "x64\n"},
		{"i686", "x86\n"},
		{"armv7l", "x86\n"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			setupWorkspace(t, "")
			setArch(t, tt.raw)

			out, err := execute(t, "", "arch")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestHistory(t *testing.T) {
	dir := setupWorkspace(t, testManifest)
	_, err := execute(t, "", "install", "--yes")
	require.NoError(t, err)

	resetFlags()
	dirFlag = dir
	out, err := execute(t, "", "history", "--tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "Cloud9 IDE")
	assert.Contains(t, out, "stopped")
	assert.Contains(t, out, "sdk")
	assert.Contains(t, out, "collab-x64")

	resetFlags()
	dirFlag = dir
	out, err = execute(t, "", "history", "--prune", "1ns")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 2 runs")
	assert.Empty(t, history(t, dir))
}

func TestHistory_NotInitialized(t *testing.T) {
	setupWorkspace(t, "")

	_, err := execute(t, "", "history")
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}

func TestManagers(t *testing.T) {
	dir := setupWorkspace(t, "")
	writeFile(t, filepath.Join(dir, "aliases"), "# extra\nzsh=bash\n")

	out, err := execute(t, "", "managers")
	require.NoError(t, err)
	assert.Contains(t, out, "brew")
	assert.Contains(t, out, "homebrew")
	assert.Contains(t, out, "exec")
	assert.Contains(t, out, "zsh")
}

func TestSelfcheck(t *testing.T) {
	dir := setupWorkspace(t, testManifest)

	out, err := execute(t, "", "selfcheck")
	require.NoError(t, err)
	assert.Contains(t, out, "Ready (installed Cloud9 IDE 1)")
	assert.Equal(t, "Cloud9 IDE@1\n", readFile(t, filepath.Join(dir, "installed")))

	resetFlags()
	dirFlag = dir
	out, err = execute(t, "", "selfcheck")
	require.NoError(t, err)
	assert.Contains(t, out, "Ready\n")
}

func TestSelfcheck_ManualStart(t *testing.T) {
	dir := setupWorkspace(t, testManifest)
	writeFile(t, filepath.Join(dir, "config.toml"), "auto_start = false\n")

	out, err := execute(t, "", "selfcheck", "--package", "Collab")
	require.NoError(t, err)
	assert.Contains(t, out, "Ready (installed Collab 2)")
}

func TestSelfcheck_Failure(t *testing.T) {
	setupWorkspace(t, `
packages:
  - name: core
    version: 1
    tasks:
      - name: fail
        manager: bash
        options:
          script: exit 1
`)

	out, err := execute(t, "", "selfcheck")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap core")
	assert.NotContains(t, out, "Ready")
}
