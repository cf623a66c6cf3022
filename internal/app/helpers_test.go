package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/c9install/internal/arch"
)

const testManifest = `
packages:
  - name: Cloud9 IDE
    version: 1
    introduction: Core IDE components.
    tasks:
      - name: sdk
        manager: bash
        options:
          script: echo sdk-ok
      - name: docs
        manager: sh
        optional: true
        options:
          script: echo docs-ok
  - name: Collab
    version: 2
    tasks:
      - name: collab-x64
        manager: bash
        arch: [x64]
        options:
          script: echo collab-ok
      - name: collab-x86
        manager: bash
        arch: [x86]
        options:
          script: exit 9
`

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// setupWorkspace points the CLI at a fresh installer directory holding
// manifest, with an x86_64 host and silent logging.
func setupWorkspace(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	if manifest != "" {
		writeFile(t, filepath.Join(dir, "packages.yaml"), manifest)
	}

	resetFlags()
	dirFlag = dir
	logOutput = io.Discard
	setArch(t, "x86_64")

	t.Cleanup(func() {
		resetFlags()
		logOutput = os.Stderr
	})
	return dir
}

func setArch(t *testing.T, raw string) {
	t.Helper()
	old := newProber
	newProber = func() arch.Prober {
		return arch.ProbeFunc(func(context.Context) (string, error) { return raw, nil })
	}
	t.Cleanup(func() { newProber = old })
}

func resetFlags() {
	dirFlag, configFlag, logLevelFlag = "", "", ""
	installForce, installYes, installVerbose = false, false, false
	installSkip = nil
	reinstallVerbose = false
	historyLimit, historyTasks, historyPrune = 20, false, 0
	watchDaemon, watchDaemonChild, watchStop = false, false, false
	watchPIDFile, watchLogFile, watchPackage = "", "", ""
	selfcheckPackage, selfcheckTimeout = "", 30*time.Minute
}

// execute runs the root command with args, feeding stdin to prompts.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetIn(nil)
		RootCmd.SetArgs(nil)
	})
	err := RootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
