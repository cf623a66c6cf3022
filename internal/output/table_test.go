package output

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/c9install/internal/installed"
	"github.com/blackwell-systems/c9install/internal/installer"
	"github.com/blackwell-systems/c9install/internal/registry"
	"github.com/blackwell-systems/c9install/internal/store"
)

func TestRenderRecordTable(t *testing.T) {
	assert.Equal(t, "No packages installed.\n", RenderRecordTable(nil, nil))

	rec := installed.Record{"zsh-config": 3, "Cloud9 IDE": 1}
	last := map[string]*store.Run{
		"Cloud9 IDE": {StartedAt: time.Now().Add(-2 * time.Hour)},
	}
	out := RenderRecordTable(rec, last)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "Cloud9 IDE"))
	assert.Contains(t, lines[2], "2 hours ago")
	assert.True(t, strings.HasPrefix(lines[3], "zsh-config"))
	assert.Contains(t, lines[3], "unknown")
}

func TestRenderHistoryTable(t *testing.T) {
	disableColor(t)
	assert.Equal(t, "No install history.\n", RenderHistoryTable(nil))

	start := time.Now().Add(-10 * time.Minute)
	runs := []*store.Run{
		{RunID: "0f8c2a4e-1111-2222-3333-444455556666", Package: "Cloud9 IDE", Version: 1, Status: store.StatusStopped, StartedAt: start, StoppedAt: start.Add(75 * time.Second)},
		{RunID: "0f8c2a4e-1111-2222-3333-444455556666", Package: "Collab", Version: 2, Status: store.StatusFailed, Error: "task fetch failed", StartedAt: start},
	}
	out := RenderHistoryTable(runs)
	assert.Contains(t, out, "0f8c2a4e ")
	assert.Contains(t, out, "stopped")
	assert.Contains(t, out, "1m15s")
	assert.Contains(t, out, "10 minutes ago")
	assert.Contains(t, out, "task fetch failed")
}

func TestRenderManagerTable(t *testing.T) {
	assert.Equal(t, "No package managers registered.\n", RenderManagerTable(nil))

	out := RenderManagerTable([]registry.Entry{{Name: "bash", Aliases: []string{"sh", "shell"}}, {Name: "exec"}})
	assert.Contains(t, out, "bash         sh, shell\n")
	assert.Contains(t, out, "exec         -\n")
}

func TestRenderSessionTable(t *testing.T) {
	assert.Equal(t, "Nothing to install.\n", RenderSessionTable(nil))

	f := newFactory(t, func(context.Context, *installer.Task, io.Writer) error { return nil })
	s, err := f.CreateSession(context.Background(), installer.Request{
		Name:    "Cloud9 IDE",
		Version: 1,
		Populate: func(_ installer.Platform, p *installer.Populated) error {
			p.AddTask(&installer.Task{Name: "node", Manager: "exec"})
			p.AddTask(&installer.Task{Name: "docs", Manager: "bash", Optional: true, Checked: installer.Unchecked, Description: "offline docs"})
			return nil
		},
	})
	require.NoError(t, err)

	out := RenderSessionTable([]*installer.Session{s})
	assert.Contains(t, out, "populated")
	assert.Contains(t, out, "indeterminate")
	assert.Contains(t, out, "  [*] node (exec)\n")
	assert.Contains(t, out, "  [ ] docs (bash) - offline docs\n")
}

func TestFormatRelativeTime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{time.Minute + time.Second, "1 minute ago"},
		{5 * time.Hour, "5 hours ago"},
		{3 * 24 * time.Hour, "3 days ago"},
		{61 * 24 * time.Hour, "2 months ago"},
		{800 * 24 * time.Hour, "2 years ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRelativeTime(time.Now().Add(-tt.ago)))
	}
	assert.Equal(t, "never", formatRelativeTime(time.Time{}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
