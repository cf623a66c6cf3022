package managers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/c9install/internal/installer"
)

func scriptTask(script string, extra map[string]any) *installer.Task {
	opts := map[string]any{"script": script}
	for k, v := range extra {
		opts[k] = v
	}
	return &installer.Task{Name: "script", Manager: BashName, Options: opts}
}

func TestBash_RunsScript(t *testing.T) {
	var out strings.Builder
	err := (&Bash{}).Execute(context.Background(), scriptTask(`echo "installing $1"; echo done`, map[string]any{
		"args": []any{"node"},
	}), &out)
	require.NoError(t, err)
	assert.Equal(t, "installing node\ndone\n", out.String())
}

func TestBash_Env(t *testing.T) {
	var out strings.Builder
	err := (&Bash{}).Execute(context.Background(), scriptTask(`echo "$C9_PREFIX"`, map[string]any{
		"env": map[string]any{"C9_PREFIX": "/opt/c9"},
	}), &out)
	require.NoError(t, err)
	assert.Equal(t, "/opt/c9\n", out.String())
}

func TestBash_Dir(t *testing.T) {
	dir := t.TempDir()
	var out strings.Builder
	require.NoError(t, (&Bash{Dir: dir}).Execute(context.Background(), scriptTask("pwd", nil), &out))
	assert.Equal(t, dir, strings.TrimSpace(out.String()))
}

func TestBash_ExitStatus(t *testing.T) {
	err := (&Bash{}).Execute(context.Background(), scriptTask("echo failing >&2; exit 3", nil), &strings.Builder{})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
}

func TestBash_ParseError(t *testing.T) {
	err := (&Bash{}).Execute(context.Background(), scriptTask("if then fi (", nil), &strings.Builder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse script")
}

func TestBash_MissingScript(t *testing.T) {
	err := (&Bash{}).Execute(context.Background(), &installer.Task{Manager: BashName}, &strings.Builder{})
	assert.Error(t, err)
}
