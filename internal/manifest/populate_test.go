package manifest

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/c9install/internal/arch"
	"github.com/blackwell-systems/c9install/internal/installer"
)

type nopStore struct{ ready chan struct{} }

func (s nopStore) Ready() <-chan struct{}     { return s.ready }
func (nopStore) IsInstalled(string, int) bool { return false }
func (nopStore) MarkInstalled(string, int)    {}
func (nopStore) Persist()                     {}

type fixedArch arch.Tag

func (fixedArch) Trigger() {}
func (a fixedArch) OnResolved(fn func(arch.Tag)) {
	fn(arch.Tag(a))
}

// captureTasks runs p's populator through a real session and returns the
// resulting task list.
func captureTasks(t *testing.T, p *Package, platform installer.Platform) []*installer.Task {
	t.Helper()
	ready := make(chan struct{})
	close(ready)

	f, err := installer.NewFactory(installer.Options{
		Store: nopStore{ready: ready},
		Arch:  fixedArch(platform.Arch),
		Executor: installer.ExecutorFunc(func(context.Context, *installer.Task, io.Writer) error {
			return nil
		}),
		Logger:      log.NewWithOptions(io.Discard, log.Options{}),
		OS:          platform.OS,
		ManualStart: true,
	})
	require.NoError(t, err)
	f.MarkSystemReady()

	s, err := f.CreateSession(context.Background(), p.Request())
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NoError(t, s.Err())
	return s.Tasks()
}
