package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/c9install/internal/installed"
)

// DefaultDebounce is how long the Watcher waits after the last event before
// reloading.
const DefaultDebounce = 200 * time.Millisecond

// Source is the record the Watcher reloads.
type Source interface {
	Path() string
	Reload() (installed.Record, error)
}

// Watcher reloads the installed record whenever its file changes.
type Watcher struct {
	source   Source
	logger   *log.Logger
	debounce time.Duration

	// OnReload is called after every reload attempt, from the watcher
	// goroutine. It is optional.
	OnReload func(installed.Record, error)

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a new Watcher instance.
func New(source Source, logger *log.Logger) (*Watcher, error) {
	if source == nil {
		return nil, fmt.Errorf("record source cannot be nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		source:   source,
		logger:   logger.WithPrefix("watcher"),
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period before a reload. It must be called
// before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start watches the record's directory. The directory must exist; the
// record file itself may not exist yet.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(w.source.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.run()

	w.logger.Info("watching installed record", "path", w.source.Path())
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	target := filepath.Clean(w.source.Path())
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			w.logger.Debug("record changed", "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			if fire != nil {
				// Flush a pending change before exiting.
				w.reload()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	rec, err := w.source.Reload()
	switch {
	case errors.Is(err, installed.ErrRecordMissing):
		w.logger.Info("installed record removed")
	case err != nil:
		w.logger.Warn("failed to reload installed record", "error", err)
	default:
		w.logger.Info("installed record reloaded", "packages", len(rec))
	}
	if w.OnReload != nil {
		w.OnReload(rec, err)
	}
}

// Stop halts the watcher, applying any change still being debounced.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
