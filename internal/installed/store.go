package installed

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrRecordMissing is returned by Load when no record has been written yet.
// It is not fatal: the store is usable and treats every package as not
// installed.
var ErrRecordMissing = errors.New("installed record not found")

// Store holds the installed record in memory and writes it back after every
// successful install.
type Store struct {
	path   string
	logger *log.Logger

	mu     sync.RWMutex
	record Record

	readyOnce sync.Once
	ready     chan struct{}

	// writeFile is replaced in tests to simulate write failures.
	writeFile func(path string, data []byte) error
}

// NewStore creates a Store backed by the file at path. Nothing is read
// until Load is called.
func NewStore(path string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		path:      path,
		logger:    logger.WithPrefix("installed"),
		record:    make(Record),
		ready:     make(chan struct{}),
		writeFile: writeFileAtomic,
	}
}

// Path returns the location of the durable record.
func (s *Store) Path() string {
	return s.path
}

// Load reads the durable record and marks the store ready. A missing file
// yields an empty record and ErrRecordMissing. The store is marked ready
// even when reading fails so that waiters are never stranded.
func (s *Store) Load() (Record, error) {
	defer s.readyOnce.Do(func() { close(s.ready) })
	return s.read()
}

// Reload re-reads the durable record, replacing the in-memory copy. It is
// used when the file changes underneath a running process. A removed file
// empties the record; any other read error leaves it as it was.
func (s *Store) Reload() (Record, error) {
	return s.read()
}

func (s *Store) read() (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.replace(make(Record))
			s.logger.Debug("no installed record yet", "path", s.path)
			return make(Record), ErrRecordMissing
		}
		return s.Snapshot(), fmt.Errorf("failed to read installed record: %w", err)
	}

	record, skipped := Parse(data)
	for _, line := range skipped {
		s.logger.Warn("skipping malformed record entry", "path", s.path, "entry", line)
	}
	s.replace(record)
	return record.Clone(), nil
}

func (s *Store) replace(r Record) {
	s.mu.Lock()
	s.record = r
	s.mu.Unlock()
}

// Ready is closed once the first Load has completed.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// IsInstalled reports whether name is recorded at exactly version.
func (s *Store) IsInstalled(name string, version int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.record[name]
	return ok && v == version
}

// Version returns the recorded version for name.
func (s *Store) Version(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.record[name]
	return v, ok
}

// Snapshot returns a copy of the in-memory record.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Clone()
}

// MarkInstalled records name at version in memory. Call Persist to write it.
func (s *Store) MarkInstalled(name string, version int) {
	s.mu.Lock()
	s.record[name] = version
	s.mu.Unlock()
}

// Forget removes name from the in-memory record.
func (s *Store) Forget(name string) {
	s.mu.Lock()
	delete(s.record, name)
	s.mu.Unlock()
}

// Persist writes the in-memory record to disk. Write failures are logged and
// dropped; the in-memory record is left as is, so a package can be treated
// as installed for the rest of the process even if the write failed.
func (s *Store) Persist() {
	s.mu.RLock()
	data := Serialize(s.record)
	s.mu.RUnlock()

	if err := s.writeFile(s.path, data); err != nil {
		s.logger.Warn("failed to persist installed record", "path", s.path, "error", err)
	}
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
