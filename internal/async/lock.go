package async

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WriterLock enforces the single-active-writer discipline over the
// index directory across process restarts, via github.com/gofrs/flock.
// Adapted from the teacher's embed.FileLock (same cross-platform
// TryLock/Unlock shape), repurposed here from guarding a model download
// to guarding ingest's commit path per spec.md §5's "single-writer
// discipline for the index".
type WriterLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewWriterLock returns a lock guarding <dir>/.memex.lock.
func NewWriterLock(dir string) *WriterLock {
	lockPath := filepath.Join(dir, ".memex.lock")
	return &WriterLock{path: lockPath, flock: flock.New(lockPath)}
}

// TryLock attempts to acquire the writer lock without blocking.
func (l *WriterLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire writer lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked WriterLock.
func (l *WriterLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release writer lock: %w", err)
	}
	l.locked = false
	return nil
}

func (l *WriterLock) IsLocked() bool { return l.locked }
func (l *WriterLock) Path() string   { return l.path }
