package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/taxidx/internal/errors"
)

// IndexLock is a cross-process lock on an index location. It keeps two
// ingestion runs from writing the same output concurrently. The lock file
// sits next to the index, not inside it.
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewIndexLock creates a lock for the index at indexPath.
func NewIndexLock(indexPath string) *IndexLock {
	lockPath := filepath.Clean(indexPath) + ".lock"
	return &IndexLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. A lock held elsewhere is
// reported as ERR_207_INDEX_LOCKED.
func (l *IndexLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return errors.New(errors.ErrCodeIndexOpen, "failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return errors.New(errors.ErrCodeIndexLocked,
			fmt.Sprintf("failed to acquire lock %s", l.path), err)
	}
	if !acquired {
		return errors.New(errors.ErrCodeIndexLocked,
			fmt.Sprintf("index is in use by another process (%s)", l.path), nil).
			WithSuggestion("Wait for the other ingestion to finish or choose a different output")
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call on an unlocked IndexLock.
func (l *IndexLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *IndexLock) Path() string {
	return l.path
}
