package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
)

// LockFileName is the lock file created in the data root.
const LockFileName = ".textdex.lock"

// RootLock provides cross-process exclusive ownership of a data root using
// gofrs/flock, so two textdex processes never open the same corpora.
type RootLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewRootLock creates a lock for the given data root.
// The lock file will be created at <root>/.textdex.lock
func NewRootLock(root string) *RootLock {
	lockPath := filepath.Join(root, LockFileName)
	return &RootLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Acquire takes the lock without blocking. It fails with ErrCodeRootLocked
// when another process holds it.
func (l *RootLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data root: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return txerrors.New(txerrors.ErrCodeRootLocked,
			fmt.Sprintf("data root %s is in use by another process", filepath.Dir(l.path)), nil).
			WithDetail("lock", l.path)
	}

	l.locked = true
	return nil
}

// Release releases the lock.
// It's safe to call Release multiple times or on an unlocked RootLock.
func (l *RootLock) Release() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *RootLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *RootLock) IsLocked() bool {
	return l.locked
}
