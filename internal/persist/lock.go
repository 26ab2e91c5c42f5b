package persist

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "github.com/Aman-CERP/seekhost/internal/errors"
)

// LockFileName is created in the root directory while a process owns it.
const LockFileName = ".seekhost.lock"

// RootLock provides cross-process exclusion over a root directory using
// gofrs/flock, so two servers never recover and mutate the same tree.
type RootLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewRootLock creates a lock for root. The lock file lives at <root>/.seekhost.lock.
func NewRootLock(root string) *RootLock {
	lockPath := filepath.Join(root, LockFileName)
	return &RootLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. It fails with ERR_207_LOCK_HELD
// when another process owns the root.
func (l *RootLock) TryLock() error {
	if err := EnsureDir(filepath.Dir(l.path)); err != nil {
		return err
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return apperrors.IOFailure(apperrors.ErrCodeLockHeld, "acquire root lock", err)
	}
	if !acquired {
		return apperrors.IOFailure(apperrors.ErrCodeLockHeld,
			fmt.Sprintf("root %s is locked by another process", filepath.Dir(l.path)), nil).
			WithSuggestion("Stop the other seekhost process or use a different storage root")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. It's safe to call Unlock multiple times.
func (l *RootLock) Unlock() error {
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
