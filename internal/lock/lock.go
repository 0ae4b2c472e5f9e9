// Package lock provides cross-process exclusivity over a CodeVault
// project directory, preventing concurrent indexing and search sessions
// against the same project from corrupting shared state.
//
// It wraps github.com/gofrs/flock around a single lock file, with
// Lock/TryLock/Unlock and explicit locked-state tracking so Unlock is
// safe to call more than once. Lock is context-aware (PollInterval
// retries against ctx.Done()) since an indexing pass or MCP session needs
// to give up on a held lock without hanging the process forever.
package lock

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/codevault/codevault/internal/cverr"
)

// FileName is the advisory lock file created under a project's
// ".codevault" directory.
const FileName = ".lock"

// PollInterval is how often a blocking Lock retries while waiting for
// ctx to expire or the lock to free up.
const PollInterval = 100 * time.Millisecond

// ProjectLock guards a ".codevault" directory against concurrent
// indexing/search sessions from other processes.
type ProjectLock struct {
	path   string
	fl     *flock.Flock
	locked bool
}

// New builds a ProjectLock rooted at <dir>/.lock, creating dir if needed.
func New(dir string) (*ProjectLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cverr.Wrap(cverr.KindIndexingError, "create lock directory", err)
	}
	path := filepath.Join(dir, FileName)
	return &ProjectLock{path: path, fl: flock.New(path)}, nil
}

// TryLock attempts to acquire the lock without blocking. It returns
// false (no error) if another process already holds it.
func (l *ProjectLock) TryLock() (bool, error) {
	acquired, err := l.fl.TryLock()
	if err != nil {
		return false, cverr.Wrap(cverr.KindLockHeld, "acquire project lock", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Lock blocks until the lock is acquired or ctx is done, polling every
// PollInterval. It returns a KindLockHeld error if ctx expires first.
func (l *ProjectLock) Lock(ctx context.Context) error {
	for {
		acquired, err := l.TryLock()
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		select {
		case <-ctx.Done():
			return cverr.Wrap(cverr.KindLockHeld, "project is locked by another process", ctx.Err())
		case <-time.After(PollInterval):
		}
	}
}

// Unlock releases the lock. Safe to call on an unlocked ProjectLock.
func (l *ProjectLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return cverr.Wrap(cverr.KindIndexingError, "release project lock", err)
	}
	l.locked = false
	return nil
}

// IsLocked reports whether this ProjectLock currently holds the lock.
func (l *ProjectLock) IsLocked() bool {
	return l.locked
}

// Path returns the lock file's path.
func (l *ProjectLock) Path() string {
	return l.path
}
