// Package lock provides the process-wide execution lock that keeps two
// snapkeep runs from touching the same backup directories at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by Acquire when another process holds the lock.
var ErrLocked = errors.New("another snapkeep run holds the lock")

// Lock is a held advisory file lock. The kernel drops it when the process
// exits, so a killed run never leaves a stale lock behind.
type Lock struct {
	path string
	fl   *flock.Flock
	once sync.Once
}

// Acquire takes the lock at path without blocking. It fails with ErrLocked
// when the lock is held elsewhere.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return &Lock{path: path, fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. Calling it more than once is safe.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		if uerr := l.fl.Unlock(); uerr != nil {
			err = fmt.Errorf("releasing lock %s: %w", l.path, uerr)
		}
	})
	return err
}
