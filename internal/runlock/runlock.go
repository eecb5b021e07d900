// Package runlock keeps two oppradar processes from writing to the same store
// at once.
package runlock

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another process already holds the lock.
var ErrHeld = errors.New("another oppradar run holds the lock")

// Lock is an acquired advisory file lock. The zero value (from an empty path)
// holds nothing and releases cleanly.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock at path without blocking. An empty path disables
// locking.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		return &Lock{}, nil
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHeld, path)
	}
	return &Lock{fl: fl}, nil
}

// Path is the lock file, or "" when locking is disabled.
func (l *Lock) Path() string {
	if l.fl == nil {
		return ""
	}
	return l.fl.Path()
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
