// Package dirlock holds an exclusive advisory lock on a data directory.
package dirlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the lock file created inside the locked directory.
const FileName = "LOCK"

// ErrLocked is returned when another process or Lock holds the directory.
var ErrLocked = errors.New("data directory is locked")

// Lock is an acquired directory lock.
type Lock struct {
	f    *os.File
	path string
}

// Acquire locks dir, creating it if needed. It never blocks.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	if err := osLock(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	return &Lock{f: f, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release unlocks the directory. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil

	err := osUnlock(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
