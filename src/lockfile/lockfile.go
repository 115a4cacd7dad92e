// Package lockfile serializes backup-root access between hubkeep
// invocations. The scheduler normally guarantees one run at a time; the
// advisory lock turns a scheduling mistake into a clean error instead of
// two writers in the same catalog.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Name is the lock file inside the backup root.
const Name = ".hubkeep.lock"

// Lock holds the backup-root lock until released.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock without blocking; a held lock is an error.
func Acquire(backupRoot string) (*Lock, error) {
	if err := os.MkdirAll(backupRoot, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(backupRoot, Name))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock backup root: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("backup root %s is in use by another hubkeep run", backupRoot)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
