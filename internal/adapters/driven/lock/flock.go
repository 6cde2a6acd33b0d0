// Package lock provides per-phase advisory file locks.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure Locker implements the interface.
var _ driven.PhaseLocker = (*Locker)(nil)

// Locker hands out flock-backed locks stored under a directory.
type Locker struct {
	dir string
}

// NewLocker creates the lock directory if needed.
// If dir is empty, defaults to ~/.archivist/locks.
func NewLocker(dir string) (*Locker, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".archivist", "locks")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &Locker{dir: dir}, nil
}

// Lock returns the lock for phase. It is not acquired yet.
func (l *Locker) Lock(phase string) driven.PhaseLock {
	return flock.New(l.Path(phase))
}

// Path returns the lock file for phase.
func (l *Locker) Path(phase string) string {
	return filepath.Join(l.dir, phase+".lock")
}
