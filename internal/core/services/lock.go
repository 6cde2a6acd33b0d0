package services

import (
	"fmt"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/logger"
)

// RunLocked runs fn while holding the lock for phase. It returns
// domain.ErrPhaseLocked without running fn if another process holds it.
// A nil locker runs fn unguarded.
func RunLocked(locker driven.PhaseLocker, phase domain.Phase, fn func() error) error {
	if locker == nil {
		return fn()
	}
	lock := locker.Lock(string(phase))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", phase, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", phase, domain.ErrPhaseLocked)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release %s lock: %v", phase, err)
		}
	}()
	return fn()
}
