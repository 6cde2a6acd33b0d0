package driven

// PhaseLock guards a pipeline phase against concurrent invocation on one host.
type PhaseLock interface {
	// TryLock acquires the lock without blocking.
	// Returns false if another process holds it.
	TryLock() (bool, error)

	// Unlock releases the lock.
	Unlock() error
}

// PhaseLocker hands out the lock for a named phase.
type PhaseLocker interface {
	Lock(phase string) PhaseLock
}
