package lockmgr

// ILockManager serializes work per location.
// Work on different locations may proceed in parallel.
type ILockManager interface {
	// AcquireLock blocks until the lock for the given location is held.
	AcquireLock(location int)

	// ReleaseLock releases the lock for the given location.
	// Releasing a lock that is not held is a programming error and panics.
	ReleaseLock(location int)

	// WithLock runs fn while holding the lock for the given location and returns its error.
	WithLock(location int, fn func() error) error
}
