package lockmgr

import (
	"sync"
)

const (
	// DefaultStripes is the number of stripes used by NewLockManager when 0 is passed
	DefaultStripes = 256
)

type stripedLockManager struct {
	stripes []sync.Mutex
	mask    uint64
}

// NewLockManager creates a lock manager with the given number of stripes.
// The number is rounded up to the next power of two.
func NewLockManager(stripes int) ILockManager {
	if stripes <= 0 {
		stripes = DefaultStripes
	}
	n := nextPowerOfTwo(uint64(stripes))
	return &stripedLockManager{
		stripes: make([]sync.Mutex, n),
		mask:    n - 1,
	}
}

func (lm *stripedLockManager) AcquireLock(location int) {
	lm.stripe(location).Lock()
}

func (lm *stripedLockManager) ReleaseLock(location int) {
	lm.stripe(location).Unlock()
}

func (lm *stripedLockManager) WithLock(location int, fn func() error) error {
	lm.AcquireLock(location)
	defer lm.ReleaseLock(location)
	return fn()
}

// stripe returns the mutex guarding location
func (lm *stripedLockManager) stripe(location int) *sync.Mutex {
	return &lm.stripes[mix64(uint64(location))&lm.mask]
}
