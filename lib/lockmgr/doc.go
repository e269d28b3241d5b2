// Package lockmgr linearizes mutations per location.
//
// Claims are mutated by many connections at once. The store itself makes each
// Add and Remove atomic, but the server also has to make sure that the deltas
// it sends for one location leave in the order the mutations were committed.
// The lock manager provides exactly that: while a lock for a location is held,
// no other mutation of the same location can start. There is no cross-location
// locking, work on different locations is never blocked by each other (apart
// from sharing a stripe).
//
// Implementation Approach:
//
//	The manager holds a fixed array of mutexes (stripes). A location is mapped to
//	a stripe by a bit mixing hash, so memory use does not grow with the number
//	of locations and no lock ever needs to be cleaned up. Two locations sharing
//	a stripe only lose parallelism, never correctness, because no caller ever
//	holds more than one lock at a time.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager(0)
//
//	err := locks.WithLock(4200, func() error {
//	    if err := store.Add(4200, "alice"); err != nil {
//	        return err
//	    }
//	    broadcast(...)
//	    return nil
//	})
package lockmgr
