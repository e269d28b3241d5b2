package testing

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"sync"
	"sync/atomic"
	"testing"
)

// StoreFactory opens a store whose data lives in dir.
// Opening the same dir twice must yield the same claims.
type StoreFactory func(dir string) (claimstore.IClaimStore, error)

// RunClaimStoreTests runs the conformance test suite for an IClaimStore implementation.
func RunClaimStoreTests(t *testing.T, name string, factory StoreFactory) {
	open := func(t *testing.T) claimstore.IClaimStore {
		s, err := factory(t.TempDir())
		if err != nil {
			t.Fatalf("Failed to open store: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run(name, func(t *testing.T) {
		t.Run("AddExists", func(t *testing.T) {
			testAddExists(t, open(t))
		})

		t.Run("Conflict", func(t *testing.T) {
			testConflict(t, open(t))
		})

		t.Run("RemoveNotFound", func(t *testing.T) {
			testRemoveNotFound(t, open(t))
		})

		t.Run("RemoveUnauthorized", func(t *testing.T) {
			testRemoveUnauthorized(t, open(t))
		})

		t.Run("SystemRemove", func(t *testing.T) {
			testSystemRemove(t, open(t))
		})

		t.Run("OwnerQueries", func(t *testing.T) {
			testOwnerQueries(t, open(t))
		})

		t.Run("NegativeLocations", func(t *testing.T) {
			testNegativeLocations(t, open(t))
		})

		t.Run("ConcurrentAdd", func(t *testing.T) {
			testConcurrentAdd(t, open(t))
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustAdd(t *testing.T, s claimstore.IClaimStore, location int, owner string) {
	t.Helper()
	if err := s.Add(location, owner); err != nil {
		t.Fatalf("Add(%d, %q) failed: %v", location, owner, err)
	}
}

func expectRecord(t *testing.T, s claimstore.IClaimStore, location int, owner string) {
	t.Helper()
	record, found, err := s.FindByLocation(location)
	if err != nil {
		t.Fatalf("FindByLocation(%d) failed: %v", location, err)
	}
	if !found {
		t.Fatalf("Expected claim at %d, got none", location)
	}
	if record.Owner != owner || record.Location != location {
		t.Errorf("Expected {%d %s}, got %+v", location, owner, record)
	}
}

func expectAbsent(t *testing.T, s claimstore.IClaimStore, location int) {
	t.Helper()
	ok, err := s.Exists(location)
	if err != nil {
		t.Fatalf("Exists(%d) failed: %v", location, err)
	}
	if ok {
		t.Errorf("Expected no claim at %d", location)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testAddExists(t *testing.T, s claimstore.IClaimStore) {
	expectAbsent(t, s, 4200)
	mustAdd(t, s, 4200, "alice")

	ok, err := s.Exists(4200)
	if err != nil || !ok {
		t.Errorf("Expected claim at 4200, got ok=%v err=%v", ok, err)
	}
	expectRecord(t, s, 4200, "alice")
}

func testConflict(t *testing.T, s claimstore.IClaimStore) {
	mustAdd(t, s, 4200, "alice")

	err := s.Add(4200, "bob")
	if !errors.Is(err, claimstore.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	// the first claim is untouched
	expectRecord(t, s, 4200, "alice")

	// a duplicate by the same owner is a conflict as well
	if err := s.Add(4200, "alice"); !errors.Is(err, claimstore.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate add, got %v", err)
	}
}

func testRemoveNotFound(t *testing.T, s claimstore.IClaimStore) {
	err := s.Remove(999, "alice")
	if !errors.Is(err, claimstore.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	mustAdd(t, s, 1, "alice")
	if err := s.Remove(1, "alice"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := s.Remove(1, "alice"); !errors.Is(err, claimstore.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after removal, got %v", err)
	}
}

func testRemoveUnauthorized(t *testing.T, s claimstore.IClaimStore) {
	mustAdd(t, s, 4200, "alice")

	err := s.Remove(4200, "bob")
	if !errors.Is(err, claimstore.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	expectRecord(t, s, 4200, "alice")

	if err := s.Remove(4200, "alice"); err != nil {
		t.Fatalf("Remove by owner failed: %v", err)
	}
	expectAbsent(t, s, 4200)

	// the location can be claimed again
	mustAdd(t, s, 4200, "bob")
	expectRecord(t, s, 4200, "bob")
}

func testSystemRemove(t *testing.T, s claimstore.IClaimStore) {
	mustAdd(t, s, 7, "alice")

	if err := s.Remove(7, claimstore.SystemRequester); err != nil {
		t.Fatalf("System remove failed: %v", err)
	}
	expectAbsent(t, s, 7)

	if err := s.Remove(7, claimstore.SystemRequester); !errors.Is(err, claimstore.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testOwnerQueries(t *testing.T, s claimstore.IClaimStore) {
	mustAdd(t, s, 30, "alice")
	mustAdd(t, s, 10, "alice")
	mustAdd(t, s, 20, "bob")
	mustAdd(t, s, 5, "carol")

	records, err := s.ListByOwner("alice")
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(records) != 2 || records[0].Location != 10 || records[1].Location != 30 {
		t.Errorf("Expected alice claims [10 30], got %+v", records)
	}

	home, found, err := s.FindByOwner("alice")
	if err != nil || !found {
		t.Fatalf("FindByOwner failed: found=%v err=%v", found, err)
	}
	if home.Location != 10 {
		t.Errorf("Expected lowest location 10, got %d", home.Location)
	}

	if _, found, _ := s.FindByOwner("dave"); found {
		t.Errorf("Expected no claim for dave")
	}
	if records, _ := s.ListByOwner("dave"); len(records) != 0 {
		t.Errorf("Expected no claims for dave, got %+v", records)
	}

	// owner names that are prefixes of each other must not mix
	mustAdd(t, s, 40, "al")
	if records, _ := s.ListByOwner("al"); len(records) != 1 || records[0].Location != 40 {
		t.Errorf("Expected al claims [40], got %+v", records)
	}

	all, err := s.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	want := []int{5, 10, 20, 30, 40}
	if len(all) != len(want) {
		t.Fatalf("Expected %d claims, got %d", len(want), len(all))
	}
	for i, location := range want {
		if all[i].Location != location {
			t.Errorf("Expected location %d at index %d, got %d", location, i, all[i].Location)
		}
	}
}

func testNegativeLocations(t *testing.T, s claimstore.IClaimStore) {
	mustAdd(t, s, -1, "alice")
	mustAdd(t, s, 0, "alice")
	mustAdd(t, s, -100, "alice")

	records, err := s.ListByOwner("alice")
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	want := []int{-100, -1, 0}
	for i, location := range want {
		if i >= len(records) || records[i].Location != location {
			t.Fatalf("Expected locations %v, got %+v", want, records)
		}
	}
	expectRecord(t, s, -100, "alice")
}

func testConcurrentAdd(t *testing.T, s claimstore.IClaimStore) {
	const contenders = 16
	var wins, conflicts atomic.Int32

	var wg sync.WaitGroup
	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func(i int) {
			defer wg.Done()
			err := s.Add(4200, fmt.Sprintf("user-%d", i))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, claimstore.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("Expected exactly 1 successful add, got %d", wins.Load())
	}
	if conflicts.Load() != contenders-1 {
		t.Errorf("Expected %d conflicts, got %d", contenders-1, conflicts.Load())
	}
}

func testReopen(t *testing.T, factory StoreFactory) {
	dir := t.TempDir()

	s, err := factory(dir)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	mustAdd(t, s, 1, "alice")
	mustAdd(t, s, 2, "bob")
	mustAdd(t, s, 3, "alice")
	if err := s.Remove(2, "bob"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = factory(dir)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()

	expectRecord(t, s, 1, "alice")
	expectRecord(t, s, 3, "alice")
	expectAbsent(t, s, 2)

	if err := s.Add(1, "bob"); !errors.Is(err, claimstore.ErrConflict) {
		t.Errorf("Expected ErrConflict after reopen, got %v", err)
	}
}
