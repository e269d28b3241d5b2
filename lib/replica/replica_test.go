package replica

import (
	"github.com/ValentinKolb/dSync/lib/world"
	"sync"
	"testing"
)

// failingWorld wraps a MemoryWorld and refuses to spawn claims at chosen locations
type failingWorld struct {
	*world.MemoryWorld
	mu   sync.Mutex
	fail map[int]bool
}

func (w *failingWorld) SpawnClaim(view world.ClaimView, faction world.Faction) (world.Entity, error) {
	w.mu.Lock()
	fail := w.fail[view.Location]
	w.mu.Unlock()
	if fail {
		return nil, world.ErrEntityConstruction
	}
	return w.MemoryWorld.SpawnClaim(view, faction)
}

func (w *failingWorld) failAt(location int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail[location] = true
}

// noticeDialogs records notifications, the replica never asks or waits
type noticeDialogs struct {
	mu      sync.Mutex
	notices []string
}

func (d *noticeDialogs) PushWaiting(string, string) {}
func (d *noticeDialogs) PopWaiting(string)          {}
func (d *noticeDialogs) AskYesNo(_ string, _ func(), no func()) {
	no()
}
func (d *noticeDialogs) Notify(message string, kind world.NoticeKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if kind == world.NoticeError {
		d.notices = append(d.notices, message)
	}
}

func (d *noticeDialogs) errors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.notices...)
}

func newTestReplica(fail ...int) (*Replica, *failingWorld) {
	r, w, _ := newTestReplicaWithDialogs(fail...)
	return r, w
}

func newTestReplicaWithDialogs(fail ...int) (*Replica, *failingWorld, *noticeDialogs) {
	w := &failingWorld{MemoryWorld: world.NewMemoryWorld(""), fail: map[int]bool{}}
	for _, l := range fail {
		w.fail[l] = true
	}
	d := &noticeDialogs{}
	return NewReplica(w, world.ScoreFactionResolver{Self: "me"}, d), w, d
}

func TestSnapshotAppliedOnReady(t *testing.T) {
	r, w := newTestReplica()

	r.LoadSnapshot([]world.ClaimView{
		{Location: 1, Owner: "alice", RelationshipScore: 80},
		{Location: 2, Owner: "bob", RelationshipScore: -80},
		{Location: 3, Owner: "me"},
	})

	if r.Len() != 0 {
		t.Fatalf("Expected empty replica before ready, got %d entries", r.Len())
	}

	r.MarkReady()

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Faction != world.FactionAlly || entries[1].Faction != world.FactionEnemy {
		t.Errorf("Unexpected factions %s, %s", entries[0].Faction, entries[1].Faction)
	}
	if len(w.Claims()) != 2 {
		t.Errorf("Expected 2 spawned claim markers, got %d", len(w.Claims()))
	}
}

func TestSnapshotSkipsFailingEntries(t *testing.T) {
	r, w, d := newTestReplicaWithDialogs(3)
	r.MarkReady()

	r.LoadSnapshot([]world.ClaimView{
		{Location: 1, Owner: "alice"},
		{Location: 2, Owner: "bob"},
		{Location: 3, Owner: "carol"},
		{Location: 4, Owner: "dave"},
		{Location: 5, Owner: "erin"},
	})

	if r.Len() != 4 {
		t.Fatalf("Expected 4 entries, got %d", r.Len())
	}
	if _, ok := r.Get(3); ok {
		t.Errorf("Expected failing entry to be skipped")
	}
	for _, location := range []int{4, 5} {
		if _, ok := r.Get(location); !ok {
			t.Errorf("Expected entry %d after the failing one to be loaded", location)
		}
	}
	if len(w.Claims()) != 4 {
		t.Errorf("Expected 4 claim markers, got %d", len(w.Claims()))
	}
	// bulk loads only log
	if n := len(d.errors()); n != 0 {
		t.Errorf("Expected no error dialogs for a snapshot, got %d", n)
	}
}

func TestSnapshotReplacesState(t *testing.T) {
	r, w := newTestReplica()
	r.MarkReady()

	r.LoadSnapshot([]world.ClaimView{{Location: 1, Owner: "alice"}, {Location: 2, Owner: "bob"}})
	r.LoadSnapshot([]world.ClaimView{{Location: 5, Owner: "carol"}})

	entries := r.Entries()
	if len(entries) != 1 || entries[0].Location != 5 {
		t.Errorf("Expected only location 5, got %+v", entries)
	}
	if len(w.Claims()) != 1 {
		t.Errorf("Expected old claim markers to be removed, got %d", len(w.Claims()))
	}
}

func TestDeltasIgnoredBeforeReady(t *testing.T) {
	r, _ := newTestReplica()

	r.ApplyAdd(world.ClaimView{Location: 1, Owner: "alice"})
	r.ApplyRemove(1)

	if r.Len() != 0 {
		t.Errorf("Expected no entries, got %d", r.Len())
	}
}

func TestApplyAddAndRemove(t *testing.T) {
	r, w := newTestReplica()
	r.MarkReady()

	r.ApplyAdd(world.ClaimView{Location: 4200, Owner: "alice", RelationshipScore: 10})

	e, ok := r.Get(4200)
	if !ok {
		t.Fatalf("Expected entry at 4200")
	}
	if e.Owner != "alice" || e.Faction != world.FactionNeutral || e.Name() != "alice's settlement" {
		t.Errorf("Unexpected entry %+v", e)
	}

	// own claims are never part of the replica
	r.ApplyAdd(world.ClaimView{Location: 1, Owner: "me"})
	if _, ok := r.Get(1); ok {
		t.Errorf("Expected own claim to be ignored")
	}

	r.ApplyRemove(4200)
	if r.Len() != 0 {
		t.Errorf("Expected empty replica, got %d entries", r.Len())
	}
	if len(w.Claims()) != 0 {
		t.Errorf("Expected claim marker to be removed")
	}

	// removing again is a no-op
	r.ApplyRemove(4200)
}

func TestApplyAddSpawnFailure(t *testing.T) {
	r, _, d := newTestReplicaWithDialogs(7)
	r.MarkReady()

	r.ApplyAdd(world.ClaimView{Location: 7, Owner: "alice"})
	if _, ok := r.Get(7); ok {
		t.Errorf("Expected no partial entry after spawn failure")
	}
	if errs := d.errors(); len(errs) != 1 {
		t.Errorf("Expected one error dialog, got %v", errs)
	}
}

func TestApplyAddReplacesExisting(t *testing.T) {
	r, w := newTestReplica()
	r.MarkReady()

	r.ApplyAdd(world.ClaimView{Location: 9, Owner: "alice"})
	r.ApplyAdd(world.ClaimView{Location: 9, Owner: "bob", RelationshipScore: 90})

	e, _ := r.Get(9)
	if e.Owner != "bob" || e.Faction != world.FactionAlly {
		t.Errorf("Expected bob (ally) at 9, got %+v", e)
	}
	if len(w.Claims()) != 1 {
		t.Errorf("Expected a single claim marker, got %d", len(w.Claims()))
	}
}

func TestApplyAddReplaceFailureDropsOldEntry(t *testing.T) {
	r, w, d := newTestReplicaWithDialogs()
	r.MarkReady()

	r.ApplyAdd(world.ClaimView{Location: 9, Owner: "alice"})
	w.failAt(9)
	r.ApplyAdd(world.ClaimView{Location: 9, Owner: "bob"})

	if e, ok := r.Get(9); ok {
		t.Errorf("Expected no entry at 9, got %+v", e)
	}
	if len(w.Claims()) != 0 {
		t.Errorf("Expected no claim markers, got %d", len(w.Claims()))
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty replica, got %d entries", r.Len())
	}
	if errs := d.errors(); len(errs) != 1 {
		t.Errorf("Expected one error dialog, got %v", errs)
	}
}
