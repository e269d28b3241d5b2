package replica

import (
	"fmt"
	"github.com/ValentinKolb/dSync/lib/world"
	"github.com/lni/dragonboat/v4/logger"
	"sort"
	"sync"
)

var Logger = logger.GetLogger("replica")

// textSpawnFailed is shown when a single settlement from a delta can not be built
const textSpawnFailed = "The settlement of %s at tile %d could not be shown: %v"

// Entry is one foreign claim as seen by this client.
type Entry struct {
	world.ClaimView
	Faction world.Faction
	entity  world.Entity
}

// Replica is the client side projection of the claim store.
// It is only ever changed by messages from the server.
type Replica struct {
	mu       sync.Mutex
	world    world.IWorld
	factions world.IFactionResolver
	dialogs  world.IDialogs
	entries  map[int]*Entry
	snapshot []world.ClaimView
	ready    bool
}

// NewReplica creates an empty replica that is not ready yet.
// dialogs is used to show single settlements that can not be built, it may be nil.
func NewReplica(w world.IWorld, factions world.IFactionResolver, dialogs world.IDialogs) *Replica {
	return &Replica{
		world:    w,
		factions: factions,
		dialogs:  dialogs,
		entries:  make(map[int]*Entry),
	}
}

// LoadSnapshot replaces the replica with a full snapshot from the server.
// If the session is not ready yet the snapshot is kept and applied by MarkReady.
func (r *Replica) LoadSnapshot(views []world.ClaimView) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot = append([]world.ClaimView(nil), views...)
	if r.ready {
		r.rebuild()
	}
}

// MarkReady marks the session as ready (the world is loaded) and builds the
// replica from the last snapshot.
func (r *Replica) MarkReady() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready {
		return
	}
	r.ready = true
	r.rebuild()
}

// ApplyAdd applies an add delta. Deltas arriving before the session is ready
// are dropped, the caller resynchronizes with a fresh snapshot instead.
func (r *Replica) ApplyAdd(view world.ClaimView) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		Logger.Debugf("Ignoring add of %d, session not ready", view.Location)
		return
	}

	faction, ok := r.factions.ResolveFaction(view.Owner, view.RelationshipScore)
	if !ok {
		Logger.Debugf("Ignoring add of %d, %q is not a foreign player", view.Location, view.Owner)
		return
	}

	// the previous settlement at the location is stale either way
	old, exists := r.entries[view.Location]
	entry, err := r.spawn(view, faction)
	if exists {
		r.despawn(old)
		delete(r.entries, view.Location)
	}
	if err != nil {
		Logger.Errorf("[Added settlement] > %d > %s failed: %v", view.Location, view.Owner, err)
		if r.dialogs != nil {
			r.dialogs.Notify(fmt.Sprintf(textSpawnFailed, view.Owner, view.Location, err), world.NoticeError)
		}
		return
	}
	r.entries[view.Location] = entry
	Logger.Infof("[Added settlement] > %d > %s", view.Location, view.Owner)
}

// ApplyRemove applies a remove delta. Removing an unknown location is a no-op.
func (r *Replica) ApplyRemove(location int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		Logger.Debugf("Ignoring remove of %d, session not ready", location)
		return
	}

	entry, ok := r.entries[location]
	if !ok {
		Logger.Warningf("[Remove settlement] > %d not found", location)
		return
	}

	r.despawn(entry)
	delete(r.entries, location)
	Logger.Infof("[Remove settlement] > %d", location)
}

// Get returns the entry at location
func (r *Replica) Get(location int) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[location]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns all entries ordered by location
func (r *Replica) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Location < entries[j].Location })
	return entries
}

// Len returns the number of entries
func (r *Replica) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Ready reports whether the session is ready
func (r *Replica) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// --------------------------------------------------------------------------
// Helper Methods (callers hold r.mu)
// --------------------------------------------------------------------------

// rebuild discards all entries and builds them from the stored snapshot.
// A failing entry is logged and skipped, the rest is still loaded.
func (r *Replica) rebuild() {
	for location, entry := range r.entries {
		r.despawn(entry)
		delete(r.entries, location)
	}

	for _, view := range r.snapshot {
		faction, ok := r.factions.ResolveFaction(view.Owner, view.RelationshipScore)
		if !ok {
			continue
		}
		entry, err := r.spawn(view, faction)
		if err != nil {
			Logger.Errorf("Failed to build settlement at %d for %s: %v", view.Location, view.Owner, err)
			continue
		}
		if old, exists := r.entries[view.Location]; exists {
			r.despawn(old)
		}
		r.entries[view.Location] = entry
	}

	Logger.Infof("Loaded %d settlements from snapshot of %d claims", len(r.entries), len(r.snapshot))
}

func (r *Replica) spawn(view world.ClaimView, faction world.Faction) (*Entry, error) {
	entity, err := r.world.SpawnClaim(view, faction)
	if err != nil {
		return nil, err
	}
	return &Entry{ClaimView: view, Faction: faction, entity: entity}, nil
}

func (r *Replica) despawn(entry *Entry) {
	if entry.entity == nil {
		return
	}
	if err := r.world.RemoveEntity(entry.entity); err != nil {
		Logger.Warningf("Failed to remove settlement at %d: %v", entry.Location, err)
	}
}
