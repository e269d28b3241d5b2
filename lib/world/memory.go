package world

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Unit is the mobile entity used by MemoryWorld.
type Unit struct {
	Name     string `json:"name"`
	Location int    `json:"location"`
}

// ClaimMarker is the world object MemoryWorld spawns for a foreign claim.
type ClaimMarker struct {
	View    ClaimView
	Faction Faction
}

// MemoryWorld is an IWorld and ICheckpointer that keeps everything in memory.
// It backs the command line clients, which have no real world to render.
type MemoryWorld struct {
	mu          sync.Mutex
	units       map[*Unit]struct{}
	claims      map[*ClaimMarker]struct{}
	savePath    string
	checkpoints int
}

// NewMemoryWorld creates an empty world. If savePath is not empty, every
// checkpoint writes the placed units as JSON to that file.
func NewMemoryWorld(savePath string) *MemoryWorld {
	return &MemoryWorld{
		units:    make(map[*Unit]struct{}),
		claims:   make(map[*ClaimMarker]struct{}),
		savePath: savePath,
	}
}

// SpawnUnit creates a unit and places it at location.
func (w *MemoryWorld) SpawnUnit(name string, location int) *Unit {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := &Unit{Name: name, Location: location}
	w.units[u] = struct{}{}
	return u
}

// --------------------------------------------------------------------------
// Interface Methods (docu see world.IWorld)
// --------------------------------------------------------------------------

func (w *MemoryWorld) SpawnClaim(view ClaimView, faction Faction) (Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := &ClaimMarker{View: view, Faction: faction}
	w.claims[m] = struct{}{}
	return m, nil
}

func (w *MemoryWorld) PlaceEntity(entity Entity, location int, _ PlaceMode, _ bool) error {
	u, ok := entity.(*Unit)
	if !ok {
		return fmt.Errorf("%w: cannot place %T", ErrEntityConstruction, entity)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, placed := w.units[u]; placed {
		return fmt.Errorf("%w: unit %q is already placed", ErrEntityConstruction, u.Name)
	}
	u.Location = location
	w.units[u] = struct{}{}
	return nil
}

func (w *MemoryWorld) RemoveEntity(entity Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch e := entity.(type) {
	case *Unit:
		if _, ok := w.units[e]; !ok {
			return fmt.Errorf("unit %q is not placed", e.Name)
		}
		delete(w.units, e)
	case *ClaimMarker:
		if _, ok := w.claims[e]; !ok {
			return fmt.Errorf("claim marker at %d is not placed", e.View.Location)
		}
		delete(w.claims, e)
	default:
		return fmt.Errorf("unknown entity %T", entity)
	}
	return nil
}

func (w *MemoryWorld) SerializeEntity(entity Entity) ([]byte, error) {
	u, ok := entity.(*Unit)
	if !ok {
		return nil, fmt.Errorf("cannot serialize %T", entity)
	}
	return json.Marshal(u)
}

func (w *MemoryWorld) DeserializeEntity(payload []byte) (Entity, error) {
	var u Unit
	if err := json.Unmarshal(payload, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntityConstruction, err)
	}
	if u.Name == "" {
		return nil, fmt.Errorf("%w: unit without name", ErrEntityConstruction)
	}
	return &u, nil
}

// ForceDurabilityCheckpoint implements ICheckpointer
func (w *MemoryWorld) ForceDurabilityCheckpoint() error {
	units := w.Units()

	w.mu.Lock()
	w.checkpoints++
	path := w.savePath
	w.mu.Unlock()

	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(units, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// --------------------------------------------------------------------------
// Inspection
// --------------------------------------------------------------------------

// Units returns copies of all placed units ordered by name.
func (w *MemoryWorld) Units() []Unit {
	w.mu.Lock()
	defer w.mu.Unlock()
	units := make([]Unit, 0, len(w.units))
	for u := range w.units {
		units = append(units, *u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	return units
}

// Claims returns copies of all spawned claim markers ordered by location.
func (w *MemoryWorld) Claims() []ClaimMarker {
	w.mu.Lock()
	defer w.mu.Unlock()
	claims := make([]ClaimMarker, 0, len(w.claims))
	for m := range w.claims {
		claims = append(claims, *m)
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].View.Location < claims[j].View.Location })
	return claims
}

// Checkpoints returns how many checkpoints were forced.
func (w *MemoryWorld) Checkpoints() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checkpoints
}
