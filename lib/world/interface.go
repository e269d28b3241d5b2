package world

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Entity is an opaque handle to an object living in the local world
// (a claim marker or a unit). Only the IWorld that created it knows what it is.
type Entity interface{}

// PlaceMode controls how PlaceEntity picks the exact cell.
type PlaceMode uint8

const (
	PlaceNear   PlaceMode = iota // anywhere close to the target location
	PlaceDirect                  // exactly on the target location
)

// NoticeKind classifies a user notification.
type NoticeKind uint8

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeError
)

// String returns the name of the notice kind
func (k NoticeKind) String() string {
	switch k {
	case NoticeInfo:
		return "info"
	case NoticeSuccess:
		return "success"
	case NoticeError:
		return "error"
	default:
		return "unknown"
	}
}

// Faction is the relationship of the local player to a claim owner.
type Faction uint8

const (
	FactionNeutral Faction = iota
	FactionAlly
	FactionEnemy
)

// String returns the name of the faction
func (f Faction) String() string {
	switch f {
	case FactionNeutral:
		return "neutral"
	case FactionAlly:
		return "ally"
	case FactionEnemy:
		return "enemy"
	default:
		return "unknown"
	}
}

// ClaimView is what a client knows about a foreign claim: the record plus the
// relationship score the server computed for this viewer.
type ClaimView struct {
	Location          int
	Owner             string
	RelationshipScore int
}

// Name returns the display name of the claim
func (v ClaimView) Name() string {
	return fmt.Sprintf("%s's settlement", v.Owner)
}

// ErrEntityConstruction is returned (wrapped) when an entity cannot be created or placed.
var ErrEntityConstruction = errors.New("entity construction failed")

// --------------------------------------------------------------------------
// Collaborator Interfaces
// --------------------------------------------------------------------------

// IWorld is the local world of a client. Implementations must be safe for
// concurrent use.
type IWorld interface {
	// SpawnClaim creates the world object representing a foreign claim.
	SpawnClaim(view ClaimView, faction Faction) (Entity, error)
	// PlaceEntity puts a (deserialized) entity into the world near or at location.
	// With claimIfTileOccupied the entity may take an occupied cell.
	PlaceEntity(entity Entity, location int, mode PlaceMode, claimIfTileOccupied bool) error
	// RemoveEntity takes an entity out of the world.
	RemoveEntity(entity Entity) error
	// SerializeEntity encodes an entity to an opaque payload.
	SerializeEntity(entity Entity) ([]byte, error)
	// DeserializeEntity rebuilds an entity from a payload. The entity is not placed yet.
	DeserializeEntity(payload []byte) (Entity, error)
}

// IDialogs shows user facing feedback.
type IDialogs interface {
	// PushWaiting shows a blocking wait indicator identified by id.
	PushWaiting(id string, message string)
	// PopWaiting dismisses the wait indicator id. Unknown ids are ignored.
	PopWaiting(id string)
	// Notify shows a message to the user.
	Notify(message string, kind NoticeKind)
	// AskYesNo asks the user a binary question. Exactly one of yes or no
	// must eventually be called, from any goroutine.
	AskYesNo(message string, yes func(), no func())
}

// ICheckpointer forces the local state to durable storage.
type ICheckpointer interface {
	ForceDurabilityCheckpoint() error
}

// IFactionResolver maps a claim owner to a recognized player faction.
// The boolean is false for owners that must not appear in the replica.
type IFactionResolver interface {
	ResolveFaction(owner string, score int) (Faction, bool)
}
