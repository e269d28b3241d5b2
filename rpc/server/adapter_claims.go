package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"github.com/ValentinKolb/dSync/lib/lockmgr"
	"github.com/ValentinKolb/dSync/lib/scores"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var syncLogger = logger.GetLogger("sync")

// ClaimSynchronizer validates claim mutations against the claim store and
// pushes the resulting deltas to the other sessions.
//
// Every mutation holds the lock of its location from the existence check
// until the deltas are queued, so deltas of one location leave the server in
// commit order.
type ClaimSynchronizer struct {
	store    claimstore.IClaimStore
	locks    lockmgr.ILockManager
	scorer   scores.IRelationshipScorer
	sessions ISessionRegistry
}

// NewClaimSynchronizer creates a synchronizer, all collaborators are required
func NewClaimSynchronizer(
	store claimstore.IClaimStore,
	locks lockmgr.ILockManager,
	scorer scores.IRelationshipScorer,
	sessions ISessionRegistry,
) *ClaimSynchronizer {
	return &ClaimSynchronizer{
		store:    store,
		locks:    locks,
		scorer:   scorer,
		sessions: sessions,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (c *ClaimSynchronizer) Handle(from *Session, req *common.Message) {
	if req.Claim == nil {
		c.sessions.SendIllegalActionNotice(from, "claim message without claim")
		return
	}

	var err error
	switch req.Claim.StepMode {
	case common.ClaimAdd:
		err = c.AddClaim(from, req.Claim.Location)
	case common.ClaimRemove:
		err = c.RemoveClaim(from, req.Claim.Location)
	default:
		err = claimstore.NewError(claimstore.RetCInvalidOperation, fmt.Sprintf("unsupported claim step %s", req.Claim.StepMode))
	}

	if err != nil {
		c.refuse(from, err)
	}
}

// OnDisconnect keeps the claims of the session, they outlive the connection
func (c *ClaimSynchronizer) OnDisconnect(*Session) {}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// AddClaim claims location for the requester. The owner is always the
// requester. On success every other session receives an Add delta with its
// own relationship score towards the requester, the requester receives nothing.
func (c *ClaimSynchronizer) AddClaim(from *Session, location int) error {
	return c.locks.WithLock(location, func() error {
		exists, err := c.store.Exists(location)
		if err != nil {
			return err
		}
		if exists {
			return claimstore.NewConflictError(location)
		}

		record := claimstore.ClaimRecord{Location: location, Owner: from.Username}
		if err := c.store.Add(record.Location, record.Owner); err != nil {
			return err
		}
		syncLogger.Infof("%s claimed location %d", from.Username, location)

		for _, viewer := range c.sessions.ConnectedClients() {
			if viewer.ConnID == from.ConnID {
				continue
			}
			c.send(viewer, common.NewClaimAddDelta(c.Project(record, viewer.Username)))
		}
		return nil
	})
}

// RemoveClaim removes the claim at location if the requester owns it.
// On success every session except the requester receives a Remove delta.
func (c *ClaimSynchronizer) RemoveClaim(from *Session, location int) error {
	return c.remove(location, from.Username, from)
}

// RemoveAsSystem removes the claim at location regardless of its owner and
// sends a Remove delta to every session.
func (c *ClaimSynchronizer) RemoveAsSystem(location int) error {
	return c.remove(location, claimstore.SystemRequester, nil)
}

// RemoveAllOf removes every claim of owner as the system. It returns the
// number of removed claims. Claims removed concurrently by someone else are skipped.
func (c *ClaimSynchronizer) RemoveAllOf(owner string) (int, error) {
	records, err := c.store.ListByOwner(owner)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, record := range records {
		err := c.RemoveAsSystem(record.Location)
		if errors.Is(err, claimstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Project is the view viewer gets of record
func (c *ClaimSynchronizer) Project(record claimstore.ClaimRecord, viewer string) common.ClaimEntry {
	return common.ClaimEntry{
		Location:          record.Location,
		Owner:             record.Owner,
		RelationshipScore: c.scorer.Score(viewer, record.Owner),
	}
}

// Snapshot returns every claim projected for viewer, ordered by location
func (c *ClaimSynchronizer) Snapshot(viewer string) ([]common.ClaimEntry, error) {
	records, err := c.store.ListAll()
	if err != nil {
		return nil, err
	}
	entries := make([]common.ClaimEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, c.Project(record, viewer))
	}
	return entries, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// remove deletes the claim as requester. from is the requesting session or
// nil for system removals.
func (c *ClaimSynchronizer) remove(location int, requester string, from *Session) error {
	return c.locks.WithLock(location, func() error {
		record, found, err := c.store.FindByLocation(location)
		if err != nil {
			return err
		}
		if err := claimstore.CheckRemove(location, record, found, requester); err != nil {
			return err
		}
		if err := c.store.Remove(location, requester); err != nil {
			return err
		}

		if from == nil {
			syncLogger.Infof("System removed claim of %s at location %d", record.Owner, location)
		} else {
			syncLogger.Infof("%s removed claim at location %d", from.Username, location)
		}

		delta := common.NewClaimRemoveDelta(location)
		for _, viewer := range c.sessions.ConnectedClients() {
			if from != nil && viewer.ConnID == from.ConnID {
				continue
			}
			c.send(viewer, delta)
		}
		return nil
	})
}

// refuse reports a failed request to the requester only. Rule violations
// become illegal action notices, anything else an error response.
func (c *ClaimSynchronizer) refuse(from *Session, err error) {
	var storeErr *claimstore.Error
	if errors.As(err, &storeErr) && storeErr.Code != claimstore.RetCInternalError {
		c.sessions.SendIllegalActionNotice(from, storeErr.Msg)
		return
	}
	syncLogger.Errorf("Claim request of %s failed: %v", from.Username, err)
	c.send(from, common.NewErrorResponse(err.Error()))
}

func (c *ClaimSynchronizer) send(s *Session, msg *common.Message) {
	if err := c.sessions.Send(s, msg); err != nil {
		// the session is leaving, it gets a fresh snapshot when it joins again
		syncLogger.Warningf("Failed to send %s to %s: %v", msg.MsgType, s.Username, err)
	}
}
