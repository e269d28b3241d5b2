package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var transferLogger = logger.GetLogger("transfer")

// ErrDeliveryFailure is the reason of a Reject the server synthesizes because
// the transfer cannot reach its destination
var ErrDeliveryFailure = errors.New("transfer could not be delivered")

// pendingTransfer is a transfer waiting for the decision of its destination
type pendingTransfer struct {
	Initiator   string
	Destination string
	Msg         common.TransferMessage
}

// TransferCoordinator relays unit transfers between two sessions.
//
// The server never holds the unit: the payload travels inside the messages.
// A Send yields exactly one terminal message (Accept or Reject) to the
// initiator as long as it stays connected. There is no timeout on the
// decision of the destination.
type TransferCoordinator struct {
	store    claimstore.IClaimStore
	sessions ISessionRegistry
	pending  *xsync.MapOf[string, pendingTransfer]
}

// NewTransferCoordinator creates a coordinator, destinations are resolved through the claim store
func NewTransferCoordinator(store claimstore.IClaimStore, sessions ISessionRegistry) *TransferCoordinator {
	return &TransferCoordinator{
		store:    store,
		sessions: sessions,
		pending:  xsync.NewMapOf[string, pendingTransfer](),
	}
}

// Pending returns the number of transfers waiting for a decision
func (t *TransferCoordinator) Pending() int {
	return t.pending.Size()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (t *TransferCoordinator) Handle(from *Session, req *common.Message) {
	if req.Transfer == nil {
		t.sessions.SendIllegalActionNotice(from, "transfer message without transfer")
		return
	}
	msg := *req.Transfer

	switch msg.StepMode {
	case common.TransferSend:
		t.send(from, msg)
	case common.TransferReceive:
		t.sessions.SendIllegalActionNotice(from, "receive is sent by the server only")
	case common.TransferAccept, common.TransferReject:
		t.decide(from, msg)
	default:
		t.sessions.SendIllegalActionNotice(from, fmt.Sprintf("unsupported transfer step %s", msg.StepMode))
	}
}

// OnDisconnect rejects every transfer still waiting for a decision of the
// session. Transfers the session initiated stay pending so their destination
// can still decide.
func (t *TransferCoordinator) OnDisconnect(s *Session) {
	var orphaned []pendingTransfer
	t.pending.Range(func(id string, p pendingTransfer) bool {
		if p.Destination != s.Username {
			return true
		}
		if taken, ok := t.take(id, s.Username); ok {
			orphaned = append(orphaned, taken)
		}
		return true
	})

	for _, p := range orphaned {
		transferLogger.Infof("Destination %s of transfer %s left, rejecting", p.Destination, p.Msg.TransferID)
		initiator, ok := t.sessions.Get(p.Initiator)
		if !ok {
			transferLogger.Warningf("Initiator %s of transfer %s is gone, dropping reject", p.Initiator, p.Msg.TransferID)
			continue
		}
		t.reject(initiator, p.Msg, fmt.Errorf("%w: %s disconnected", ErrDeliveryFailure, p.Destination))
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send routes a Send step to the owner of the destination claim as Receive
func (t *TransferCoordinator) send(from *Session, msg common.TransferMessage) {
	destination, err := t.route(from, msg)
	if err != nil {
		t.reject(from, msg, err)
		return
	}

	p := pendingTransfer{Initiator: from.Username, Destination: destination.Username, Msg: msg}
	// the pending transfer keeps its id, only the new Send is rejected
	if _, loaded := t.pending.LoadOrStore(msg.TransferID, p); loaded {
		t.reject(from, msg, fmt.Errorf("%w: transfer %s is already pending", ErrDeliveryFailure, msg.TransferID))
		return
	}

	if err := t.sessions.Send(destination, msg.Relabel(common.TransferReceive)); err != nil {
		t.pending.Delete(msg.TransferID)
		t.reject(from, msg, fmt.Errorf("%w: %v", ErrDeliveryFailure, err))
		return
	}
	transferLogger.Infof("Transfer %s from %s to %s is waiting for a decision", msg.TransferID, from.Username, destination.Username)
}

// route checks that from owns the origin claim and returns the connected
// session owning the destination claim
func (t *TransferCoordinator) route(from *Session, msg common.TransferMessage) (*Session, error) {
	origin, found, err := t.store.FindByLocation(msg.OriginLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}
	if !found || origin.Owner != from.Username {
		return nil, fmt.Errorf("%w: %s does not own location %d", ErrDeliveryFailure, from.Username, msg.OriginLocation)
	}

	target, found, err := t.store.FindByLocation(msg.DestinationLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: no claim at location %d", ErrDeliveryFailure, msg.DestinationLocation)
	}
	if target.Owner == from.Username {
		return nil, fmt.Errorf("%w: location %d is your own", ErrDeliveryFailure, msg.DestinationLocation)
	}

	destination, ok := t.sessions.Get(target.Owner)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not connected", ErrDeliveryFailure, target.Owner)
	}
	return destination, nil
}

// decide relays an Accept or Reject of the destination to the initiator
func (t *TransferCoordinator) decide(from *Session, msg common.TransferMessage) {
	p, ok := t.take(msg.TransferID, from.Username)
	if !ok {
		t.sessions.SendIllegalActionNotice(from, fmt.Sprintf("no pending transfer %s for you", msg.TransferID))
		return
	}

	initiator, ok := t.sessions.Get(p.Initiator)
	if !ok {
		transferLogger.Warningf("Initiator %s of transfer %s is gone, dropping %s", p.Initiator, msg.TransferID, msg.StepMode)
		return
	}

	if err := t.sessions.Send(initiator, &common.Message{MsgType: common.MsgTTransfer, Transfer: &msg}); err != nil {
		transferLogger.Warningf("Failed to relay %s of transfer %s to %s: %v", msg.StepMode, msg.TransferID, p.Initiator, err)
		return
	}
	transferLogger.Infof("Transfer %s settled: %s", msg.TransferID, msg.StepMode)
}

// take removes and returns the pending transfer id if destination is its destination
func (t *TransferCoordinator) take(id, destination string) (pendingTransfer, bool) {
	var taken pendingTransfer
	var ok bool
	t.pending.Compute(id, func(old pendingTransfer, loaded bool) (pendingTransfer, bool) {
		if loaded && old.Destination == destination {
			taken, ok = old, true
			return old, true
		}
		// delete if absent, keep otherwise
		return old, !loaded
	})
	return taken, ok
}

// reject synthesizes a Reject for msg and sends it to the initiator
func (t *TransferCoordinator) reject(initiator *Session, msg common.TransferMessage, reason error) {
	transferLogger.Infof("Rejecting transfer %s of %s: %v", msg.TransferID, initiator.Username, reason)
	resp := msg.Relabel(common.TransferReject)
	resp.Err = reason.Error()
	if err := t.sessions.Send(initiator, resp); err != nil {
		transferLogger.Warningf("Failed to send reject of transfer %s to %s: %v", msg.TransferID, initiator.Username, err)
	}
}
