package transfer

import (
	"fmt"
	"github.com/ValentinKolb/dSync/lib/world"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
)

var Logger = logger.GetLogger("transfer")

// User facing texts
const (
	textWaiting     = "Waiting for the other player to respond..."
	textOffer       = "You received aid sent from tile %d. Do you want to accept it?"
	textSent        = "Sent aid"
	textReceived    = "Received aid"
	textUnavailable = "Player is not currently available!"
	textPlaceFailed = "The received unit could not be placed: %v"
	textLost        = "The unit could not be returned: %v"
)

// SendFunc hands a step to the server. It must not block on the answer.
type SendFunc func(step Step) error

// Controller drives this client's side of unit transfers.
type Controller struct {
	mu          sync.Mutex
	world       world.IWorld
	dialogs     world.IDialogs
	checkpoints world.ICheckpointer
	send        SendFunc
	handshakes  map[string]*Handshake
	onSettled   func(Handshake)
}

// NewController creates a controller. send is used for every outbound step.
func NewController(w world.IWorld, dialogs world.IDialogs, checkpoints world.ICheckpointer, send SendFunc) *Controller {
	return &Controller{
		world:       w,
		dialogs:     dialogs,
		checkpoints: checkpoints,
		send:        send,
		handshakes:  make(map[string]*Handshake),
	}
}

// OnSettled registers a callback invoked (without locks held) whenever a handshake settles.
func (c *Controller) OnSettled(fn func(Handshake)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSettled = fn
}

// Send starts a transfer of unit from origin to destination. The unit is removed
// from the world before the request leaves. It returns the id of the handshake.
func (c *Controller) Send(unit world.Entity, origin, destination int) (string, error) {
	payload, err := c.world.SerializeEntity(unit)
	if err != nil {
		return "", fmt.Errorf("serialize unit: %w", err)
	}
	if err := c.world.RemoveEntity(unit); err != nil {
		return "", fmt.Errorf("remove unit: %w", err)
	}

	h := &Handshake{
		ID:                  uuid.NewString(),
		Role:                RoleInitiator,
		State:               StateAwaitingServerAck,
		OriginLocation:      origin,
		DestinationLocation: destination,
		payload:             payload,
	}

	c.mu.Lock()
	c.handshakes[h.ID] = h
	c.mu.Unlock()

	c.dialogs.PushWaiting(h.ID, textWaiting)

	err = c.send(Step{
		Mode:                StepSend,
		ID:                  h.ID,
		OriginLocation:      origin,
		DestinationLocation: destination,
		UnitPayload:         payload,
	})
	if err != nil {
		Logger.Errorf("Failed to send transfer %s: %v", h.ID, err)
		c.settleRejected(h.ID)
		return h.ID, fmt.Errorf("send transfer: %w", err)
	}

	c.mu.Lock()
	if h.State == StateAwaitingServerAck {
		h.State = StateAwaitingPeerDecision
	}
	c.mu.Unlock()

	Logger.Infof("Sent transfer %s from %d to %d", h.ID, origin, destination)
	return h.ID, nil
}

// Handle applies a step received from the server.
func (c *Controller) Handle(step Step) error {
	switch step.Mode {
	case StepReceive:
		return c.handleReceive(step)
	case StepAccept:
		c.settleAccepted(step.ID)
		return nil
	case StepReject:
		c.settleRejected(step.ID)
		return nil
	case StepSend:
		return fmt.Errorf("%w: %s", ErrUnexpectedStep, step.Mode)
	default:
		return fmt.Errorf("%w: %d", ErrUnexpectedStep, step.Mode)
	}
}

// Decide answers a received transfer. Accepting places the unit near the
// destination location before the acceptance is sent. If the unit cannot be
// placed, the transfer is rejected instead so the initiator gets it back.
func (c *Controller) Decide(id string, accept bool) error {
	c.mu.Lock()
	h, ok := c.handshakes[id]
	if !ok || h.Role != RoleDestination || h.State != StateAwaitingPeerDecision {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownHandshake, id)
	}
	h.State = StateSettled
	c.mu.Unlock()

	reply := Step{
		Mode:                StepReject,
		ID:                  h.ID,
		OriginLocation:      h.OriginLocation,
		DestinationLocation: h.DestinationLocation,
		UnitPayload:         h.payload,
	}

	if accept {
		if err := c.place(h.payload, h.DestinationLocation); err != nil {
			Logger.Errorf("Failed to place transfer %s: %v", id, err)
			c.dialogs.Notify(fmt.Sprintf(textPlaceFailed, err), world.NoticeError)
		} else {
			reply = Step{
				Mode:                StepAccept,
				ID:                  h.ID,
				OriginLocation:      h.OriginLocation,
				DestinationLocation: h.DestinationLocation,
			}
		}
	}

	outcome := OutcomeRejected
	if reply.Mode == StepAccept {
		outcome = OutcomeAccepted
	}
	settled := c.finish(h, outcome)

	err := c.send(reply)
	if err != nil {
		Logger.Errorf("Failed to send %s for transfer %s: %v", reply.Mode, id, err)
	}

	if outcome == OutcomeAccepted {
		c.dialogs.Notify(textReceived, world.NoticeSuccess)
		c.checkpoint()
	}

	c.notifySettled(settled)
	return err
}

// Handshake returns a copy of the handshake with the given id
func (c *Controller) Handshake(id string) (Handshake, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handshakes[id]
	if !ok {
		return Handshake{}, false
	}
	return *h, true
}

// Pending returns the ids of all handshakes that are not settled
func (c *Controller) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, h := range c.handshakes {
		if h.State != StateSettled {
			ids = append(ids, id)
		}
	}
	return ids
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleReceive records an offer and asks the user about it
func (c *Controller) handleReceive(step Step) error {
	if step.ID == "" {
		return fmt.Errorf("%w: receive without id", ErrUnexpectedStep)
	}

	c.mu.Lock()
	if _, exists := c.handshakes[step.ID]; exists {
		c.mu.Unlock()
		Logger.Warningf("Ignoring duplicate transfer %s", step.ID)
		return nil
	}
	c.handshakes[step.ID] = &Handshake{
		ID:                  step.ID,
		Role:                RoleDestination,
		State:               StateAwaitingPeerDecision,
		OriginLocation:      step.OriginLocation,
		DestinationLocation: step.DestinationLocation,
		payload:             step.UnitPayload,
	}
	c.mu.Unlock()

	Logger.Infof("Received transfer %s from %d", step.ID, step.OriginLocation)

	c.dialogs.AskYesNo(
		fmt.Sprintf(textOffer, step.OriginLocation),
		func() { _ = c.Decide(step.ID, true) },
		func() { _ = c.Decide(step.ID, false) },
	)
	return nil
}

// claimInitiator marks a pending initiator handshake as settled and returns it.
// It returns nil for unknown or already settled handshakes.
func (c *Controller) claimInitiator(id string) *Handshake {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handshakes[id]
	if !ok || h.Role != RoleInitiator || h.State == StateSettled {
		return nil
	}
	h.State = StateSettled
	return h
}

// settleAccepted finishes an initiator handshake after the destination accepted
func (c *Controller) settleAccepted(id string) {
	h := c.claimInitiator(id)
	if h == nil {
		Logger.Warningf("Ignoring accept for unknown transfer %s", id)
		return
	}

	settled := c.finish(h, OutcomeAccepted)
	c.dialogs.PopWaiting(id)
	c.dialogs.Notify(textSent, world.NoticeSuccess)
	c.checkpoint()

	Logger.Infof("Transfer %s accepted", id)
	c.notifySettled(settled)
}

// settleRejected finishes an initiator handshake by returning the unit to the origin
func (c *Controller) settleRejected(id string) {
	h := c.claimInitiator(id)
	if h == nil {
		Logger.Warningf("Ignoring reject for unknown transfer %s", id)
		return
	}

	if err := c.place(h.payload, h.OriginLocation); err != nil {
		Logger.Errorf("Failed to restore unit of transfer %s: %v", id, err)
		c.dialogs.Notify(fmt.Sprintf(textLost, err), world.NoticeError)
	}

	settled := c.finish(h, OutcomeRejected)
	c.dialogs.PopWaiting(id)
	c.dialogs.Notify(textUnavailable, world.NoticeError)

	Logger.Infof("Transfer %s rejected", id)
	c.notifySettled(settled)
}

// place deserializes payload and puts it near location
func (c *Controller) place(payload []byte, location int) error {
	entity, err := c.world.DeserializeEntity(payload)
	if err != nil {
		return err
	}
	return c.world.PlaceEntity(entity, location, world.PlaceNear, true)
}

// finish stores the outcome and returns a copy of the settled handshake
func (c *Controller) finish(h *Handshake, outcome Outcome) Handshake {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.State = StateSettled
	h.Outcome = outcome
	h.payload = nil
	return *h
}

func (c *Controller) checkpoint() {
	if c.checkpoints == nil {
		return
	}
	if err := c.checkpoints.ForceDurabilityCheckpoint(); err != nil {
		Logger.Errorf("Checkpoint failed: %v", err)
	}
}

func (c *Controller) notifySettled(h Handshake) {
	c.mu.Lock()
	fn := c.onSettled
	c.mu.Unlock()
	if fn != nil {
		fn(h)
	}
}
