package server

import (
	"github.com/ValentinKolb/dSync/rpc/common"
	"strings"
	"testing"
)

func newTestCoordinator(t *testing.T, users ...string) (*TransferCoordinator, *recordingRegistry) {
	t.Helper()
	store := openStore(t, map[int]string{1: "alice", 2: "bob", 3: "carol"})
	registry := newRecordingRegistry(users...)
	return NewTransferCoordinator(store, registry), registry
}

func sendStep(id string, origin, destination int) *common.Message {
	return common.NewTransferMessage(common.TransferSend, id, origin, destination, []byte("unit"))
}

func TestTransferAccepted(t *testing.T) {
	c, r := newTestCoordinator(t, "alice", "bob", "carol")

	c.Handle(r.session(t, "alice"), sendStep("t1", 1, 2))

	expectNone(t, r, "alice")
	expectNone(t, r, "carol")
	msg := expectOne(t, r, "bob", common.MsgTTransfer)
	if msg.Transfer.StepMode != common.TransferReceive {
		t.Errorf("Expected receive, got %s", msg.Transfer.StepMode)
	}
	if msg.Transfer.TransferID != "t1" || string(msg.Transfer.UnitPayload) != "unit" {
		t.Errorf("Expected t1 with payload, got %+v", msg.Transfer)
	}
	if c.Pending() != 1 {
		t.Errorf("Expected 1 pending transfer, got %d", c.Pending())
	}

	c.Handle(r.session(t, "bob"), common.NewTransferMessage(common.TransferAccept, "t1", 1, 2, nil))

	msg = expectOne(t, r, "alice", common.MsgTTransfer)
	if msg.Transfer.StepMode != common.TransferAccept || msg.Transfer.TransferID != "t1" {
		t.Errorf("Expected accept of t1, got %s %s", msg.Transfer.StepMode, msg.Transfer.TransferID)
	}
	expectNone(t, r, "bob")
	if c.Pending() != 0 {
		t.Errorf("Expected no pending transfers, got %d", c.Pending())
	}
}

func TestTransferRejectedIsRelayedVerbatim(t *testing.T) {
	c, r := newTestCoordinator(t, "alice", "bob")

	c.Handle(r.session(t, "alice"), sendStep("t1", 1, 2))
	r.take("bob")

	c.Handle(r.session(t, "bob"), common.NewTransferMessage(common.TransferReject, "t1", 1, 2, []byte("unit")))

	msg := expectOne(t, r, "alice", common.MsgTTransfer)
	if msg.Transfer.StepMode != common.TransferReject {
		t.Errorf("Expected reject, got %s", msg.Transfer.StepMode)
	}
	if string(msg.Transfer.UnitPayload) != "unit" {
		t.Errorf("Expected payload to be relayed, got %q", msg.Transfer.UnitPayload)
	}
	if msg.Err != "" {
		t.Errorf("Expected relayed reject without reason, got %q", msg.Err)
	}
}

func TestSendIsRejectedWhenUndeliverable(t *testing.T) {
	tests := []struct {
		name        string
		from        string
		origin      int
		destination int
		reason      string
	}{
		{name: "NotOwnerOfOrigin", from: "alice", origin: 2, destination: 3, reason: "does not own"},
		{name: "NoDestinationClaim", from: "alice", origin: 1, destination: 99, reason: "no claim"},
		{name: "OwnDestination", from: "alice", origin: 1, destination: 1, reason: "your own"},
		{name: "DestinationOffline", from: "alice", origin: 1, destination: 3, reason: "not connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, r := newTestCoordinator(t, "alice", "bob")

			c.Handle(r.session(t, tt.from), sendStep("t1", tt.origin, tt.destination))

			msg := expectOne(t, r, tt.from, common.MsgTTransfer)
			if msg.Transfer.StepMode != common.TransferReject {
				t.Errorf("Expected synthesized reject, got %s", msg.Transfer.StepMode)
			}
			if msg.Transfer.TransferID != "t1" {
				t.Errorf("Expected id t1, got %s", msg.Transfer.TransferID)
			}
			if !strings.Contains(msg.Err, tt.reason) {
				t.Errorf("Expected reason containing %q, got %q", tt.reason, msg.Err)
			}
			expectNone(t, r, "bob")
			if c.Pending() != 0 {
				t.Errorf("Expected no pending transfers, got %d", c.Pending())
			}
		})
	}
}

func TestSendIsRejectedWhenDestinationSendFails(t *testing.T) {
	c, r := newTestCoordinator(t, "alice", "bob")
	r.failFor["bob"] = true

	c.Handle(r.session(t, "alice"), sendStep("t1", 1, 2))

	msg := expectOne(t, r, "alice", common.MsgTTransfer)
	if msg.Transfer.StepMode != common.TransferReject {
		t.Errorf("Expected synthesized reject, got %s", msg.Transfer.StepMode)
	}
	if c.Pending() != 0 {
		t.Errorf("Expected no pending transfers, got %d", c.Pending())
	}
}

func TestReceiveFromClientIsIllegal(t *testing.T) {
	c, r := newTestCoordinator(t, "alice", "bob")

	c.Handle(r.session(t, "alice"), common.NewTransferMessage(common.TransferReceive, "t1", 1, 2, nil))

	expectOne(t, r, "alice", common.MsgTIllegal)
	expectNone(t, r, "bob")
}

func TestDecisionOnlyFromDestination(t *testing.T) {
	c, r := newTestCoordinator(t, "alice", "bob", "carol")

	c.Handle(r.session(t, "alice"), sendStep("t1", 1, 2))
	r.take("bob")

	for _, user := range []string{"carol", "alice"} {
		c.Handle(r.session(t, user), common.NewTransferMessage(common.TransferAccept, "t1", 1, 2, nil))
		expectOne(t, r, user, common.MsgTIllegal)
	}
	if c.Pending() != 1 {
		t.Errorf("Expected transfer to stay pending, got %d", c.Pending())
	}

	c.Handle(r.session(t, "bob"), common.NewTransferMessage(common.TransferAccept, "unknown", 1, 2, nil))
	expectOne(t, r, "bob", common.MsgTIllegal)
}

func TestDuplicateTransferID(t *testing.T) {
	c, r := newTestCoordinator(t, "alice", "bob", "carol")

	c.Handle(r.session(t, "alice"), sendStep("t1", 1, 2))
	c.Handle(r.session(t, "carol"), sendStep("t1", 3, 2))

	// the second Send still gets a terminal answer, so its unit is restored
	msg := expectOne(t, r, "carol", common.MsgTTransfer)
	if msg.Transfer.StepMode != common.TransferReject || msg.Transfer.TransferID != "t1" {
		t.Errorf("Expected reject of t1, got %s %s", msg.Transfer.StepMode, msg.Transfer.TransferID)
	}
	if !strings.Contains(msg.Err, "already pending") {
		t.Errorf("Expected reason 'already pending', got %q", msg.Err)
	}
	if string(msg.Transfer.UnitPayload) != "unit" {
		t.Errorf("Expected payload to be returned, got %q", msg.Transfer.UnitPayload)
	}

	expectNone(t, r, "alice")
	expectOne(t, r, "bob", common.MsgTTransfer)
	if c.Pending() != 1 {
		t.Errorf("Expected 1 pending transfer, got %d", c.Pending())
	}

	// the first transfer is unaffected
	c.Handle(r.session(t, "bob"), common.NewTransferMessage(common.TransferAccept, "t1", 1, 2, nil))
	msg = expectOne(t, r, "alice", common.MsgTTransfer)
	if msg.Transfer.StepMode != common.TransferAccept {
		t.Errorf("Expected accept for alice, got %s", msg.Transfer.StepMode)
	}
	expectNone(t, r, "carol")
}

func TestDestinationDisconnectRejects(t *testing.T) {
	c, r := newTestCoordinator(t, "alice", "bob")

	c.Handle(r.session(t, "alice"), sendStep("t1", 1, 2))
	c.Handle(r.session(t, "alice"), sendStep("t2", 1, 2))
	r.take("bob")

	bob := r.session(t, "bob")
	r.leave("bob")
	c.OnDisconnect(bob)

	msgs := r.take("alice")
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 rejects, got %d", len(msgs))
	}
	ids := map[string]bool{}
	for _, msg := range msgs {
		if msg.Transfer == nil || msg.Transfer.StepMode != common.TransferReject {
			t.Errorf("Expected reject, got %+v", msg)
			continue
		}
		ids[msg.Transfer.TransferID] = true
	}
	if !ids["t1"] || !ids["t2"] {
		t.Errorf("Expected rejects for t1 and t2, got %v", ids)
	}
	if c.Pending() != 0 {
		t.Errorf("Expected no pending transfers, got %d", c.Pending())
	}
}

func TestInitiatorDisconnectKeepsTransfer(t *testing.T) {
	c, r := newTestCoordinator(t, "alice", "bob")

	c.Handle(r.session(t, "alice"), sendStep("t1", 1, 2))
	r.take("bob")

	alice := r.session(t, "alice")
	r.leave("alice")
	c.OnDisconnect(alice)

	if c.Pending() != 1 {
		t.Fatalf("Expected transfer to stay pending, got %d", c.Pending())
	}

	c.Handle(r.session(t, "bob"), common.NewTransferMessage(common.TransferAccept, "t1", 1, 2, nil))
	if c.Pending() != 0 {
		t.Errorf("Expected transfer to settle, got %d pending", c.Pending())
	}
	if r.total() != 0 {
		t.Errorf("Expected the relay to be dropped, got %d messages", r.total())
	}
}

func TestEveryTransferStepModeIsHandled(t *testing.T) {
	c, r := newTestCoordinator(t, "alice", "bob")

	for _, mode := range common.AllTransferStepModes() {
		t.Run(mode.String(), func(t *testing.T) {
			c.Handle(r.session(t, "alice"), common.NewTransferMessage(mode, "id-"+mode.String(), 1, 2, nil))
			expectNoUnsupported(t, r, "alice")
		})
	}

	c.Handle(r.session(t, "alice"), common.NewTransferMessage(common.TransferStepMode(200), "x", 1, 2, nil))
	msg := expectOne(t, r, "alice", common.MsgTIllegal)
	if !strings.Contains(msg.Err, "unsupported") {
		t.Errorf("Expected unsupported step notice, got %q", msg.Err)
	}
}
