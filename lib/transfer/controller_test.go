package transfer

import (
	"errors"
	"github.com/ValentinKolb/dSync/lib/world"
	"sync"
	"testing"
)

// --------------------------------------------------------------------------
// Test doubles
// --------------------------------------------------------------------------

type recordingDialogs struct {
	mu      sync.Mutex
	waiting map[string]bool
	notices []string
	kinds   []world.NoticeKind
	answer  *bool // nil: keep the question open
	asked   int
}

func newRecordingDialogs() *recordingDialogs {
	return &recordingDialogs{waiting: map[string]bool{}}
}

func (d *recordingDialogs) PushWaiting(id string, _ string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waiting[id] = true
}

func (d *recordingDialogs) PopWaiting(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.waiting, id)
}

func (d *recordingDialogs) Notify(message string, kind world.NoticeKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, message)
	d.kinds = append(d.kinds, kind)
}

func (d *recordingDialogs) AskYesNo(_ string, yes func(), no func()) {
	d.mu.Lock()
	d.asked++
	answer := d.answer
	d.mu.Unlock()
	if answer == nil {
		return
	}
	if *answer {
		yes()
	} else {
		no()
	}
}

func (d *recordingDialogs) isWaiting(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waiting[id]
}

func (d *recordingDialogs) lastNotice() (string, world.NoticeKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.notices) == 0 {
		return "", world.NoticeInfo
	}
	return d.notices[len(d.notices)-1], d.kinds[len(d.kinds)-1]
}

type recordingSender struct {
	mu    sync.Mutex
	steps []Step
	err   error
}

func (s *recordingSender) send(step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.steps = append(s.steps, step)
	return nil
}

func (s *recordingSender) last() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps[len(s.steps)-1]
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// failingPlaceWorld refuses every placement
type failingPlaceWorld struct {
	*world.MemoryWorld
}

func (w failingPlaceWorld) PlaceEntity(world.Entity, int, world.PlaceMode, bool) error {
	return world.ErrEntityConstruction
}

type fixture struct {
	world   *world.MemoryWorld
	dialogs *recordingDialogs
	sender  *recordingSender
	ctrl    *Controller
}

func newFixture() *fixture {
	f := &fixture{
		world:   world.NewMemoryWorld(""),
		dialogs: newRecordingDialogs(),
		sender:  &recordingSender{},
	}
	f.ctrl = NewController(f.world, f.dialogs, f.world, f.sender.send)
	return f
}

func unitsAt(w *world.MemoryWorld, location int) int {
	n := 0
	for _, u := range w.Units() {
		if u.Location == location {
			n++
		}
	}
	return n
}

// --------------------------------------------------------------------------
// Initiator side
// --------------------------------------------------------------------------

func TestSendRemovesUnitAndWaits(t *testing.T) {
	f := newFixture()
	unit := f.world.SpawnUnit("Trader", 10)

	id, err := f.ctrl.Send(unit, 10, 4200)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(f.world.Units()) != 0 {
		t.Errorf("Expected the unit to be removed, got %+v", f.world.Units())
	}
	if !f.dialogs.isWaiting(id) {
		t.Errorf("Expected a wait indicator for %s", id)
	}

	step := f.sender.last()
	if step.Mode != StepSend || step.ID != id || step.OriginLocation != 10 || step.DestinationLocation != 4200 {
		t.Errorf("Unexpected step %+v", step)
	}
	if len(step.UnitPayload) == 0 {
		t.Errorf("Expected a unit payload")
	}

	h, _ := f.ctrl.Handshake(id)
	if h.State != StateAwaitingPeerDecision || h.Role != RoleInitiator {
		t.Errorf("Expected initiator awaiting peer decision, got %s/%s", h.Role, h.State)
	}
}

func TestInitiatorAccept(t *testing.T) {
	f := newFixture()
	id, _ := f.ctrl.Send(f.world.SpawnUnit("Trader", 10), 10, 4200)

	var settled []Handshake
	f.ctrl.OnSettled(func(h Handshake) { settled = append(settled, h) })

	if err := f.ctrl.Handle(Step{Mode: StepAccept, ID: id}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if f.dialogs.isWaiting(id) {
		t.Errorf("Expected wait indicator to be dismissed")
	}
	if msg, kind := f.dialogs.lastNotice(); msg != textSent || kind != world.NoticeSuccess {
		t.Errorf("Expected %q success notice, got %q (%s)", textSent, msg, kind)
	}
	if f.world.Checkpoints() != 1 {
		t.Errorf("Expected 1 checkpoint, got %d", f.world.Checkpoints())
	}
	if len(f.world.Units()) != 0 {
		t.Errorf("Expected the unit to stay gone on the initiator side")
	}
	if len(settled) != 1 || settled[0].Outcome != OutcomeAccepted {
		t.Errorf("Expected one accepted settlement, got %+v", settled)
	}
}

func TestInitiatorReject(t *testing.T) {
	f := newFixture()
	id, _ := f.ctrl.Send(f.world.SpawnUnit("Trader", 10), 10, 4200)

	if err := f.ctrl.Handle(Step{Mode: StepReject, ID: id}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	units := f.world.Units()
	if len(units) != 1 || units[0].Name != "Trader" || units[0].Location != 10 {
		t.Errorf("Expected Trader back at 10, got %+v", units)
	}
	if f.dialogs.isWaiting(id) {
		t.Errorf("Expected wait indicator to be dismissed")
	}
	if msg, kind := f.dialogs.lastNotice(); msg != textUnavailable || kind != world.NoticeError {
		t.Errorf("Expected %q error notice, got %q (%s)", textUnavailable, msg, kind)
	}
	if f.world.Checkpoints() != 0 {
		t.Errorf("Expected no checkpoint after reject, got %d", f.world.Checkpoints())
	}

	h, _ := f.ctrl.Handshake(id)
	if h.State != StateSettled || h.Outcome != OutcomeRejected {
		t.Errorf("Expected settled/rejected, got %s/%s", h.State, h.Outcome)
	}
}

func TestDuplicateTerminalIsIgnored(t *testing.T) {
	f := newFixture()
	id, _ := f.ctrl.Send(f.world.SpawnUnit("Trader", 10), 10, 4200)

	_ = f.ctrl.Handle(Step{Mode: StepReject, ID: id})
	_ = f.ctrl.Handle(Step{Mode: StepReject, ID: id})
	_ = f.ctrl.Handle(Step{Mode: StepAccept, ID: id})

	if n := unitsAt(f.world, 10); n != 1 {
		t.Errorf("Expected the unit to be restored exactly once, got %d", n)
	}

	// a terminal step for an id this client never sent is ignored as well
	_ = f.ctrl.Handle(Step{Mode: StepReject, ID: "unknown"})
	if len(f.world.Units()) != 1 {
		t.Errorf("Expected no extra units, got %+v", f.world.Units())
	}
}

func TestSendTransportFailureRestoresUnit(t *testing.T) {
	f := newFixture()
	f.sender.err = errors.New("connection closed")

	id, err := f.ctrl.Send(f.world.SpawnUnit("Trader", 10), 10, 4200)
	if err == nil {
		t.Fatalf("Expected an error")
	}

	if n := unitsAt(f.world, 10); n != 1 {
		t.Errorf("Expected the unit back at the origin, got %d", n)
	}
	if f.dialogs.isWaiting(id) {
		t.Errorf("Expected wait indicator to be dismissed")
	}
}

func TestClientNeverReceivesSend(t *testing.T) {
	f := newFixture()
	if err := f.ctrl.Handle(Step{Mode: StepSend, ID: "x"}); !errors.Is(err, ErrUnexpectedStep) {
		t.Errorf("Expected ErrUnexpectedStep, got %v", err)
	}
	if err := f.ctrl.Handle(Step{Mode: StepMode(42), ID: "x"}); !errors.Is(err, ErrUnexpectedStep) {
		t.Errorf("Expected ErrUnexpectedStep for unknown mode, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Destination side
// --------------------------------------------------------------------------

func receiveStep(t *testing.T) Step {
	t.Helper()
	w := world.NewMemoryWorld("")
	payload, err := w.SerializeEntity(w.SpawnUnit("Trader", 10))
	if err != nil {
		t.Fatal(err)
	}
	return Step{Mode: StepReceive, ID: "t-1", OriginLocation: 10, DestinationLocation: 4200, UnitPayload: payload}
}

func TestDestinationAccept(t *testing.T) {
	f := newFixture()
	yes := true
	f.dialogs.answer = &yes

	if err := f.ctrl.Handle(receiveStep(t)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if n := unitsAt(f.world, 4200); n != 1 {
		t.Errorf("Expected the unit at the destination, got %d", n)
	}
	step := f.sender.last()
	if step.Mode != StepAccept || step.ID != "t-1" {
		t.Errorf("Expected accept for t-1, got %+v", step)
	}
	if msg, _ := f.dialogs.lastNotice(); msg != textReceived {
		t.Errorf("Expected %q, got %q", textReceived, msg)
	}
	if f.world.Checkpoints() != 1 {
		t.Errorf("Expected 1 checkpoint, got %d", f.world.Checkpoints())
	}
}

func TestDestinationReject(t *testing.T) {
	f := newFixture()
	no := false
	f.dialogs.answer = &no

	_ = f.ctrl.Handle(receiveStep(t))

	if len(f.world.Units()) != 0 {
		t.Errorf("Expected no unit at the destination, got %+v", f.world.Units())
	}
	step := f.sender.last()
	if step.Mode != StepReject || step.ID != "t-1" || len(step.UnitPayload) == 0 {
		t.Errorf("Expected reject with payload for t-1, got %+v", step)
	}
}

func TestDestinationPlacementFailureRejects(t *testing.T) {
	mem := world.NewMemoryWorld("")
	dialogs := newRecordingDialogs()
	sender := &recordingSender{}
	ctrl := NewController(failingPlaceWorld{mem}, dialogs, mem, sender.send)

	_ = ctrl.Handle(receiveStep(t))
	if err := ctrl.Decide("t-1", true); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if step := sender.last(); step.Mode != StepReject {
		t.Errorf("Expected reject after placement failure, got %s", step.Mode)
	}
	if _, kind := dialogs.lastNotice(); kind != world.NoticeError {
		t.Errorf("Expected an error notice, got %s", kind)
	}
	if mem.Checkpoints() != 0 {
		t.Errorf("Expected no checkpoint, got %d", mem.Checkpoints())
	}
}

func TestDecideOnlyOnce(t *testing.T) {
	f := newFixture()
	_ = f.ctrl.Handle(receiveStep(t))

	if err := f.ctrl.Decide("t-1", true); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if err := f.ctrl.Decide("t-1", true); !errors.Is(err, ErrUnknownHandshake) {
		t.Errorf("Expected ErrUnknownHandshake, got %v", err)
	}
	if n := unitsAt(f.world, 4200); n != 1 {
		t.Errorf("Expected exactly one placed unit, got %d", n)
	}
	if f.sender.count() != 1 {
		t.Errorf("Expected exactly one reply, got %d", f.sender.count())
	}
}

func TestDuplicateReceiveIsIgnored(t *testing.T) {
	f := newFixture()
	_ = f.ctrl.Handle(receiveStep(t))
	_ = f.ctrl.Handle(receiveStep(t))

	if f.dialogs.asked != 1 {
		t.Errorf("Expected a single question, got %d", f.dialogs.asked)
	}
	if len(f.ctrl.Pending()) != 1 {
		t.Errorf("Expected one pending handshake, got %v", f.ctrl.Pending())
	}
}

// --------------------------------------------------------------------------
// Both sides
// --------------------------------------------------------------------------

// TestPayloadPlacedExactlyOnce wires two controllers back to back and checks
// that the unit exists exactly once after either decision.
func TestPayloadPlacedExactlyOnce(t *testing.T) {
	for _, accept := range []bool{true, false} {
		name := "reject"
		if accept {
			name = "accept"
		}
		t.Run(name, func(t *testing.T) {
			alice := world.NewMemoryWorld("")
			bob := world.NewMemoryWorld("")
			answer := accept
			bobDialogs := newRecordingDialogs()
			bobDialogs.answer = &answer

			var aliceCtrl, bobCtrl *Controller
			aliceCtrl = NewController(alice, newRecordingDialogs(), alice, func(step Step) error {
				step.Mode = StepReceive
				return bobCtrl.Handle(step)
			})
			bobCtrl = NewController(bob, bobDialogs, bob, func(step Step) error {
				return aliceCtrl.Handle(step)
			})

			if _, err := aliceCtrl.Send(alice.SpawnUnit("Trader", 10), 10, 4200); err != nil {
				t.Fatalf("Send failed: %v", err)
			}

			total := len(alice.Units()) + len(bob.Units())
			if total != 1 {
				t.Fatalf("Expected the unit to exist exactly once, got %d", total)
			}
			if accept && len(bob.Units()) != 1 {
				t.Errorf("Expected the unit at bob")
			}
			if !accept && len(alice.Units()) != 1 {
				t.Errorf("Expected the unit back at alice")
			}
		})
	}
}
