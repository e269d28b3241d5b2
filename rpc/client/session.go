package client

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/replica"
	"github.com/ValentinKolb/dSync/lib/transfer"
	"github.com/ValentinKolb/dSync/lib/world"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/ValentinKolb/dSync/rpc/serializer"
	"github.com/ValentinKolb/dSync/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"time"
)

var Logger = logger.GetLogger("client")

var (
	// ErrJoinRefused is returned when the server answers the hello with an error
	ErrJoinRefused = errors.New("join refused")
	// ErrSessionClosed is returned by operations on a closed or lost session
	ErrSessionClosed = errors.New("session closed")
)

// Collaborators are the local parts of the game a session drives
type Collaborators struct {
	World       world.IWorld
	Dialogs     world.IDialogs
	Checkpoints world.ICheckpointer
	Factions    world.IFactionResolver
}

// Session is the client side of dSync: it keeps the claim replica in sync
// and drives this client's half of unit transfers.
//
// All server messages are handled in arrival order on the transport's reader
// goroutine. Operations never wait for the server, except Snapshot.
type Session struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	dialogs    world.IDialogs
	stats      *Stats

	replica   *replica.Replica
	transfers *transfer.Controller

	mu         sync.Mutex
	welcomed   bool
	joined     chan error
	snapshots  []snapshotRequest
	replay     []common.ClaimMessage
	observers  []func(common.Message)
	done       chan struct{}
	closeOnce  sync.Once
	doneReason error
}

// snapshotRequest is an outstanding snapshot request, result is nil for
// requests nobody waits for
type snapshotRequest struct {
	start  time.Time
	result chan []common.ClaimEntry
}

// NewSession connects the transport, joins as config.Username and waits for
// the welcome. The snapshot of the welcome is applied once MarkReady is called.
//
// Usage:
//
//	s, err := client.NewSession(
//		*config,
//		tcp.NewTCPClientTransport(),
//		serializer.NewBinarySerializer(),
//		client.Collaborators{World: w, Dialogs: d, Checkpoints: w, Factions: world.ScoreFactionResolver{Self: "alice"}},
//	)
//	// load the world ...
//	s.MarkReady()
func NewSession(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	collaborators Collaborators,
) (*Session, error) {
	if config.Username == "" {
		return nil, fmt.Errorf("no username provided")
	}

	s := &Session{
		config:     config,
		transport:  transport,
		serializer: serializer,
		dialogs:    collaborators.Dialogs,
		stats:      newStats(),
		replica:    replica.NewReplica(collaborators.World, collaborators.Factions, collaborators.Dialogs),
		joined:     make(chan error, 1),
		done:       make(chan struct{}),
	}
	s.transfers = transfer.NewController(collaborators.World, collaborators.Dialogs, collaborators.Checkpoints, s.sendStep)

	transport.RegisterHandler(s.handle)
	transport.RegisterDisconnectHandler(s.lost)

	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	if err := s.send(common.NewHelloRequest(config.Username)); err != nil {
		_ = transport.Close()
		return nil, err
	}

	timeout := time.Duration(config.TimeoutSecond) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	select {
	case err := <-s.joined:
		if err != nil {
			_ = transport.Close()
			return nil, err
		}
	case <-s.done:
		return nil, fmt.Errorf("connection lost while joining: %w", s.doneReason)
	case <-time.After(timeout):
		_ = transport.Close()
		return nil, fmt.Errorf("no welcome after %s", timeout)
	}

	Logger.Infof("Joined as %s", config.Username)
	return s, nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Username returns the identity of the session
func (s *Session) Username() string { return s.config.Username }

// Replica returns the claim replica of the session
func (s *Session) Replica() *replica.Replica { return s.replica }

// Transfers returns the transfer controller of the session
func (s *Session) Transfers() *transfer.Controller { return s.transfers }

// Stats returns the statistics of the session
func (s *Session) Stats() *Stats { return s.stats }

// Done is closed when the session is closed or the connection is lost
func (s *Session) Done() <-chan struct{} { return s.done }

// OnMessage registers fn to be called with every message from the server
// after the session handled it. fn runs on the reader goroutine and must not
// call Snapshot.
func (s *Session) OnMessage(fn func(common.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// MarkReady is called once the local world is loaded. The replica is built
// from the welcome snapshot and a fresh snapshot is requested, since deltas
// that arrived before are not part of the replica.
func (s *Session) MarkReady() error {
	s.replica.MarkReady()
	return s.RequestSnapshot()
}

// AddClaim asks the server to claim location. Success is silent, a refusal
// arrives as an illegal action notice.
func (s *Session) AddClaim(location int) error {
	return s.send(common.NewClaimAddRequest(location))
}

// RemoveClaim asks the server to remove the claim at location
func (s *Session) RemoveClaim(location int) error {
	return s.send(common.NewClaimRemoveRequest(location))
}

// RequestSnapshot asks the server for a fresh snapshot without waiting for it
func (s *Session) RequestSnapshot() error {
	return s.requestSnapshot(nil)
}

// Snapshot requests a fresh snapshot and waits for it. Since the server
// answers in order, every request sent before has been handled when it returns.
func (s *Session) Snapshot(ctx context.Context) ([]common.ClaimEntry, error) {
	result := make(chan []common.ClaimEntry, 1)
	if err := s.requestSnapshot(result); err != nil {
		return nil, err
	}
	select {
	case entries := <-result:
		return entries, nil
	case <-s.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SendTransfer starts a transfer of unit from origin to destination
func (s *Session) SendTransfer(unit world.Entity, origin, destination int) (string, error) {
	return s.transfers.Send(unit, origin, destination)
}

// Decide answers a received transfer
func (s *Session) Decide(id string, accept bool) error {
	return s.transfers.Decide(id, accept)
}

// Close closes the session. Pending transfers stay unresolved on the server
// until their destination decides.
func (s *Session) Close() error {
	s.finish(ErrSessionClosed)
	return s.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *Session) send(msg *common.Message) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	data, err := s.serializer.Serialize(*msg)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", msg.MsgType, err)
	}
	if err := s.transport.Send(data); err != nil {
		return err
	}
	s.stats.sent.Mark(1)
	return nil
}

func (s *Session) sendStep(step transfer.Step) error {
	msg, err := fromStep(step)
	if err != nil {
		return err
	}
	return s.send(msg)
}

// requestSnapshot queues the request under the lock so requests and
// responses are matched in order
func (s *Session) requestSnapshot(result chan []common.ClaimEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.send(common.NewSnapshotRequest()); err != nil {
		return err
	}
	s.snapshots = append(s.snapshots, snapshotRequest{start: time.Now(), result: result})
	return nil
}

// handle is called by the transport for every message, in order
func (s *Session) handle(data []byte) {
	var msg common.Message
	if err := s.serializer.Deserialize(data, &msg); err != nil {
		Logger.Errorf("Failed to decode message: %v", err)
		return
	}
	if err := msg.Validate(); err != nil {
		Logger.Errorf("Invalid message from server: %v", err)
		return
	}
	s.stats.received.Mark(1)

	switch msg.MsgType {
	case common.MsgTWelcome:
		s.handleWelcome(&msg)
	case common.MsgTSnapshot:
		s.handleSnapshot(&msg)
	case common.MsgTClaim:
		s.handleClaim(msg.Claim)
	case common.MsgTTransfer:
		s.handleTransfer(&msg)
	case common.MsgTIllegal:
		s.stats.illegal.Inc(1)
		Logger.Warningf("Illegal action: %s", msg.Err)
		s.dialogs.Notify(msg.Err, world.NoticeError)
	case common.MsgTError:
		s.handleError(&msg)
	case common.MsgTHello, common.MsgTUnknown:
		Logger.Warningf("Unexpected %s from server", msg.MsgType)
	default:
		Logger.Warningf("Unsupported message type from server: %s", msg.MsgType)
	}

	s.mu.Lock()
	observers := s.observers
	s.mu.Unlock()
	for _, fn := range observers {
		fn(msg)
	}
}

func (s *Session) handleWelcome(msg *common.Message) {
	s.mu.Lock()
	first := !s.welcomed
	s.welcomed = true
	s.mu.Unlock()

	if !first {
		Logger.Warningf("Ignoring second welcome")
		return
	}
	s.replica.LoadSnapshot(toViews(msg.Claims))
	select {
	case s.joined <- nil:
	default:
	}
}

// handleSnapshot rebuilds the replica and applies the deltas that arrived
// while the snapshot was requested, they may be newer than the snapshot
func (s *Session) handleSnapshot(msg *common.Message) {
	s.mu.Lock()
	var req snapshotRequest
	if len(s.snapshots) > 0 {
		req = s.snapshots[0]
		s.snapshots = s.snapshots[1:]
	}
	replay := s.replay
	if len(s.snapshots) == 0 {
		s.replay = nil
	}
	s.mu.Unlock()

	s.replica.LoadSnapshot(toViews(msg.Claims))
	for _, delta := range replay {
		s.applyClaim(delta)
	}

	if !req.start.IsZero() {
		s.stats.snapshotSince(req.start)
	}
	if req.result != nil {
		req.result <- msg.Claims
	}
}

func (s *Session) handleClaim(delta *common.ClaimMessage) {
	s.stats.deltas.Inc(1)
	s.mu.Lock()
	if len(s.snapshots) > 0 {
		s.replay = append(s.replay, *delta)
	}
	s.mu.Unlock()
	s.applyClaim(*delta)
}

func (s *Session) applyClaim(delta common.ClaimMessage) {
	switch delta.StepMode {
	case common.ClaimAdd:
		s.replica.ApplyAdd(world.ClaimView{
			Location:          delta.Location,
			Owner:             delta.Owner,
			RelationshipScore: delta.RelationshipScore,
		})
	case common.ClaimRemove:
		s.replica.ApplyRemove(delta.Location)
	default:
		Logger.Warningf("Unsupported claim step from server: %s", delta.StepMode)
	}
}

func (s *Session) handleTransfer(msg *common.Message) {
	if msg.Err != "" {
		Logger.Infof("Transfer %s %s by server: %s", msg.Transfer.TransferID, msg.Transfer.StepMode, msg.Err)
	}
	step, err := toStep(msg.Transfer)
	if err != nil {
		Logger.Warningf("%v", err)
		return
	}
	if err := s.transfers.Handle(step); err != nil {
		Logger.Warningf("Failed to handle transfer %s: %v", step.ID, err)
	}
}

func (s *Session) handleError(msg *common.Message) {
	s.mu.Lock()
	joining := !s.welcomed
	s.mu.Unlock()

	if joining {
		select {
		case s.joined <- fmt.Errorf("%w: %s", ErrJoinRefused, msg.Err):
		default:
		}
		return
	}
	Logger.Errorf("Server error: %s", msg.Err)
	s.dialogs.Notify(msg.Err, world.NoticeError)
}

// lost is called by the transport when the connection is gone
func (s *Session) lost(err error) {
	Logger.Warningf("Lost connection to server: %v", err)
	s.finish(err)
	s.dialogs.Notify("Lost connection to the server", world.NoticeError)
}

func (s *Session) finish(reason error) {
	s.closeOnce.Do(func() {
		s.doneReason = reason
		s.stats.stop()
		close(s.done)
	})
}
