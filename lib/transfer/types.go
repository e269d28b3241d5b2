package transfer

import "errors"

// StepMode is the step of a transfer handshake a message carries.
type StepMode uint8

const (
	StepSend    StepMode = iota // initiator -> server
	StepReceive                 // server -> destination
	StepAccept                  // destination -> server -> initiator
	StepReject                  // destination (or server) -> initiator
)

// String returns the name of the step mode
func (m StepMode) String() string {
	switch m {
	case StepSend:
		return "send"
	case StepReceive:
		return "receive"
	case StepAccept:
		return "accept"
	case StepReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Step is one message of a handshake as seen by the controller.
type Step struct {
	Mode                StepMode
	ID                  string
	OriginLocation      int
	DestinationLocation int
	UnitPayload         []byte
}

// Role is the side of the handshake this client is on.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleDestination
)

// String returns the name of the role
func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "destination"
}

// State is the state of a handshake.
//
// Initiator:   Idle -> AwaitingServerAck -> AwaitingPeerDecision -> Settled
// Destination: Idle -> AwaitingPeerDecision -> Settled
type State uint8

const (
	StateIdle State = iota
	StateAwaitingServerAck
	StateAwaitingPeerDecision
	StateSettled
)

// String returns the name of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingServerAck:
		return "awaiting-server-ack"
	case StateAwaitingPeerDecision:
		return "awaiting-peer-decision"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a handshake.
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeAccepted
	OutcomeRejected
)

// String returns the name of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Handshake is the client side record of one transfer.
type Handshake struct {
	ID                  string
	Role                Role
	State               State
	Outcome             Outcome
	OriginLocation      int
	DestinationLocation int
	payload             []byte
}

var (
	// ErrUnknownHandshake is returned when a decision refers to no pending handshake
	ErrUnknownHandshake = errors.New("unknown or settled transfer")
	// ErrUnexpectedStep is returned for steps a client never receives
	ErrUnexpectedStep = errors.New("unexpected transfer step")
)
