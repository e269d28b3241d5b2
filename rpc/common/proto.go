package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message sent in either direction.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Session fields
	Username string `json:"username,omitempty"` // Used for: Hello, Welcome

	// Payloads
	Claim    *ClaimMessage    `json:"claim,omitempty"`    // Used for: Claim
	Transfer *TransferMessage `json:"transfer,omitempty"` // Used for: Transfer
	Claims   []ClaimEntry     `json:"claims,omitempty"`   // Used for: Welcome, Snapshot (response)

	// Empty if no error, otherwise contains the error message or the violated rule
	Err string `json:"err,omitempty"` // Used for: Illegal, Error
}

// ClaimEntry is a claim projected for one viewer.
type ClaimEntry struct {
	Location          int    `json:"location"`
	Owner             string `json:"owner"`
	RelationshipScore int    `json:"score"`
}

// ClaimMessage is a claim request (client -> server) or delta (server -> client).
// In requests the Owner is ignored, the server always uses the session identity.
type ClaimMessage struct {
	StepMode          ClaimStepMode `json:"step"`
	Location          int           `json:"location"`
	Owner             string        `json:"owner,omitempty"`
	RelationshipScore int           `json:"score,omitempty"`
}

// TransferMessage is one step of a unit transfer handshake.
type TransferMessage struct {
	StepMode            TransferStepMode `json:"step"`
	TransferID          string           `json:"id"`
	OriginLocation      int              `json:"origin"`
	DestinationLocation int              `json:"destination"`
	UnitPayload         []byte           `json:"payload,omitempty"`
}

// Validate checks that the fields required by the message type are present.
func (m *Message) Validate() error {
	switch m.MsgType {
	case MsgTHello:
		if m.Username == "" {
			return fmt.Errorf("hello without username")
		}
	case MsgTWelcome, MsgTSnapshot:
		// claims may be empty
	case MsgTClaim:
		if m.Claim == nil {
			return fmt.Errorf("claim message without claim")
		}
		if !m.Claim.StepMode.Valid() {
			return fmt.Errorf("invalid claim step mode %d", m.Claim.StepMode)
		}
	case MsgTTransfer:
		if m.Transfer == nil {
			return fmt.Errorf("transfer message without transfer")
		}
		if !m.Transfer.StepMode.Valid() {
			return fmt.Errorf("invalid transfer step mode %d", m.Transfer.StepMode)
		}
		if m.Transfer.TransferID == "" {
			return fmt.Errorf("transfer without id")
		}
	case MsgTIllegal, MsgTError:
		if m.Err == "" {
			return fmt.Errorf("%s without reason", m.MsgType)
		}
	case MsgTUnknown:
		return fmt.Errorf("unknown message type")
	default:
		return fmt.Errorf("invalid message type %d", m.MsgType)
	}
	return nil
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewHelloRequest creates the first message of a session
func NewHelloRequest(username string) *Message {
	return &Message{
		MsgType:  MsgTHello,
		Username: username,
	}
}

// NewWelcomeResponse creates the answer to a hello carrying the initial snapshot
func NewWelcomeResponse(username string, claims []ClaimEntry) *Message {
	return &Message{
		MsgType:  MsgTWelcome,
		Username: username,
		Claims:   claims,
	}
}

// NewSnapshotRequest creates a request for a full claim snapshot
func NewSnapshotRequest() *Message {
	return &Message{
		MsgType: MsgTSnapshot,
	}
}

// NewSnapshotResponse creates a full claim snapshot
func NewSnapshotResponse(claims []ClaimEntry) *Message {
	return &Message{
		MsgType: MsgTSnapshot,
		Claims:  claims,
	}
}

// NewClaimAddRequest creates a request to claim a location
func NewClaimAddRequest(location int) *Message {
	return &Message{
		MsgType: MsgTClaim,
		Claim: &ClaimMessage{
			StepMode: ClaimAdd,
			Location: location,
		},
	}
}

// NewClaimRemoveRequest creates a request to give up a location
func NewClaimRemoveRequest(location int) *Message {
	return &Message{
		MsgType: MsgTClaim,
		Claim: &ClaimMessage{
			StepMode: ClaimRemove,
			Location: location,
		},
	}
}

// NewClaimAddDelta creates the broadcast of a new claim for one viewer
func NewClaimAddDelta(entry ClaimEntry) *Message {
	return &Message{
		MsgType: MsgTClaim,
		Claim: &ClaimMessage{
			StepMode:          ClaimAdd,
			Location:          entry.Location,
			Owner:             entry.Owner,
			RelationshipScore: entry.RelationshipScore,
		},
	}
}

// NewClaimRemoveDelta creates the broadcast of a removed claim
func NewClaimRemoveDelta(location int) *Message {
	return &Message{
		MsgType: MsgTClaim,
		Claim: &ClaimMessage{
			StepMode: ClaimRemove,
			Location: location,
		},
	}
}

// NewTransferMessage creates a transfer handshake step
func NewTransferMessage(step TransferStepMode, id string, origin, destination int, payload []byte) *Message {
	return &Message{
		MsgType: MsgTTransfer,
		Transfer: &TransferMessage{
			StepMode:            step,
			TransferID:          id,
			OriginLocation:      origin,
			DestinationLocation: destination,
			UnitPayload:         payload,
		},
	}
}

// NewIllegalActionNotice creates the notice sent to a client whose request broke a rule
func NewIllegalActionNotice(reason string) *Message {
	return &Message{
		MsgType: MsgTIllegal,
		Err:     reason,
	}
}

// NewErrorResponse creates a generic error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// Relabel returns a copy of the transfer message with another step mode
func (t TransferMessage) Relabel(step TransferStepMode) *Message {
	return NewTransferMessage(step, t.TransferID, t.OriginLocation, t.DestinationLocation, t.UnitPayload)
}

// --------------------------------------------------------------------------
// Message Type (with JSON Encoding)
// --------------------------------------------------------------------------

// MessageType is an enum for the different types of messages
type MessageType uint8

// String returns a string representation of the message type
func (t MessageType) String() string {
	switch t {
	case MsgTHello:
		return "hello"
	case MsgTWelcome:
		return "welcome"
	case MsgTSnapshot:
		return "snapshot"
	case MsgTClaim:
		return "claim"
	case MsgTTransfer:
		return "transfer"
	case MsgTIllegal:
		return "illegal"
	case MsgTError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON converts MessageType to a JSON string
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON converts a JSON string to MessageType
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for candidate := MsgTUnknown; candidate < numMessageTypes; candidate++ {
		if candidate.String() == s {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown  MessageType = iota
	MsgTHello                // Client introduces itself
	MsgTWelcome              // Server accepts the session and sends the snapshot
	MsgTSnapshot             // Snapshot request or response
	MsgTClaim                // Claim request or delta
	MsgTTransfer             // Transfer handshake step
	MsgTIllegal              // A request was refused
	MsgTError                // Indicates an error occurred

	numMessageTypes
)

// --------------------------------------------------------------------------
// Claim Step Mode
// --------------------------------------------------------------------------

// ClaimStepMode is the operation a ClaimMessage carries
type ClaimStepMode uint8

const (
	ClaimAdd ClaimStepMode = iota
	ClaimRemove

	numClaimStepModes
)

// AllClaimStepModes returns every declared claim step mode
func AllClaimStepModes() []ClaimStepMode {
	modes := make([]ClaimStepMode, 0, numClaimStepModes)
	for m := ClaimStepMode(0); m < numClaimStepModes; m++ {
		modes = append(modes, m)
	}
	return modes
}

// Valid reports whether m is a declared claim step mode
func (m ClaimStepMode) Valid() bool { return m < numClaimStepModes }

// String returns a string representation of the step mode
func (m ClaimStepMode) String() string {
	switch m {
	case ClaimAdd:
		return "add"
	case ClaimRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// MarshalJSON converts ClaimStepMode to a JSON string
func (m ClaimStepMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON converts a JSON string to ClaimStepMode
func (m *ClaimStepMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, candidate := range AllClaimStepModes() {
		if candidate.String() == s {
			*m = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown claim step mode: %s", s)
}

// --------------------------------------------------------------------------
// Transfer Step Mode
// --------------------------------------------------------------------------

// TransferStepMode is the step a TransferMessage carries
type TransferStepMode uint8

const (
	TransferSend TransferStepMode = iota
	TransferReceive
	TransferAccept
	TransferReject

	numTransferStepModes
)

// AllTransferStepModes returns every declared transfer step mode
func AllTransferStepModes() []TransferStepMode {
	modes := make([]TransferStepMode, 0, numTransferStepModes)
	for m := TransferStepMode(0); m < numTransferStepModes; m++ {
		modes = append(modes, m)
	}
	return modes
}

// Valid reports whether m is a declared transfer step mode
func (m TransferStepMode) Valid() bool { return m < numTransferStepModes }

// String returns a string representation of the step mode
func (m TransferStepMode) String() string {
	switch m {
	case TransferSend:
		return "send"
	case TransferReceive:
		return "receive"
	case TransferAccept:
		return "accept"
	case TransferReject:
		return "reject"
	default:
		return "unknown"
	}
}

// MarshalJSON converts TransferStepMode to a JSON string
func (m TransferStepMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON converts a JSON string to TransferStepMode
func (m *TransferStepMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, candidate := range AllTransferStepModes() {
		if candidate.String() == s {
			*m = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown transfer step mode: %s", s)
}

// An "invalid array index" compiler error signifies that the step modes have
// changed and every switch over them has to be revisited.
func _() {
	var x [1]struct{}
	_ = x[numClaimStepModes-2]
	_ = x[numTransferStepModes-4]
}
