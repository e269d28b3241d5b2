package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dSync/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasUsername byte = 1 << 0
	hasClaim    byte = 1 << 1
	hasTransfer byte = 1 << 2
	hasClaims   byte = 1 << 3
	hasErr      byte = 1 << 4
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

// Layout: MsgType(1) | flags(1) | fields in flag order.
// Strings and byte slices are length prefixed (uint32), integers are int64 big endian.
func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, 2, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Handle Username
	if msg.Username != "" {
		flags |= hasUsername
		result = appendString(result, msg.Username)
	}

	// Handle Claim
	if msg.Claim != nil {
		flags |= hasClaim
		result = append(result, byte(msg.Claim.StepMode))
		result = appendInt(result, msg.Claim.Location)
		result = appendString(result, msg.Claim.Owner)
		result = appendInt(result, msg.Claim.RelationshipScore)
	}

	// Handle Transfer
	if msg.Transfer != nil {
		flags |= hasTransfer
		result = append(result, byte(msg.Transfer.StepMode))
		result = appendString(result, msg.Transfer.TransferID)
		result = appendInt(result, msg.Transfer.OriginLocation)
		result = appendInt(result, msg.Transfer.DestinationLocation)
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Transfer.UnitPayload)))
		result = append(result, msg.Transfer.UnitPayload...)
	}

	// Handle Claims
	if len(msg.Claims) > 0 {
		flags |= hasClaims
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Claims)))
		for _, c := range msg.Claims {
			result = appendInt(result, c.Location)
			result = appendString(result, c.Owner)
			result = appendInt(result, c.RelationshipScore)
		}
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		result = appendString(result, msg.Err)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	r := &reader{data: data, pos: 2}

	// Read Username if present
	if flags&hasUsername != 0 {
		msg.Username = r.string("username")
	}

	// Read Claim if present
	if flags&hasClaim != 0 {
		msg.Claim = &common.ClaimMessage{
			StepMode: common.ClaimStepMode(r.byte("claim step")),
			Location: r.int("claim location"),
			Owner:    r.string("claim owner"),
		}
		msg.Claim.RelationshipScore = r.int("claim score")
	}

	// Read Transfer if present
	if flags&hasTransfer != 0 {
		msg.Transfer = &common.TransferMessage{
			StepMode:   common.TransferStepMode(r.byte("transfer step")),
			TransferID: r.string("transfer id"),
		}
		msg.Transfer.OriginLocation = r.int("transfer origin")
		msg.Transfer.DestinationLocation = r.int("transfer destination")
		msg.Transfer.UnitPayload = r.bytes("transfer payload")
	}

	// Read Claims if present
	if flags&hasClaims != 0 {
		n := int(r.uint32("claims count"))
		if r.err == nil && n > (len(data)-r.pos)/20 {
			// every entry needs at least 20 bytes (two int64 and an empty string)
			return fmt.Errorf("data too short for %d claims", n)
		}
		msg.Claims = make([]common.ClaimEntry, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			entry := common.ClaimEntry{Location: r.int("claims location")}
			entry.Owner = r.string("claims owner")
			entry.RelationshipScore = r.int("claims score")
			msg.Claims = append(msg.Claims, entry)
		}
	}

	// Read Err if present
	if flags&hasErr != 0 {
		msg.Err = r.string("error")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Username != "" {
		size += 4 + len(msg.Username)
	}
	if msg.Claim != nil {
		size += 1 + 8 + 4 + len(msg.Claim.Owner) + 8
	}
	if msg.Transfer != nil {
		size += 1 + 4 + len(msg.Transfer.TransferID) + 8 + 8 + 4 + len(msg.Transfer.UnitPayload)
	}
	if len(msg.Claims) > 0 {
		size += 4
		for _, c := range msg.Claims {
			size += 8 + 4 + len(c.Owner) + 8
		}
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	return size
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendInt(buf []byte, v int) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(int64(v)))
}

// reader decodes fields sequentially and keeps the first error
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *reader) byte(field string) byte {
	if !r.need(1, field) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *reader) uint32(field string) uint32 {
	if !r.need(4, field) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *reader) int(field string) int {
	if !r.need(8, field) {
		return 0
	}
	v := int64(binary.BigEndian.Uint64(r.data[r.pos : r.pos+8]))
	r.pos += 8
	return int(v)
}

func (r *reader) string(field string) string {
	n := int(r.uint32(field + " length"))
	if !r.need(n, field) {
		return ""
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s
}

// bytes returns nil for an empty slice, like the gob and json serializers do
func (r *reader) bytes(field string) []byte {
	n := int(r.uint32(field + " length"))
	if !r.need(n, field) || n == 0 {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}
