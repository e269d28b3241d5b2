package serializer

import (
	"github.com/ValentinKolb/dSync/rpc/common"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
	"ZstdBinary": func() IRPCSerializer {
		s, err := NewZstdSerializer(NewBinarySerializer())
		if err != nil {
			panic(err)
		}
		return s
	},
}

// testMessages creates one message per kind the server and clients exchange
func testMessages() []common.Message {
	return []common.Message{
		*common.NewHelloRequest("alice"),
		*common.NewWelcomeResponse("alice", []common.ClaimEntry{
			{Location: 4200, Owner: "bob", RelationshipScore: -80},
			{Location: -17, Owner: "carol", RelationshipScore: 90},
		}),
		*common.NewSnapshotRequest(),
		*common.NewClaimAddRequest(4200),
		*common.NewClaimRemoveRequest(-1),
		*common.NewClaimAddDelta(common.ClaimEntry{Location: 4200, Owner: "alice", RelationshipScore: 12}),
		*common.NewClaimRemoveDelta(4200),
		*common.NewTransferMessage(common.TransferSend, "0b7c3e1e", 4200, 5300, []byte(`{"name":"Doe"}`)),
		*common.NewTransferMessage(common.TransferReject, "0b7c3e1e", 4200, 5300, nil),
		*common.NewIllegalActionNotice("location 4200 is already claimed"),
		*common.NewErrorResponse("test error message"),
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestDeserializeResetsMessage makes sure a reused message does not keep fields of the previous one
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(*common.NewSnapshotRequest())
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			msg := *common.NewClaimAddDelta(common.ClaimEntry{Location: 1, Owner: "alice"})
			msg.Err = "stale"
			if err := serializer.Deserialize(data, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if msg.Claim != nil || msg.Err != "" {
				t.Errorf("Expected a clean snapshot request, got %+v", msg)
			}
		})
	}
}

// TestBinaryNegativeLocations checks that the sign survives the fixed width encoding
func TestBinaryNegativeLocations(t *testing.T) {
	serializer := NewBinarySerializer()
	msg := *common.NewTransferMessage(common.TransferAccept, "id", -4200, -1, []byte{1})

	data, err := serializer.Serialize(msg)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if result.Transfer.OriginLocation != -4200 || result.Transfer.DestinationLocation != -1 {
		t.Errorf("Expected -4200 -> -1, got %d -> %d", result.Transfer.OriginLocation, result.Transfer.DestinationLocation)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only message type, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{3, 0}, // Snapshot request, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for username",
			data:        []byte{1, hasUsername, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Truncated claim",
			data:        []byte{4, hasClaim, 0, 0, 0, 0}, // Step mode and half a location
			expectError: true,
		},
		{
			name:        "Oversized claims count",
			data:        []byte{3, hasClaims, 0xff, 0xff, 0xff, 0xff},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestZstdRejectsGarbage tests that undecodable frames surface as errors
func TestZstdRejectsGarbage(t *testing.T) {
	serializer := testSerializers["ZstdBinary"]()

	var msg common.Message
	if err := serializer.Deserialize([]byte("not zstd"), &msg); err == nil {
		t.Errorf("Expected error for garbage input, got none")
	}
}
