package bstore

import (
	"bytes"
	"encoding/binary"
)

// Bucket names
var (
	bucketClaims = []byte("claims")
	bucketOwners = []byte("owners")
)

// locationToKey converts a location to an 8-byte big-endian key.
// The sign bit is flipped so negative locations sort before positive ones.
func locationToKey(location int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(int64(location))^(1<<63))
	return buf
}

// keyToLocation converts an 8-byte key back to a location.
func keyToLocation(key []byte) int {
	return int(int64(binary.BigEndian.Uint64(key) ^ (1 << 63)))
}

// ownerKey builds the key of the owner index: owner, a zero byte, the location key.
func ownerKey(owner string, location int) []byte {
	key := make([]byte, 0, len(owner)+9)
	key = append(key, owner...)
	key = append(key, 0)
	return append(key, locationToKey(location)...)
}

// ownerPrefix returns the prefix shared by all index keys of owner
func ownerPrefix(owner string) []byte {
	return append([]byte(owner), 0)
}

// hasOwnerPrefix reports whether key belongs to the owner of prefix
func hasOwnerPrefix(key, prefix []byte) bool {
	return len(key) == len(prefix)+8 && bytes.HasPrefix(key, prefix)
}
