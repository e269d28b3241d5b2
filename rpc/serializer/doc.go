// Package serializer converts protocol messages to bytes and back.
//
// All serializers implement IRPCSerializer and are interchangeable, as long as
// server and clients agree on the same one.
//
// Implementations:
//
//   - binarySerializerImpl: compact flag based format. Only present fields are
//     written, integers are fixed width big endian so negative locations survive.
//
//   - jsonSerializerImpl: human readable, enums are encoded by name. Useful for
//     debugging and the default of the command line tools.
//
//   - gobSerializerImpl: Go's gob encoding. Every message is its own gob stream,
//     which makes it the largest format.
//
//   - zstdSerializerImpl: wraps any of the above and compresses the result.
//     Worth it for large snapshots and unit payloads.
//
// All implementations are stateless (or use concurrency safe state) and can be
// shared between goroutines.
package serializer
