// Package rpc is the communication layer between the authoritative dSync
// server and the game clients. Connections are long lived message streams:
// clients send claim and transfer requests, the server answers with notices
// and pushes claim deltas and transfer steps whenever they happen.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, configuration structures and logging.
//
//   - transport: Connection abstractions with pluggable implementations
//     (TCP, Unix sockets, WebSocket).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     and an optional zstd compression wrapper.
//
//   - client: The client session keeping the claim replica in sync and driving
//     the client half of unit transfers.
//
//   - server: The server with the claim synchronizer, the transfer coordinator,
//     the session registry and the admin HTTP endpoint.
package rpc
