// Package transport defines how serialized messages travel between the
// authoritative server and its clients.
//
// The transports are not request/response: a connection is a bidirectional
// stream of messages and the server pushes deltas, transfer steps and notices
// to any connection at any time.
//
// Guarantees every implementation gives:
//   - Messages sent on one connection arrive in send order, in both directions.
//   - The handler of a connection is called sequentially, never concurrently
//     with itself.
//   - Send never blocks on the network, each connection has its own outbox.
//   - The disconnect handler runs exactly once per connection, after its last
//     message was handled.
//
// Implementations:
//   - tcp: length prefixed frames over TCP sockets
//   - unix: the same frames over Unix domain sockets
//   - ws: one binary websocket message per protocol message
package transport
