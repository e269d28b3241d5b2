// Package base implements the connection handling shared by all transports.
//
// Key Components:
//
//   - ConnRegistry: the server side. Transports accept connections in their own
//     way and hand each one to Serve. The registry assigns connection ids, runs
//     the reader (handler called inline, so per connection ordering holds) and a
//     writer per connection, and reports disconnects.
//
//   - ClientPipe: the client side equivalent for a single connection.
//
//   - Outbox: an unbounded lock-free multi-producer single-consumer queue. Any
//     goroutine can push to a connection's outbox without blocking, the
//     connection's writer goroutine drains it.
//
//   - FrameConn / NewStreamConn: message framing for stream sockets. Every frame
//     is sequence number (8 bytes), length (4 bytes) and payload. A sequence gap
//     closes the connection.
//
//   - IServerConnector / IClientConnector: the small per protocol part (tcp,
//     unix) plugged into the generic stream transports.
//
// There is no automatic reconnect. A session is bound to its connection, a
// client that lost its connection starts a new session.
package base
