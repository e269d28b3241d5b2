// Package tcp implements the stream transport over TCP sockets.
//
// It only provides the connectors, framing, ordering and the per connection
// outboxes come from the base package. Socket options (TCP_NODELAY, keep-alive,
// linger, buffer sizes) are applied to every connection on both sides.
package tcp
