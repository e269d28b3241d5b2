package server

import (
	"github.com/ValentinKolb/dSync/rpc/common"
)

// Session is a connection that completed the hello handshake.
// Usernames are unique among connected sessions.
type Session struct {
	ConnID   uint64
	Username string
}

// IRPCServerAdapter is the interface for all RPC server adapters.
// An adapter owns one kind of message and answers by pushing messages through
// an ISessionRegistry, so one request may produce any number of messages to
// any number of sessions.
type IRPCServerAdapter interface {
	// Handle handles a validated request of a joined session.
	// Calls for the same session are sequential.
	Handle(from *Session, req *common.Message)

	// OnDisconnect is called once after the last request of the session was handled
	OnDisconnect(s *Session)
}

// ISessionRegistry gives adapters access to the connected sessions
type ISessionRegistry interface {
	// Get returns the session of a connected user
	Get(username string) (*Session, bool)

	// ConnectedClients returns all connected sessions ordered by username
	ConnectedClients() []*Session

	// Send queues msg for the session. It never blocks on the network.
	Send(s *Session, msg *common.Message) error

	// SendIllegalActionNotice tells the session that its request was refused.
	// Failures are logged.
	SendIllegalActionNotice(s *Session, reason string)
}
