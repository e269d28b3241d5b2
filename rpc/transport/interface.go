package transport

import (
	"errors"
	"github.com/ValentinKolb/dSync/rpc/common"
)

var (
	// ErrUnknownConnection is returned when sending to a connection that does not exist (anymore)
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrConnectionClosed is returned when sending on a connection that is shutting down
	ErrConnectionClosed = errors.New("connection closed")
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc handles one message received on a connection.
// Calls for the same connection are sequential and in arrival order, calls
// for different connections run concurrently. msg is only valid during the call.
type ServerHandleFunc func(connID uint64, msg []byte)

// ServerDisconnectFunc is called exactly once when a connection is gone,
// after the last ServerHandleFunc call for that connection returned.
type ServerDisconnectFunc func(connID uint64)

// IRPCServerTransport is the interface for the server side of the transport layer.
// Unlike request/response transports, the server may send to any connection at any time.
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for incoming messages
	RegisterHandler(handler ServerHandleFunc)
	// RegisterDisconnectHandler registers the handler for closed connections
	RegisterDisconnectHandler(handler ServerDisconnectFunc)
	// Send queues msg for the connection. It never blocks on the network.
	// Messages sent to the same connection are delivered in Send order.
	Send(connID uint64, msg []byte) error
	// Disconnect closes a connection from the server side
	Disconnect(connID uint64) error
	// Listen starts the transport layer and blocks until it is closed
	Listen(config common.ServerConfig) error
	// Close stops accepting connections and closes all open ones
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// ClientHandleFunc handles one message pushed by the server.
// Calls are sequential and in arrival order. msg is only valid during the call.
type ClientHandleFunc func(msg []byte)

// IRPCClientTransport is the interface for the client side of the transport layer
type IRPCClientTransport interface {
	// RegisterHandler registers the handler for messages from the server.
	// Must be called before Connect.
	RegisterHandler(handler ClientHandleFunc)
	// RegisterDisconnectHandler registers a function called once when the connection is lost
	RegisterDisconnectHandler(handler func(err error))
	// Connect establishes the connection with the given configuration
	Connect(config common.ClientConfig) error
	// Send queues a message for the server. Messages are delivered in Send order.
	Send(msg []byte) error
	// Close closes the transport connection
	Close() error
}
