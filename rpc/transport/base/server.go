package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/ValentinKolb/dSync/rpc/transport"
	"net"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport serves stream connections accepted from a net.Listener
type serverTransport struct {
	*ConnRegistry
	connector  IServerConnector
	bufferSize int
	listener   atomic.Pointer[net.Listener]
	closing    atomic.Bool
	ready      chan struct{}
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new stream server transport.
// bufferSize is the initial read buffer per connection, it grows for larger frames.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IRPCServerTransport {
	return &serverTransport{
		ConnRegistry: NewConnRegistry(connector.GetName()),
		connector:    connector,
		bufferSize:   bufferSize,
		ready:        make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.SetWriteTimeout(time.Duration(config.TimeoutSecond) * time.Second)

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	t.listener.Store(&listener)
	close(t.ready)

	Logger.Infof("Starting %s server on %s", t.connector.GetName(), listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		go t.Serve(NewStreamConn(conn, t.bufferSize))
	}
}

func (t *serverTransport) Close() error {
	t.closing.Store(true)
	var err error
	if l := t.listener.Load(); l != nil {
		err = (*l).Close()
	}
	t.CloseAll()
	return err
}

// Addr blocks until Listen created the listener and returns its address.
// Useful when listening on port 0.
func (t *serverTransport) Addr() net.Addr {
	<-t.ready
	return (*t.listener.Load()).Addr()
}
