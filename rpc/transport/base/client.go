package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/ValentinKolb/dSync/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// ClientPipe
// -----------------------------------------------------------

// ClientPipe runs the client side of one FrameConn: a reader goroutine calling
// the handler inline and a writer goroutine draining the outbox. It implements
// everything of transport.IRPCClientTransport except Connect, which is what the
// concrete transports add.
type ClientPipe struct {
	handler      transport.ClientHandleFunc
	onDisconnect func(err error)
	writeTimeout time.Duration

	conn       FrameConn
	outbox     *Outbox[[]byte]
	writerDone chan struct{}
	closing    atomic.Bool
	lostOnce   sync.Once
}

func (p *ClientPipe) RegisterHandler(handler transport.ClientHandleFunc) {
	p.handler = handler
}

func (p *ClientPipe) RegisterDisconnectHandler(handler func(err error)) {
	p.onDisconnect = handler
}

// Start begins serving conn. The handlers must be registered before.
func (p *ClientPipe) Start(conn FrameConn, writeTimeout time.Duration) {
	if p.handler == nil {
		p.handler = func([]byte) {}
	}
	p.conn = conn
	p.writeTimeout = writeTimeout
	p.outbox = NewOutbox[[]byte]()
	p.writerDone = make(chan struct{})
	p.closing.Store(false)

	go p.writeLoop()
	go p.readLoop()
}

func (p *ClientPipe) Send(msg []byte) error {
	if p.outbox == nil {
		return fmt.Errorf("not connected")
	}
	if !p.outbox.Push(&msg) {
		return transport.ErrConnectionClosed
	}
	return nil
}

// Close flushes queued messages (bounded by the write timeout) and closes the connection
func (p *ClientPipe) Close() error {
	if p.conn == nil || p.closing.Swap(true) {
		return nil
	}
	p.outbox.Close()

	wait := p.writeTimeout
	if wait <= 0 {
		wait = 5 * time.Second
	}
	select {
	case <-p.writerDone:
	case <-time.After(wait):
		Logger.Warningf("Closing with unsent messages")
	}
	return p.conn.Close()
}

func (p *ClientPipe) readLoop() {
	for {
		msg, err := p.conn.ReadMessage()
		if err != nil {
			p.lost(err)
			return
		}
		p.handler(msg)
	}
}

func (p *ClientPipe) writeLoop() {
	defer close(p.writerDone)

	failed := false
	for msg := range p.outbox.Recv() {
		if failed {
			continue
		}
		if p.writeTimeout > 0 {
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
		}
		if err := p.conn.WriteMessage(*msg); err != nil {
			failed = true
			p.lost(err)
			_ = p.conn.Close()
		}
	}
}

// lost reports the loss of the connection once, unless it was closed on purpose
func (p *ClientPipe) lost(err error) {
	p.lostOnce.Do(func() {
		p.outbox.Close()
		if p.closing.Load() {
			return
		}
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			Logger.Infof("Connection closed by server")
		} else {
			Logger.Warningf("Connection lost: %v", err)
		}
		if p.onDisconnect != nil {
			p.onDisconnect(err)
		}
	})
}

// -----------------------------------------------------------
// Stream client transport
// -----------------------------------------------------------

// clientTransport implements the client transport for stream connections (unix, tcp)
type clientTransport struct {
	ClientPipe
	connector  IClientConnector
	bufferSize int
}

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector, bufferSize int) transport.IRPCClientTransport {
	return &clientTransport{
		connector:  connector,
		bufferSize: bufferSize,
	}
}

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	conn, err := DialWithRetry(config.Transport.RetryCount, func() (FrameConn, error) {
		c, err := t.connector.Connect(config.Transport.Endpoint)
		if err != nil {
			return nil, err
		}
		if err := t.connector.UpgradeConnection(c, config); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to upgrade connection to %s: %v", config.Transport.Endpoint, err)
		}
		return NewStreamConn(c, t.bufferSize), nil
	})
	if err != nil {
		return err
	}

	Logger.Infof("Connected to %s using %s transport", config.Transport.Endpoint, t.connector.GetName())
	t.Start(conn, time.Duration(config.TimeoutSecond)*time.Second)
	return nil
}
