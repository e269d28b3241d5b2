package base

import (
	"errors"
	"github.com/ValentinKolb/dSync/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// serverConn is one accepted connection with its own outbox and writer
type serverConn struct {
	id         uint64
	conn       FrameConn
	outbox     *Outbox[[]byte]
	writerDone chan struct{}
	closeOnce  sync.Once
}

func (c *serverConn) close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

// ConnRegistry implements the connection handling shared by all server
// transports. Transports accept connections in their own way and hand each
// one to Serve.
//
// Every connection is served by two goroutines: the reader (the goroutine
// calling Serve) runs the handler inline, so messages of one connection are
// handled in arrival order. The writer drains the connection's outbox, so
// Send never blocks on a slow peer.
type ConnRegistry struct {
	name         string
	handler      transport.ServerHandleFunc
	onDisconnect transport.ServerDisconnectFunc
	writeTimeout time.Duration

	conns  *xsync.MapOf[uint64, *serverConn]
	nextID atomic.Uint64
	active sync.WaitGroup
}

// NewConnRegistry creates an empty registry, name is used for logging
func NewConnRegistry(name string) *ConnRegistry {
	return &ConnRegistry{
		name:         name,
		handler:      func(uint64, []byte) {},
		onDisconnect: func(uint64) {},
		conns:        xsync.NewMapOf[uint64, *serverConn](),
	}
}

func (r *ConnRegistry) RegisterHandler(handler transport.ServerHandleFunc) {
	r.handler = handler
}

func (r *ConnRegistry) RegisterDisconnectHandler(handler transport.ServerDisconnectFunc) {
	r.onDisconnect = handler
}

// SetWriteTimeout bounds every single write, 0 disables the timeout
func (r *ConnRegistry) SetWriteTimeout(timeout time.Duration) {
	r.writeTimeout = timeout
}

func (r *ConnRegistry) Send(connID uint64, msg []byte) error {
	c, ok := r.conns.Load(connID)
	if !ok {
		return transport.ErrUnknownConnection
	}
	if !c.outbox.Push(&msg) {
		return transport.ErrConnectionClosed
	}
	return nil
}

func (r *ConnRegistry) Disconnect(connID uint64) error {
	c, ok := r.conns.Load(connID)
	if !ok {
		return transport.ErrUnknownConnection
	}
	c.close()
	return nil
}

// Count returns the number of open connections
func (r *ConnRegistry) Count() int {
	return r.conns.Size()
}

// Serve handles conn until it is closed. It blocks, callers run it in its own goroutine.
func (r *ConnRegistry) Serve(conn FrameConn) {
	r.active.Add(1)
	defer r.active.Done()

	c := &serverConn{
		id:         r.nextID.Add(1),
		conn:       conn,
		outbox:     NewOutbox[[]byte](),
		writerDone: make(chan struct{}),
	}
	r.conns.Store(c.id, c)
	Logger.Debugf("%s connection %d opened from %s", r.name, c.id, conn.RemoteAddr())

	go r.writeLoop(c)

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				Logger.Infof("%s connection %d closed", r.name, c.id)
			} else {
				Logger.Warningf("%s connection %d failed: %v", r.name, c.id, err)
			}
			break
		}
		r.handler(c.id, msg)
	}

	// no more sends are accepted, queued ones are dropped by the writer
	r.conns.Delete(c.id)
	c.outbox.Close()
	c.close()
	<-c.writerDone

	r.onDisconnect(c.id)
}

// writeLoop writes queued messages until the outbox is closed and drained
func (r *ConnRegistry) writeLoop(c *serverConn) {
	defer close(c.writerDone)

	failed := false
	for msg := range c.outbox.Recv() {
		if failed {
			continue
		}
		if r.writeTimeout > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(r.writeTimeout))
		}
		if err := c.conn.WriteMessage(*msg); err != nil {
			Logger.Warningf("%s connection %d: write failed: %v", r.name, c.id, err)
			failed = true
			// unblocks the reader, which then runs the disconnect path
			c.close()
		}
	}
}

// CloseAll closes every connection and waits until all Serve calls returned
func (r *ConnRegistry) CloseAll() {
	r.conns.Range(func(_ uint64, c *serverConn) bool {
		c.close()
		return true
	})
	r.active.Wait()
}
