package ws

import (
	"github.com/ValentinKolb/dSync/rpc/transport/base"
	"github.com/gorilla/websocket"
	"io"
	"sync"
	"time"
)

// Path is the HTTP path the server upgrades on
const Path = "/ws"

// wsConn carries one message per binary websocket frame
type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

func newConn(conn *websocket.Conn) base.FrameConn {
	conn.SetReadLimit(base.MaxFrameSize)
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if kind == websocket.BinaryMessage {
			return data, nil
		}
		// text frames are not part of the protocol
	}
}

func (c *wsConn) WriteMessage(msg []byte) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, msg)
}

func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *wsConn) RemoteAddr() string                 { return c.conn.RemoteAddr().String() }

// Close sends a close frame (best effort) and closes the underlying connection
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}
