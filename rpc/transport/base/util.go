package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"
)

// MaxFrameSize is the largest payload a frame may carry
const MaxFrameSize = 64 << 20

// frameHeaderSize is 8 bytes sequence number + 4 bytes payload length
const frameHeaderSize = 12

// --------------------------------------------------------------------------
// FrameConn
// --------------------------------------------------------------------------

// FrameConn is a connection that carries whole messages.
// ReadMessage and WriteMessage may be called concurrently with each other,
// but each only from a single goroutine.
type FrameConn interface {
	// ReadMessage blocks until the next message arrived.
	// The returned slice is only valid until the next call.
	ReadMessage() ([]byte, error)
	// WriteMessage writes one message
	WriteMessage(msg []byte) error
	// SetWriteDeadline bounds the next writes, the zero time disables it
	SetWriteDeadline(t time.Time) error
	// RemoteAddr is used for logging
	RemoteAddr() string
	Close() error
}

// streamConn frames messages on a byte stream (tcp, unix sockets).
// Every frame carries a sequence number, a gap means the stream is corrupt.
type streamConn struct {
	conn    net.Conn
	buf     []byte
	readSeq uint64
	sendSeq uint64
}

// NewStreamConn wraps a stream oriented connection
func NewStreamConn(conn net.Conn, bufferSize int) FrameConn {
	if bufferSize < frameHeaderSize {
		bufferSize = frameHeaderSize
	}
	return &streamConn{conn: conn, buf: make([]byte, bufferSize)}
}

func (s *streamConn) ReadMessage() ([]byte, error) {
	seq, data, err := readFrame(s.conn, s.buf)
	if err != nil {
		return nil, err
	}
	// keep a grown buffer for the next frames
	if cap(data) > cap(s.buf) {
		s.buf = data[:cap(data)]
	}
	s.readSeq++
	if seq != s.readSeq {
		return nil, fmt.Errorf("frame out of sequence: expected %d, got %d", s.readSeq, seq)
	}
	return data, nil
}

func (s *streamConn) WriteMessage(msg []byte) error {
	s.sendSeq++
	return writeFrame(s.conn, s.sendSeq, msg)
}

func (s *streamConn) SetWriteDeadline(t time.Time) error { return s.conn.SetWriteDeadline(t) }
func (s *streamConn) RemoteAddr() string                 { return s.conn.RemoteAddr().String() }
func (s *streamConn) Close() error                       { return s.conn.Close() }

// --------------------------------------------------------------------------
// Framing
// --------------------------------------------------------------------------

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: sequence number (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, seq uint64, data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(data))
	}
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], seq)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(data)))

	// header and payload in a single write
	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer.
// If the buffer is too small, a larger one is allocated and returned as part of data.
func readFrame(conn io.Reader, buf []byte) (uint64, []byte, error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	if _, err := io.ReadFull(conn, buf[:frameHeaderSize]); err != nil {
		return 0, nil, err
	}

	seq := binary.BigEndian.Uint64(buf[:8])
	contentLength := binary.BigEndian.Uint32(buf[8:12])

	if contentLength > MaxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", contentLength)
	}
	if contentLength == 0 {
		return seq, buf[:0], nil
	}

	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, nil, err
	}

	return seq, buf[:contentLength], nil
}

// --------------------------------------------------------------------------
// Dialing
// --------------------------------------------------------------------------

// DialWithRetry calls dial until it succeeds, at most attempts times
// (at least once), with exponential backoff and a small random jitter between attempts.
func DialWithRetry(attempts int, dial func() (FrameConn, error)) (FrameConn, error) {
	if attempts < 1 {
		attempts = 1
	}

	// Initial backoff duration in milliseconds
	backoffMs := 50
	var lastErr error

	for i := 0; i < attempts; i++ {
		conn, err := dial()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		Logger.Debugf("Connect attempt %d/%d failed: %v", i+1, attempts, err)

		if i < attempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", attempts, lastErr)
}
