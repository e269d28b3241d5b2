package base

import (
	"bytes"
	"net"
	"testing"
)

func TestStreamConnFraming(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	// a small buffer forces the reader to grow it
	writer := NewStreamConn(a, 16)
	reader := NewStreamConn(b, 16)

	payloads := [][]byte{[]byte("hello"), {}, bytes.Repeat([]byte("x"), 1000), []byte("bye")}
	go func() {
		for _, p := range payloads {
			if err := writer.WriteMessage(p); err != nil {
				t.Errorf("Failed to write: %v", err)
				return
			}
		}
	}()

	for i, want := range payloads {
		got, err := reader.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Frame %d: expected %d bytes, got %d", i, len(want), len(got))
		}
	}
}

func TestStreamConnRejectsSequenceGap(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_ = writeFrame(a, 1, []byte("one"))
		_ = writeFrame(a, 3, []byte("three"))
	}()

	reader := NewStreamConn(b, 64)
	if _, err := reader.ReadMessage(); err != nil {
		t.Fatalf("Expected first frame to be fine, got %v", err)
	}
	if _, err := reader.ReadMessage(); err == nil {
		t.Errorf("Expected error for a sequence gap, got none")
	}
}

func TestDialWithRetry(t *testing.T) {
	attempts := 0
	_, err := DialWithRetry(3, func() (FrameConn, error) {
		attempts++
		return nil, net.ErrClosed
	})
	if err == nil {
		t.Errorf("Expected error after failed attempts, got none")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}
