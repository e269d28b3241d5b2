package tcp

import (
	"github.com/ValentinKolb/dSync/rpc/common"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

// TestPushToAllConnections starts a server that forwards every message to all
// other connections and checks ordering per receiver
func TestPushToAllConnections(t *testing.T) {
	srv := NewTCPServerTransport()

	var mu sync.Mutex
	conns := map[uint64]bool{}
	srv.RegisterHandler(func(connID uint64, msg []byte) {
		mu.Lock()
		conns[connID] = true
		targets := make([]uint64, 0, len(conns))
		for id := range conns {
			if id != connID {
				targets = append(targets, id)
			}
		}
		mu.Unlock()

		if string(msg) == "join" {
			return
		}
		for _, id := range targets {
			_ = srv.Send(id, append([]byte(nil), msg...))
		}
	})
	srv.RegisterDisconnectHandler(func(connID uint64) {
		mu.Lock()
		delete(conns, connID)
		mu.Unlock()
	})

	go func() {
		err := srv.Listen(common.ServerConfig{
			TimeoutSecond: 5,
			Transport:     common.ServerTransportConfig{Endpoint: "127.0.0.1:0", TCPConf: common.TCPConf{TCPNoDelay: true}},
		})
		if err != nil {
			t.Errorf("Listen failed: %v", err)
		}
	}()
	defer srv.Close()
	addr := srv.(interface{ Addr() net.Addr }).Addr().String()

	config := common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoint: addr, RetryCount: 3},
	}

	received := make(chan string, 100)
	receiver := NewTCPClientTransport()
	receiver.RegisterHandler(func(msg []byte) { received <- string(msg) })
	if err := receiver.Connect(config); err != nil {
		t.Fatalf("Failed to connect receiver: %v", err)
	}
	defer receiver.Close()

	sender := NewTCPClientTransport()
	if err := sender.Connect(config); err != nil {
		t.Fatalf("Failed to connect sender: %v", err)
	}
	defer sender.Close()

	// both clients must be known to the server before broadcasting
	_ = receiver.Send([]byte("join"))
	_ = sender.Send([]byte("join"))
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(conns)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected 2 joined connections, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	for i := 0; i < 100; i++ {
		_ = sender.Send([]byte(strconv.Itoa(i)))
	}
	for i := 0; i < 100; i++ {
		select {
		case msg := <-received:
			if msg != strconv.Itoa(i) {
				t.Fatalf("Expected %d, got %s", i, msg)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timeout waiting for message %d", i)
		}
	}
}
