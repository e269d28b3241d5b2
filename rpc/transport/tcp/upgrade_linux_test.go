//go:build linux

package tcp

import (
	"github.com/ValentinKolb/dSync/rpc/common"
	"golang.org/x/sys/unix"
	"net"
	"testing"
)

// dialPair returns the client side of a fresh loopback connection
func dialPair(t *testing.T) *net.TCPConn {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		select {
		case c := <-accepted:
			_ = c.Close()
		default:
		}
	})
	return conn.(*net.TCPConn)
}

func lingerOf(t *testing.T, conn *net.TCPConn) *unix.Linger {
	t.Helper()
	raw, err := conn.SyscallConn()
	if err != nil {
		t.Fatalf("Failed to get raw conn: %v", err)
	}
	var linger *unix.Linger
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		linger, sockErr = unix.GetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER)
	}); err != nil {
		t.Fatalf("Failed to control conn: %v", err)
	}
	if sockErr != nil {
		t.Fatalf("Failed to read SO_LINGER: %v", sockErr)
	}
	return linger
}

func TestUpgradeLinger(t *testing.T) {
	t.Run("ZeroResetsOnClose", func(t *testing.T) {
		conn := dialPair(t)
		if err := upgrade(conn, common.SocketConf{}, common.TCPConf{TCPLingerSec: 0}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		l := lingerOf(t, conn)
		if l.Onoff == 0 || l.Linger != 0 {
			t.Errorf("Expected linger on with 0s, got onoff=%d linger=%d", l.Onoff, l.Linger)
		}
	})

	t.Run("PositiveIsApplied", func(t *testing.T) {
		conn := dialPair(t)
		if err := upgrade(conn, common.SocketConf{}, common.TCPConf{TCPLingerSec: 3}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		l := lingerOf(t, conn)
		if l.Onoff == 0 || l.Linger != 3 {
			t.Errorf("Expected linger on with 3s, got onoff=%d linger=%d", l.Onoff, l.Linger)
		}
	})

	t.Run("NegativeKeepsDefault", func(t *testing.T) {
		conn := dialPair(t)
		if err := upgrade(conn, common.SocketConf{}, common.TCPConf{TCPLingerSec: -1}); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		l := lingerOf(t, conn)
		if l.Onoff != 0 {
			t.Errorf("Expected linger off, got onoff=%d linger=%d", l.Onoff, l.Linger)
		}
	})
}
