package ws

import (
	"fmt"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/ValentinKolb/dSync/rpc/transport/base"
	"github.com/gorilla/websocket"
	"strings"
	"time"
)

// ClientTransport connects to a ServerTransport
type ClientTransport struct {
	base.ClientPipe
	dialer *websocket.Dialer
}

// NewWSClientTransport creates a new websocket client transport
func NewWSClientTransport() *ClientTransport {
	return &ClientTransport{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  64 * 1024,
		},
	}
}

func (t *ClientTransport) Connect(config common.ClientConfig) error {
	if config.Transport.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	url := EndpointURL(config.Transport.Endpoint)

	conn, err := base.DialWithRetry(config.Transport.RetryCount, func() (base.FrameConn, error) {
		conn, _, err := t.dialer.Dial(url, nil)
		if err != nil {
			return nil, err
		}
		return newConn(conn), nil
	})
	if err != nil {
		return err
	}

	base.Logger.Infof("Connected to %s using ws transport", url)
	t.Start(conn, time.Duration(config.TimeoutSecond)*time.Second)
	return nil
}

// EndpointURL turns an endpoint into a websocket URL.
// "host:port" becomes "ws://host:port/ws", http(s) schemes are mapped to ws(s),
// ws(s) URLs are used as they are.
func EndpointURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return endpoint
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	default:
		return "ws://" + endpoint + Path
	}
}
