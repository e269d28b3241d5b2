package ws

import (
	"errors"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/ValentinKolb/dSync/rpc/transport/base"
	"github.com/gorilla/websocket"
	"net/http"
	"sync/atomic"
	"time"
)

// ServerTransport serves websocket connections. It can listen on its own
// (Listen) or be mounted into an existing HTTP server (Handler).
type ServerTransport struct {
	*base.ConnRegistry
	upgrader   websocket.Upgrader
	httpServer atomic.Pointer[http.Server]
}

// NewWSServerTransport creates a new websocket server transport
func NewWSServerTransport() *ServerTransport {
	return &ServerTransport{
		ConnRegistry: base.NewConnRegistry("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			// game clients are not browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades the request and serves the connection until it is closed
func (t *ServerTransport) Handler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			base.Logger.Warningf("Websocket upgrade from %s failed: %v", r.RemoteAddr, err)
			return
		}
		t.Serve(newConn(conn))
	})
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *ServerTransport) Listen(config common.ServerConfig) error {
	t.SetWriteTimeout(time.Duration(config.TimeoutSecond) * time.Second)

	mux := http.NewServeMux()
	mux.Handle(Path, t.Handler())

	srv := &http.Server{
		Addr:              config.Transport.Endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	t.httpServer.Store(srv)

	base.Logger.Infof("Starting ws server on %s%s", config.Transport.Endpoint, Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *ServerTransport) Close() error {
	var err error
	if srv := t.httpServer.Load(); srv != nil {
		err = srv.Close()
	}
	// hijacked connections are not closed by http.Server.Close
	t.CloseAll()
	return err
}
