package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"github.com/ValentinKolb/dSync/lib/lockmgr"
	"github.com/ValentinKolb/dSync/lib/scores"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/ValentinKolb/dSync/rpc/serializer"
	"github.com/ValentinKolb/dSync/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("rpc")

// lockStripes is the number of location locks of the claim synchronizer
const lockStripes = 1024

// NewRPCServer creates a new RPC server
// The server takes ownership of store and closes it in Close.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//		store,
//		scores.NewStaticScorer(0),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	store claimstore.IClaimStore,
	scorer scores.IRelationshipScorer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	m := newServerMetrics()
	sessions := newSessionRegistry(transport, serializer, m)

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		store:      store,
		metrics:    m,
		sessions:   sessions,
		claims:     NewClaimSynchronizer(store, lockmgr.NewLockManager(lockStripes), scorer, sessions),
		transfers:  NewTransferCoordinator(store, sessions),
	}

	m.gauge("dsync_sessions", sessions.Count)
	m.gauge("dsync_transfers_pending", s.transfers.Pending)

	s.transport.RegisterHandler(s.handle)
	s.transport.RegisterDisconnectHandler(s.handleDisconnect)

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return s
}

// RPCServer is the authoritative server. It owns the claim store and relays
// transfers between its sessions.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	store      claimstore.IClaimStore
	metrics    *serverMetrics

	sessions  *sessionRegistry
	claims    *ClaimSynchronizer
	transfers *TransferCoordinator

	adminMu sync.Mutex
	admin   *http.Server
}

// Claims returns the claim synchronizer of the server
func (s *RPCServer) Claims() *ClaimSynchronizer {
	return s.claims
}

// Sessions returns the session registry of the server
func (s *RPCServer) Sessions() ISessionRegistry {
	return s.sessions
}

// Serve starts the admin endpoint (if configured) and the transport layer.
// It blocks until the transport is closed.
func (s *RPCServer) Serve() error {
	if s.config.AdminEndpoint != "" {
		if err := s.serveAdmin(); err != nil {
			return err
		}
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and the admin endpoint and closes the claim store
func (s *RPCServer) Close() error {
	var errs []error
	if err := s.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}

	s.adminMu.Lock()
	if s.admin != nil {
		if err := s.admin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close admin endpoint: %w", err))
		}
	}
	s.adminMu.Unlock()

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Transport Handlers
// --------------------------------------------------------------------------

// handle is called sequentially per connection
func (s *RPCServer) handle(connID uint64, data []byte) {
	start := time.Now()

	var msg common.Message
	if err := s.serializer.Deserialize(data, &msg); err != nil {
		s.metrics.decodeErrors.Inc()
		s.reply(connID, common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err)))
		return
	}
	defer s.metrics.received(&msg, start)

	if err := msg.Validate(); err != nil {
		s.reply(connID, common.NewErrorResponse(fmt.Sprintf("invalid request: %s", err)))
		return
	}

	session, joined := s.sessions.ByConn(connID)
	if !joined && msg.MsgType != common.MsgTHello {
		s.reply(connID, common.NewErrorResponse("hello required"))
		return
	}

	switch msg.MsgType {
	case common.MsgTHello:
		s.join(connID, msg.Username)
	case common.MsgTSnapshot:
		s.snapshot(session)
	case common.MsgTClaim:
		s.claims.Handle(session, &msg)
	case common.MsgTTransfer:
		s.transfers.Handle(session, &msg)
	case common.MsgTWelcome, common.MsgTIllegal, common.MsgTError:
		s.sessions.SendIllegalActionNotice(session, fmt.Sprintf("%s is sent by the server only", msg.MsgType))
	case common.MsgTUnknown:
		s.reply(connID, common.NewErrorResponse("unknown message type"))
	default:
		s.reply(connID, common.NewErrorResponse(fmt.Sprintf("unsupported message type: %s", msg.MsgType)))
	}
}

// handleDisconnect is called once per connection after its last message was handled
func (s *RPCServer) handleDisconnect(connID uint64) {
	session, ok := s.sessions.Leave(connID)
	if !ok {
		return
	}
	Logger.Infof("%s left", session.Username)
	s.claims.OnDisconnect(session)
	s.transfers.OnDisconnect(session)
}

// join answers a hello with the welcome carrying the snapshot of the new session
func (s *RPCServer) join(connID uint64, username string) {
	session, err := s.sessions.Join(connID, username)
	if err != nil {
		Logger.Warningf("Refused hello of %s on connection %d: %v", username, connID, err)
		s.reply(connID, common.NewErrorResponse(err.Error()))
		return
	}

	claims, err := s.claims.Snapshot(username)
	if err != nil {
		Logger.Errorf("Failed to build snapshot for %s: %v", username, err)
		s.reply(connID, common.NewErrorResponse(fmt.Sprintf("failed to load claims: %s", err)))
		return
	}

	s.reply(connID, common.NewWelcomeResponse(session.Username, claims))
	Logger.Infof("%s joined with %d claims in view", username, len(claims))
}

// snapshot answers a snapshot request with the current claims
func (s *RPCServer) snapshot(session *Session) {
	claims, err := s.claims.Snapshot(session.Username)
	if err != nil {
		Logger.Errorf("Failed to build snapshot for %s: %v", session.Username, err)
		s.reply(session.ConnID, common.NewErrorResponse(fmt.Sprintf("failed to load claims: %s", err)))
		return
	}
	s.reply(session.ConnID, common.NewSnapshotResponse(claims))
}

// reply sends msg to a connection, joined or not
func (s *RPCServer) reply(connID uint64, msg *common.Message) {
	if err := s.sessions.sendTo(connID, msg); err != nil {
		Logger.Warningf("Failed to send %s to connection %d: %v", msg.MsgType, connID, err)
	}
}
