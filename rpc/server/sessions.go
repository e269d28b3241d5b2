package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/ValentinKolb/dSync/rpc/serializer"
	"github.com/ValentinKolb/dSync/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
)

var (
	// ErrUsernameTaken is returned when a user joins twice
	ErrUsernameTaken = errors.New("username already connected")
	// ErrAlreadyJoined is returned when a connection sends a second hello
	ErrAlreadyJoined = errors.New("connection already joined")
)

// sessionRegistry implements ISessionRegistry on top of a server transport
type sessionRegistry struct {
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	metrics    *serverMetrics

	byConn *xsync.MapOf[uint64, *Session]
	byName *xsync.MapOf[string, *Session]
}

func newSessionRegistry(t transport.IRPCServerTransport, s serializer.IRPCSerializer, m *serverMetrics) *sessionRegistry {
	return &sessionRegistry{
		transport:  t,
		serializer: s,
		metrics:    m,
		byConn:     xsync.NewMapOf[uint64, *Session](),
		byName:     xsync.NewMapOf[string, *Session](),
	}
}

// Join creates the session of a connection
func (r *sessionRegistry) Join(connID uint64, username string) (*Session, error) {
	if _, ok := r.byConn.Load(connID); ok {
		return nil, ErrAlreadyJoined
	}
	s := &Session{ConnID: connID, Username: username}
	if _, loaded := r.byName.LoadOrStore(username, s); loaded {
		return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
	}
	r.byConn.Store(connID, s)
	return s, nil
}

// Leave removes the session of a connection, the boolean is false if the
// connection never joined
func (r *sessionRegistry) Leave(connID uint64) (*Session, bool) {
	s, ok := r.byConn.LoadAndDelete(connID)
	if !ok {
		return nil, false
	}
	r.byName.Compute(s.Username, func(old *Session, loaded bool) (*Session, bool) {
		// only delete our own entry
		return old, !loaded || old == s
	})
	return s, true
}

// ByConn returns the session of a connection
func (r *sessionRegistry) ByConn(connID uint64) (*Session, bool) {
	return r.byConn.Load(connID)
}

// Count returns the number of joined sessions
func (r *sessionRegistry) Count() int {
	return r.byConn.Size()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.ISessionRegistry)
// --------------------------------------------------------------------------

func (r *sessionRegistry) Get(username string) (*Session, bool) {
	return r.byName.Load(username)
}

func (r *sessionRegistry) ConnectedClients() []*Session {
	sessions := make([]*Session, 0, r.byName.Size())
	r.byName.Range(func(_ string, s *Session) bool {
		sessions = append(sessions, s)
		return true
	})
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Username < sessions[j].Username })
	return sessions
}

func (r *sessionRegistry) Send(s *Session, msg *common.Message) error {
	return r.sendTo(s.ConnID, msg)
}

func (r *sessionRegistry) SendIllegalActionNotice(s *Session, reason string) {
	Logger.Debugf("Illegal action by %s: %s", s.Username, reason)
	if err := r.Send(s, common.NewIllegalActionNotice(reason)); err != nil {
		Logger.Warningf("Failed to send illegal action notice to %s: %v", s.Username, err)
	}
}

// sendTo serializes msg and queues it for a connection, joined or not
func (r *sessionRegistry) sendTo(connID uint64, msg *common.Message) error {
	data, err := r.serializer.Serialize(*msg)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", msg.MsgType, err)
	}
	if err := r.transport.Send(connID, data); err != nil {
		return err
	}
	r.metrics.sent(msg)
	return nil
}
