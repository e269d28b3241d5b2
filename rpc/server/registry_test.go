package server

import (
	"errors"
	"github.com/ValentinKolb/dSync/lib/claimstore"
	"github.com/ValentinKolb/dSync/lib/claimstore/fstore"
	"github.com/ValentinKolb/dSync/rpc/common"
	"sort"
	"strings"
	"sync"
	"testing"
)

// recordingRegistry is an ISessionRegistry that records every sent message
type recordingRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	failFor  map[string]bool
	sent     map[string][]common.Message
}

func newRecordingRegistry(users ...string) *recordingRegistry {
	r := &recordingRegistry{
		sessions: make(map[string]*Session),
		failFor:  make(map[string]bool),
		sent:     make(map[string][]common.Message),
	}
	for _, u := range users {
		r.join(u)
	}
	return r
}

func (r *recordingRegistry) join(username string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &Session{ConnID: uint64(len(r.sessions) + 1), Username: username}
	r.sessions[username] = s
	return s
}

func (r *recordingRegistry) leave(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, username)
}

func (r *recordingRegistry) session(t *testing.T, username string) *Session {
	t.Helper()
	s, ok := r.Get(username)
	if !ok {
		t.Fatalf("Expected session for %s", username)
	}
	return s
}

// take returns and forgets the messages sent to username
func (r *recordingRegistry) take(username string) []common.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.sent[username]
	delete(r.sent, username)
	return msgs
}

func (r *recordingRegistry) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, msgs := range r.sent {
		n += len(msgs)
	}
	return n
}

func (r *recordingRegistry) Get(username string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[username]
	return s, ok
}

func (r *recordingRegistry) ConnectedClients() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Username < sessions[j].Username })
	return sessions
}

func (r *recordingRegistry) Send(s *Session, msg *common.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[s.Username] {
		return errors.New("connection closed")
	}
	cp := *msg
	if msg.Transfer != nil {
		tm := *msg.Transfer
		cp.Transfer = &tm
	}
	if msg.Claim != nil {
		cm := *msg.Claim
		cp.Claim = &cm
	}
	r.sent[s.Username] = append(r.sent[s.Username], cp)
	return nil
}

func (r *recordingRegistry) SendIllegalActionNotice(s *Session, reason string) {
	_ = r.Send(s, common.NewIllegalActionNotice(reason))
}

// openStore opens a file store in a temp dir with the given claims
func openStore(t *testing.T, claims map[int]string) claimstore.IClaimStore {
	t.Helper()
	store, err := fstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	for location, owner := range claims {
		if err := store.Add(location, owner); err != nil {
			t.Fatalf("Failed to add claim %d: %v", location, err)
		}
	}
	return store
}

func expectNone(t *testing.T, r *recordingRegistry, username string) {
	t.Helper()
	if msgs := r.take(username); len(msgs) != 0 {
		t.Errorf("Expected no messages to %s, got %+v", username, msgs)
	}
}

func expectOne(t *testing.T, r *recordingRegistry, username string, msgType common.MessageType) common.Message {
	t.Helper()
	msgs := r.take(username)
	if len(msgs) != 1 {
		t.Fatalf("Expected one message to %s, got %d: %+v", username, len(msgs), msgs)
	}
	if msgs[0].MsgType != msgType {
		t.Fatalf("Expected %s to %s, got %s (%s)", msgType, username, msgs[0].MsgType, msgs[0].Err)
	}
	return msgs[0]
}

func expectNoUnsupported(t *testing.T, r *recordingRegistry, username string) {
	t.Helper()
	for _, msg := range r.take(username) {
		if strings.Contains(msg.Err, "unsupported") {
			t.Errorf("Expected step to be handled, got %q", msg.Err)
		}
	}
}
