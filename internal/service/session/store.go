// Package session owns the mapping between connections and authenticated user
// identities. Records are retained after disconnect so conversation history
// referencing them stays resolvable; only the online flag is toggled.
package session

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/lbertin/causerie/internal/model/chat"
	"github.com/lbertin/causerie/internal/model/wire"
)

var (
	ErrNameTaken        = errors.New("username already taken")
	ErrUsernameRequired = errors.New("username is required")
	ErrNotFound         = errors.New("session not found")
)

// Conn is the transport-level handle used to deliver envelopes to a session.
// Send must be a fire-and-forget enqueue; it never blocks the caller.
type Conn interface {
	Send(env wire.Outbound)
	Close()
}

// Session is a snapshot of one session record. Conn is valid only while
// Online is true.
type Session struct {
	ID            string
	Username      string
	Online        bool
	Conn          Conn
	CreatedAt     time.Time
	Conversations []string
}

type record struct {
	id            string
	username      string
	online        bool
	conn          Conn
	createdAt     time.Time
	conversations map[string]struct{}
}

func (r *record) snapshot() Session {
	conversations := lo.Keys(r.conversations)
	sort.Strings(conversations)
	return Session{
		ID:            r.id,
		Username:      r.username,
		Online:        r.online,
		Conn:          r.conn,
		CreatedAt:     r.createdAt,
		Conversations: conversations,
	}
}

// Store keeps every session ever created for the lifetime of the process.
// Iteration order is insertion order, matching login order.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	order   []string
}

func NewStore() *Store {
	return &Store{records: make(map[string]*record)}
}

// Create registers a new online session for username bound to conn. It fails
// with ErrNameTaken when any online session already holds the name,
// case-insensitively. Names freed by disconnect may be reused.
func (s *Store) Create(username string, conn Conn) (Session, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return Session{}, ErrUsernameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		rec := s.records[id]
		if rec.online && strings.EqualFold(rec.username, name) {
			return Session{}, ErrNameTaken
		}
	}

	rec := &record{
		id:            uuid.NewString(),
		username:      name,
		online:        true,
		conn:          conn,
		createdAt:     time.Now().UTC(),
		conversations: make(map[string]struct{}),
	}
	s.records[rec.id] = rec
	s.order = append(s.order, rec.id)
	return rec.snapshot(), nil
}

// MarkOffline flips the session offline and drops its connection handle.
// Unknown ids and already-offline sessions are a no-op.
func (s *Store) MarkOffline(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok || !rec.online {
		return
	}
	rec.online = false
	rec.conn = nil
}

// GetByID looks a session up by id regardless of online state.
func (s *Store) GetByID(sessionID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return rec.snapshot(), nil
}

// GetByUsername resolves a name case-insensitively. When several historical
// records share the name, online records win; among records of equal status
// the earliest login wins.
func (s *Store) GetByUsername(username string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var offline *record
	for _, id := range s.order {
		rec := s.records[id]
		if !strings.EqualFold(rec.username, username) {
			continue
		}
		if rec.online {
			return rec.snapshot(), true
		}
		if offline == nil {
			offline = rec
		}
	}
	if offline != nil {
		return offline.snapshot(), true
	}
	return Session{}, false
}

// GetByConn resolves the session currently bound to a connection handle.
func (s *Store) GetByConn(conn Conn) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		rec := s.records[id]
		if rec.online && rec.conn == conn {
			return rec.snapshot(), true
		}
	}
	return Session{}, false
}

// ListOnline returns every online session in login order.
func (s *Store) ListOnline() []chat.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	online := lo.Filter(s.order, func(id string, _ int) bool {
		return s.records[id].online
	})
	return lo.Map(online, func(id string, _ int) chat.User {
		rec := s.records[id]
		return chat.User{SessionID: rec.id, Username: rec.username}
	})
}

// AttachConversation records conversationID in the session's conversation set.
func (s *Store) AttachConversation(sessionID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return ErrNotFound
	}
	rec.conversations[conversationID] = struct{}{}
	return nil
}
