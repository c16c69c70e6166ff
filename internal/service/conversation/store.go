// Package conversation owns pairwise conversation identity and message
// history. Conversations are created lazily and never deleted.
package conversation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/lbertin/causerie/internal/model/chat"
	"github.com/lbertin/causerie/internal/service/session"
)

var ErrNotFound = errors.New("conversation not found")

type record struct {
	id           string
	participants [2]string
	messages     []chat.Message
}

func (r *record) has(sessionID string) bool {
	return r.participants[0] == sessionID || r.participants[1] == sessionID
}

func (r *record) other(sessionID string) string {
	if r.participants[0] == sessionID {
		return r.participants[1]
	}
	return r.participants[0]
}

// Store keeps every conversation for the lifetime of the process. It leans on
// the session store to validate participants and resolve peer usernames.
type Store struct {
	mu       sync.RWMutex
	sessions *session.Store
	records  map[string]*record
	order    []string
}

func NewStore(sessions *session.Store) *Store {
	return &Store{sessions: sessions, records: make(map[string]*record)}
}

// FindByParticipants returns the conversation between the two sessions, in
// either order. At most one such conversation exists.
func (s *Store) FindByParticipants(a, b string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		rec := s.records[id]
		if rec.has(a) && rec.has(b) {
			return rec.id, true
		}
	}
	return "", false
}

// Create registers a new conversation between two sessions and attaches its id
// to both participants. It does not deduplicate: callers check
// FindByParticipants first, under the router's serialization.
func (s *Store) Create(a, b string) (string, error) {
	if _, err := s.sessions.GetByID(a); err != nil {
		return "", fmt.Errorf("participant %s: %w", a, err)
	}
	if _, err := s.sessions.GetByID(b); err != nil {
		return "", fmt.Errorf("participant %s: %w", b, err)
	}

	s.mu.Lock()
	rec := &record{id: uuid.NewString(), participants: [2]string{a, b}}
	s.records[rec.id] = rec
	s.order = append(s.order, rec.id)
	s.mu.Unlock()

	if err := s.sessions.AttachConversation(a, rec.id); err != nil {
		return "", err
	}
	if err := s.sessions.AttachConversation(b, rec.id); err != nil {
		return "", err
	}
	return rec.id, nil
}

// AppendMessage appends msg to the conversation history, stamping the current
// time when the caller has not set one. Insertion order is history order.
func (s *Store) AppendMessage(conversationID string, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[conversationID]
	if !ok {
		return ErrNotFound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	rec.messages = append(rec.messages, msg)
	return nil
}

// Messages returns a copy of the conversation history.
func (s *Store) Messages(conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	messages := make([]chat.Message, len(rec.messages))
	copy(messages, rec.messages)
	return messages, nil
}

// ListForUser summarizes every conversation the session participates in. Peer
// usernames reflect the session store at call time, not a creation snapshot.
func (s *Store) ListForUser(sessionID string) []chat.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	participating := lo.Filter(s.order, func(id string, _ int) bool {
		return s.records[id].has(sessionID)
	})
	return lo.Map(participating, func(id string, _ int) chat.ConversationSummary {
		rec := s.records[id]
		summary := chat.ConversationSummary{ID: rec.id}
		if peer, err := s.sessions.GetByID(rec.other(sessionID)); err == nil {
			summary.With = peer.Username
		}
		if n := len(rec.messages); n > 0 {
			last := rec.messages[n-1]
			summary.LastMessage = &last
		}
		return summary
	})
}
