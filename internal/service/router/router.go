// Package router interprets client envelopes and drives the session and
// conversation stores. It is the only writer of either store: every inbound
// event is handled under a single mutex, so each transition observes a
// consistent snapshot regardless of how many connections feed it.
package router

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lbertin/causerie/internal/model/chat"
	"github.com/lbertin/causerie/internal/model/wire"
	"github.com/lbertin/causerie/internal/service/conversation"
	"github.com/lbertin/causerie/internal/service/session"
)

// Broadcaster delivers an envelope to every live connection, authenticated or
// not. Per-connection delivery is independent and best-effort.
type Broadcaster interface {
	Broadcast(env wire.Outbound)
}

type Router struct {
	mu       sync.Mutex
	sessions *session.Store
	convs    *conversation.Store
	hub      Broadcaster
}

func New(sessions *session.Store, convs *conversation.Store, hub Broadcaster) *Router {
	return &Router{sessions: sessions, convs: convs, hub: hub}
}

// HandleRaw decodes one client frame and dispatches it. Undecodable frames
// are answered with a generic error and mutate nothing.
func (r *Router) HandleRaw(conn session.Conn, data []byte) {
	in, err := wire.DecodeInbound(data)
	if err != nil {
		log.Printf("[router] rejecting frame: %v", err)
		conn.Send(wire.NewError("invalid message"))
		return
	}
	r.HandleEnvelope(conn, in)
}

// HandleEnvelope runs one state-machine transition for the connection.
func (r *Router) HandleEnvelope(conn session.Conn, in wire.Inbound) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch in.Kind {
	case wire.KindLogin:
		r.handleLogin(conn, *in.Login)
	case wire.KindGetUsers:
		r.handleGetUsers(conn, *in.GetUsers)
	case wire.KindMessage:
		r.handleMessage(conn, *in.Message)
	case wire.KindGetConversations:
		r.handleGetConversations(conn, *in.GetConversations)
	case wire.KindStartConversation:
		r.handleStartConversation(conn, *in.StartConversation)
	default:
		// DecodeInbound only produces the kinds above.
		log.Printf("[router] unhandled envelope kind %q", in.Kind)
		conn.Send(wire.NewError("invalid message"))
	}
}

// HandleDisconnect marks the connection's session offline and tells everyone.
// Connections that never logged in disappear silently.
func (r *Router) HandleDisconnect(conn session.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions.GetByConn(conn)
	if !ok {
		return
	}
	r.sessions.MarkOffline(sess.ID)
	log.Printf("[router] user disconnected: %s", sess.Username)
	r.hub.Broadcast(wire.NewUserStatus(sess.Username, wire.StatusOffline))
}

func (r *Router) handleLogin(conn session.Conn, in wire.Login) {
	sess, err := r.sessions.Create(in.Username, conn)
	switch {
	case errors.Is(err, session.ErrNameTaken):
		conn.Send(wire.NewLoginError("this username is already taken"))
		return
	case errors.Is(err, session.ErrUsernameRequired):
		conn.Send(wire.NewLoginError("username is required"))
		return
	case err != nil:
		log.Printf("[router] login failed: %v", err)
		conn.Send(wire.NewLoginError("login failed"))
		return
	}

	log.Printf("[router] new session created for user: %s", sess.Username)
	conn.Send(wire.NewLoginSuccess(sess.ID, sess.Username))
	r.hub.Broadcast(wire.NewUserList(r.sessions.ListOnline()))
}

func (r *Router) handleGetUsers(conn session.Conn, in wire.GetUsers) {
	if _, ok := r.authenticate(conn, in.SessionID); !ok {
		return
	}
	conn.Send(wire.NewUserList(r.sessions.ListOnline()))
}

func (r *Router) handleStartConversation(conn session.Conn, in wire.StartConversation) {
	sender, ok := r.authenticate(conn, in.SessionID)
	if !ok {
		return
	}

	target, ok := r.sessions.GetByUsername(in.With)
	if !ok {
		conn.Send(wire.NewError("user not found"))
		return
	}

	if convID, found := r.convs.FindByParticipants(sender.ID, target.ID); found {
		messages, err := r.convs.Messages(convID)
		if err != nil {
			// Unreachable while conversations are never deleted.
			log.Printf("[router] lost conversation %s: %v", convID, err)
			conn.Send(wire.NewError("failed to load conversation"))
			return
		}
		conn.Send(wire.NewConversationExists(target.Username, convID, messages))
		return
	}

	convID, err := r.convs.Create(sender.ID, target.ID)
	if err != nil {
		log.Printf("[router] create conversation failed: %v", err)
		conn.Send(wire.NewError("failed to start conversation"))
		return
	}

	conn.Send(wire.NewConversationStarted(target.Username, convID))
	if target.Online {
		target.Conn.Send(wire.NewConversationEnvelope(sender.Username, convID))
	}
}

func (r *Router) handleMessage(conn session.Conn, in wire.DirectMessage) {
	sender, ok := r.authenticate(conn, in.SessionID)
	if !ok {
		return
	}

	target, ok := r.sessions.GetByUsername(in.To)
	if !ok {
		conn.Send(wire.NewError("recipient not found"))
		return
	}

	msg := chat.Message{
		From:      sender.Username,
		Content:   in.Content,
		Timestamp: time.Now().UTC(),
	}

	// History is only kept for pairs that opened a conversation; messages
	// sent outside one are delivered but not archived.
	if convID, found := r.convs.FindByParticipants(sender.ID, target.ID); found {
		if err := r.convs.AppendMessage(convID, msg); err != nil {
			log.Printf("[router] append to conversation %s failed: %v", convID, err)
			conn.Send(wire.NewError("failed to store message"))
			return
		}
	}

	// Fire and forget: offline recipients drop the message, senders get no
	// confirmation either way.
	if target.Online {
		target.Conn.Send(wire.NewMessageEnvelope(msg))
	}
}

func (r *Router) handleGetConversations(conn session.Conn, in wire.GetConversations) {
	sender, ok := r.authenticate(conn, in.SessionID)
	if !ok {
		return
	}
	conn.Send(wire.NewConversationsList(r.convs.ListForUser(sender.ID)))
}

// authenticate resolves the session id a client attached to its envelope. A
// claim the store cannot back is a protocol violation: the connection gets a
// generic error and is closed.
func (r *Router) authenticate(conn session.Conn, sessionID string) (session.Session, bool) {
	sess, err := r.sessions.GetByID(sessionID)
	if err != nil {
		log.Printf("[router] invalid session claim %q: %v", sessionID, err)
		conn.Send(wire.NewError("invalid session"))
		conn.Close()
		return session.Session{}, false
	}
	return sess, true
}
