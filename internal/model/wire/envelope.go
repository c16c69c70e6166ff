// Package wire defines the JSON envelope schema spoken between clients and the
// router. Envelopes are flat objects tagged by a "type" field; the set of kinds
// is closed and dispatch over inbound kinds is exhaustive.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lbertin/causerie/internal/model/chat"
)

// Kind discriminates envelope types on the wire.
type Kind string

const (
	// Client to server.
	KindLogin             Kind = "login"
	KindGetUsers          Kind = "get_users"
	KindMessage           Kind = "message"
	KindGetConversations  Kind = "get_conversations"
	KindStartConversation Kind = "start_conversation"

	// Server to client.
	KindLoginSuccess        Kind = "login_success"
	KindLoginError          Kind = "login_error"
	KindUserList            Kind = "user_list"
	KindNewMessage          Kind = "new_message"
	KindConversationsList   Kind = "conversations_list"
	KindConversationStarted Kind = "conversation_started"
	KindConversationExists  Kind = "conversation_exists"
	KindNewConversation     Kind = "new_conversation"
	KindUserStatus          Kind = "user_status"
	KindError               Kind = "error"
)

var (
	ErrMalformed   = errors.New("malformed envelope")
	ErrUnknownKind = errors.New("unknown envelope kind")
)

// Login is the only client envelope that carries no session id.
type Login struct {
	Username string `json:"username"`
}

type GetUsers struct {
	SessionID string `json:"sessionId"`
}

type DirectMessage struct {
	SessionID string `json:"sessionId"`
	To        string `json:"to"`
	Content   string `json:"content"`
}

type GetConversations struct {
	SessionID string `json:"sessionId"`
}

type StartConversation struct {
	SessionID string `json:"sessionId"`
	With      string `json:"with"`
}

// Inbound is the decoded form of a client envelope. Exactly one payload
// pointer is non-nil, matching Kind.
type Inbound struct {
	Kind              Kind
	Login             *Login
	GetUsers          *GetUsers
	Message           *DirectMessage
	GetConversations  *GetConversations
	StartConversation *StartConversation
}

// SessionID returns the session id the client attached to the envelope, or ""
// for login envelopes, which are sent before a session exists.
func (in Inbound) SessionID() string {
	switch in.Kind {
	case KindGetUsers:
		return in.GetUsers.SessionID
	case KindMessage:
		return in.Message.SessionID
	case KindGetConversations:
		return in.GetConversations.SessionID
	case KindStartConversation:
		return in.StartConversation.SessionID
	default:
		return ""
	}
}

// DecodeInbound parses a raw client frame. It never returns a partially
// populated envelope: the result is valid exactly when err is nil.
func DecodeInbound(data []byte) (Inbound, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	in := Inbound{Kind: probe.Type}
	var payload any
	switch probe.Type {
	case KindLogin:
		in.Login = &Login{}
		payload = in.Login
	case KindGetUsers:
		in.GetUsers = &GetUsers{}
		payload = in.GetUsers
	case KindMessage:
		in.Message = &DirectMessage{}
		payload = in.Message
	case KindGetConversations:
		in.GetConversations = &GetConversations{}
		payload = in.GetConversations
	case KindStartConversation:
		in.StartConversation = &StartConversation{}
		payload = in.StartConversation
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownKind, probe.Type)
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return in, nil
}

// Outbound is implemented by every server-to-client envelope.
type Outbound interface {
	Kind() Kind
}

type LoginSuccess struct {
	Type      Kind   `json:"type"`
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Message   string `json:"message"`
}

func NewLoginSuccess(sessionID, username string) LoginSuccess {
	return LoginSuccess{
		Type:      KindLoginSuccess,
		SessionID: sessionID,
		Username:  username,
		Message:   fmt.Sprintf("Welcome %s!", username),
	}
}

func (LoginSuccess) Kind() Kind { return KindLoginSuccess }

type LoginError struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

func NewLoginError(message string) LoginError {
	return LoginError{Type: KindLoginError, Message: message}
}

func (LoginError) Kind() Kind { return KindLoginError }

type UserList struct {
	Type  Kind        `json:"type"`
	Users []chat.User `json:"users"`
}

func NewUserList(users []chat.User) UserList {
	return UserList{Type: KindUserList, Users: users}
}

func (UserList) Kind() Kind { return KindUserList }

type NewMessage struct {
	Type      Kind      `json:"type"`
	From      string    `json:"from"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessageEnvelope(msg chat.Message) NewMessage {
	return NewMessage{
		Type:      KindNewMessage,
		From:      msg.From,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}
}

func (NewMessage) Kind() Kind { return KindNewMessage }

type ConversationsList struct {
	Type          Kind                       `json:"type"`
	Conversations []chat.ConversationSummary `json:"conversations"`
}

func NewConversationsList(conversations []chat.ConversationSummary) ConversationsList {
	return ConversationsList{Type: KindConversationsList, Conversations: conversations}
}

func (ConversationsList) Kind() Kind { return KindConversationsList }

type ConversationStarted struct {
	Type           Kind   `json:"type"`
	With           string `json:"with"`
	ConversationID string `json:"conversationId"`
}

func NewConversationStarted(with, conversationID string) ConversationStarted {
	return ConversationStarted{Type: KindConversationStarted, With: with, ConversationID: conversationID}
}

func (ConversationStarted) Kind() Kind { return KindConversationStarted }

type ConversationExists struct {
	Type           Kind           `json:"type"`
	With           string         `json:"with"`
	ConversationID string         `json:"conversationId"`
	Messages       []chat.Message `json:"messages"`
}

func NewConversationExists(with, conversationID string, messages []chat.Message) ConversationExists {
	return ConversationExists{
		Type:           KindConversationExists,
		With:           with,
		ConversationID: conversationID,
		Messages:       messages,
	}
}

func (ConversationExists) Kind() Kind { return KindConversationExists }

type NewConversation struct {
	Type           Kind   `json:"type"`
	With           string `json:"with"`
	ConversationID string `json:"conversationId"`
}

func NewConversationEnvelope(with, conversationID string) NewConversation {
	return NewConversation{Type: KindNewConversation, With: with, ConversationID: conversationID}
}

func (NewConversation) Kind() Kind { return KindNewConversation }

// Status values carried by UserStatus envelopes.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type UserStatus struct {
	Type           Kind   `json:"type"`
	Username       string `json:"username"`
	Status         string `json:"status"`
	IsNotification bool   `json:"isNotification"`
}

func NewUserStatus(username, status string) UserStatus {
	return UserStatus{Type: KindUserStatus, Username: username, Status: status, IsNotification: true}
}

func (UserStatus) Kind() Kind { return KindUserStatus }

type Error struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{Type: KindError, Message: message}
}

func (Error) Kind() Kind { return KindError }
