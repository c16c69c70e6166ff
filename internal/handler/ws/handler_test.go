package ws_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lbertin/causerie/internal/config"
	"github.com/lbertin/causerie/internal/handler"
	"github.com/lbertin/causerie/internal/handler/ws"
	"github.com/lbertin/causerie/internal/service/conversation"
	routersvc "github.com/lbertin/causerie/internal/service/router"
	"github.com/lbertin/causerie/internal/service/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Config{
		SendQueueSize:  16,
		ReadLimitBytes: 65536,
		PingInterval:   time.Second,
		PongTimeout:    5 * time.Second,
		WriteTimeout:   time.Second,
	}

	sessions := session.NewStore()
	conversations := conversation.NewStore(sessions)
	hub := ws.NewHub()
	rt := routersvc.New(sessions, conversations, hub)

	srv := httptest.NewServer(handler.NewRouter(rt, hub, cfg))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, env map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(env))
}

// readUntil skips interleaved broadcasts until an envelope of the wanted kind
// arrives.
func readUntil(t *testing.T, conn *websocket.Conn, kind string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env map[string]any
		require.NoError(t, conn.ReadJSON(&env), "waiting for %q", kind)
		if env["type"] == kind {
			return env
		}
	}
}

func loginUser(t *testing.T, conn *websocket.Conn, username string) string {
	t.Helper()
	send(t, conn, map[string]any{"type": "login", "username": username})
	env := readUntil(t, conn, "login_success")
	sessionID, ok := env["sessionId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, sessionID)
	return sessionID
}

func TestEndToEndDirectMessage(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	alice := dial(t, srv)
	bob := dial(t, srv)

	aliceSID := loginUser(t, alice, "Alice")
	loginUser(t, bob, "Bob")

	send(t, alice, map[string]any{"type": "start_conversation", "sessionId": aliceSID, "with": "Bob"})
	started := readUntil(t, alice, "conversation_started")
	req.Equal("Bob", started["with"])

	invite := readUntil(t, bob, "new_conversation")
	req.Equal("Alice", invite["with"])
	req.Equal(started["conversationId"], invite["conversationId"])

	send(t, alice, map[string]any{"type": "message", "sessionId": aliceSID, "to": "Bob", "content": "hi"})
	delivered := readUntil(t, bob, "new_message")
	req.Equal("Alice", delivered["from"])
	req.Equal("hi", delivered["content"])
	req.NotEmpty(delivered["timestamp"])

	send(t, alice, map[string]any{"type": "get_conversations", "sessionId": aliceSID})
	list := readUntil(t, alice, "conversations_list")
	conversations, ok := list["conversations"].([]any)
	req.True(ok)
	req.Len(conversations, 1)
	summary := conversations[0].(map[string]any)
	req.Equal("Bob", summary["with"])
	last := summary["lastMessage"].(map[string]any)
	req.Equal("hi", last["content"])
}

func TestLoginCollisionOverWire(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	first := dial(t, srv)
	second := dial(t, srv)

	loginUser(t, first, "sam")

	send(t, second, map[string]any{"type": "login", "username": "SAM"})
	env := readUntil(t, second, "login_error")
	req.NotEmpty(env["message"])
}

func TestInvalidFrameAnsweredWithError(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("definitely not json")))

	env := readUntil(t, conn, "error")
	req.Equal("invalid message", env["message"])
}

func TestDisconnectBroadcastsOfflineStatus(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	alice := dial(t, srv)
	bob := dial(t, srv)

	loginUser(t, alice, "alice")
	loginUser(t, bob, "bob")

	req.NoError(bob.Close())

	status := readUntil(t, alice, "user_status")
	req.Equal("bob", status["username"])
	req.Equal("offline", status["status"])
	req.Equal(true, status["isNotification"])
}

func TestHealthEndpoint(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestUnknownRouteAnsweredWithJSONError(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/nope")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)
	req.Equal("application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal("not found", body["error"])
}
