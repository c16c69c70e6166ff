// wsprobe is a manual smoke tester for the chat server: it dials the
// websocket endpoint, logs in, optionally messages another user, and prints
// every envelope it receives until the listen window elapses.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	addr := flag.String("addr", "localhost:8080", "server host:port")
	name := flag.String("name", "", "username to log in with")
	to := flag.String("to", "", "peer username to open a conversation with")
	text := flag.String("text", "", "message to send to the peer")
	listen := flag.Duration("listen", 10*time.Second, "how long to keep printing incoming envelopes")

	flag.Parse()

	if *name == "" {
		flag.Usage()
		log.Fatal("a username is required, pass -name")
	}
	if *text != "" && *to == "" {
		log.Fatal("-text requires -to")
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s failed: %v", u.String(), err)
	}
	defer conn.Close()

	send(conn, map[string]any{"type": "login", "username": *name})

	sessionID := awaitLogin(conn)
	log.Printf("logged in as %s (session=%s)", *name, sessionID)

	send(conn, map[string]any{"type": "get_users", "sessionId": sessionID})

	if *to != "" {
		send(conn, map[string]any{"type": "start_conversation", "sessionId": sessionID, "with": *to})
		if *text != "" {
			send(conn, map[string]any{"type": "message", "sessionId": sessionID, "to": *to, "content": *text})
		}
	}

	deadline := time.Now().Add(*listen)
	conn.SetReadDeadline(deadline)
	for {
		var env map[string]any
		if err := conn.ReadJSON(&env); err != nil {
			if time.Now().After(deadline) {
				return
			}
			log.Fatalf("read failed: %v", err)
		}
		pretty, _ := json.Marshal(env)
		fmt.Printf("<- %s\n", pretty)
	}
}

func send(conn *websocket.Conn, env map[string]any) {
	if err := conn.WriteJSON(env); err != nil {
		log.Fatalf("write %v failed: %v", env["type"], err)
	}
}

// awaitLogin reads envelopes until the server answers the login attempt.
func awaitLogin(conn *websocket.Conn) string {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var env map[string]any
		if err := conn.ReadJSON(&env); err != nil {
			log.Fatalf("read failed while waiting for login reply: %v", err)
		}
		switch env["type"] {
		case "login_success":
			id, _ := env["sessionId"].(string)
			return id
		case "login_error":
			log.Fatalf("login rejected: %v", env["message"])
		}
	}
}
