package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lbertin/causerie/internal/model/wire"
)

// client wraps one websocket connection. Outbound envelopes go through a
// bounded queue drained by a single write pump; a client whose queue fills up
// is disconnected rather than allowed to stall the router.
type client struct {
	socket       *websocket.Conn
	send         chan wire.Outbound
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newClient(socket *websocket.Conn, queueSize int, writeTimeout time.Duration) *client {
	return &client{
		socket:       socket,
		send:         make(chan wire.Outbound, queueSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// Send enqueues env without blocking. Overflow closes the connection.
func (c *client) Send(env wire.Outbound) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- env:
	default:
		log.Printf("[websocket] send queue full, dropping connection (remote=%s)", c.socket.RemoteAddr())
		c.Close()
	}
}

// Close tears the connection down. Safe to call from any goroutine, any number
// of times; closing the socket also unblocks the read loop.
func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.socket.Close()
	})
}

// writePump serializes all writes to the socket: queued envelopes plus
// keepalive pings. gorilla/websocket allows a single concurrent writer.
func (c *client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.socket.WriteJSON(env); err != nil {
				log.Printf("[websocket] write failed: %v", err)
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
