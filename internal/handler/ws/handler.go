// Package ws is the websocket transport adapter: it upgrades HTTP requests,
// feeds inbound frames to the router in arrival order, and delivers outbound
// envelopes through per-connection bounded queues.
package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lbertin/causerie/internal/config"
	"github.com/lbertin/causerie/internal/service/router"
)

type Handler struct {
	router   *router.Router
	hub      *Hub
	cfg      config.Config
	upgrader websocket.Upgrader
}

func New(rt *router.Router, hub *Hub, cfg config.Config) *Handler {
	return &Handler{
		router: rt,
		hub:    hub,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}

	c := newClient(socket, h.cfg.SendQueueSize, h.cfg.WriteTimeout)
	h.hub.register(c)
	go c.writePump(h.cfg.PingInterval)

	log.Printf("[websocket] new client connected (remote=%s)", socket.RemoteAddr())

	h.readLoop(c)

	h.hub.unregister(c)
	h.router.HandleDisconnect(c)
	c.Close()
}

// readLoop blocks until the connection dies, handing each frame to the router.
func (h *Handler) readLoop(c *client) {
	c.socket.SetReadLimit(h.cfg.ReadLimitBytes)
	c.socket.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		c.socket.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		h.router.HandleRaw(c, data)
	}
}
