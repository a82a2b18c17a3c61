// Package ws serves the push channel: one WebSocket per client, JSON
// envelopes in both directions.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/cadhub/internal/domain/registry"
	"github.com/okian/cadhub/pkg/logger"
)

// Hub is the coordinator side of a connection's lifecycle.
type Hub interface {
	Connect(ctx context.Context, connID string, sender registry.Sender)
	HandleFrame(ctx context.Context, connID string, frame []byte)
	Disconnect(ctx context.Context, connID string)
}

// Handler upgrades GET /ws requests and runs the connection pumps.
type Handler struct {
	hub        Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	newID      func() string
	log        logger.Logger

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewHandler creates a push channel handler bound to hub.
func NewHandler(hub Hub, opts ...Option) *Handler {
	h := &Handler{
		hub:        hub,
		sendBuffer: 256,
		newID:      uuid.NewString,
		conns:      make(map[string]*Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Get().Named("ws")
	}
	return h
}

// ServeHTTP blocks for the lifetime of the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn(ctx, "websocket upgrade failed", logger.Error(err))
		return
	}

	c := newConn(h.newID(), raw, h.sendBuffer, h.log)
	h.track(c)
	go c.writePump()

	h.hub.Connect(ctx, c.id, c)
	h.log.Info(ctx, "websocket connected",
		logger.String("conn_id", c.id), logger.String("remote", r.RemoteAddr))

	c.readPump(ctx, func(ctx context.Context, frame []byte) {
		h.hub.HandleFrame(ctx, c.id, frame)
	})

	h.hub.Disconnect(ctx, c.id)
	h.untrack(c)
	c.close()
	h.log.Info(ctx, "websocket disconnected", logger.String("conn_id", c.id))
}

// Len returns the number of open connections.
func (h *Handler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll asks every connection to close. Used on shutdown, since hijacked
// connections are not closed by http.Server.Shutdown.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	}
}

func (h *Handler) track(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Handler) untrack(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
}
