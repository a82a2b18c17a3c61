package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/cadhub/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 20 // 1MB
)

// Conn is one push connection. It implements registry.Sender: Send queues
// a frame for the write pump and never blocks.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	log  logger.Logger

	mu     sync.Mutex
	closed bool
}

func newConn(id string, ws *websocket.Conn, buffer int, log logger.Logger) *Conn {
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, buffer),
		log:  log,
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Send queues msg. It returns false when the buffer is full or the
// connection is closing; the message is dropped.
func (c *Conn) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close stops the write pump after it drains what is queued.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump feeds inbound frames to handle until the peer goes away.
// Frames are handled in arrival order on this goroutine.
func (c *Conn) readPump(ctx context.Context, handle func(ctx context.Context, frame []byte)) {
	c.ws.SetReadLimit(maxMsgSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn(ctx, "websocket read error", logger.String("conn_id", c.id), logger.Error(err))
			}
			return
		}
		handle(ctx, message)
		// A slow completion call must not count against the pong deadline.
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writePump owns all writes to the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Drain queued messages, each as its own frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.ws.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
