// README: WebSocket hub: user-keyed connection registry with read/write pumps.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"courier/internal/logger"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 16
)

var ErrOffline = errors.New("user not connected")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict origins once the app domains are fixed
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AuthFunc resolves the connecting request to a user id. A non-nil error
// rejects the upgrade.
type AuthFunc func(r *http.Request) (string, error)

// Envelope is the wire format of every pushed message.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	At    time.Time   `json:"at"`
}

type client struct {
	userID string
	conn   *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue hands a message to the write pump. Returns false when the client is
// shutting down or its buffer is full. The mutex pairs with shutdown so the
// channel is never sent on after close.
func (c *client) enqueue(msg []byte) bool {
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

// shutdown closes the send channel exactly once and tears down the socket.
// Only this method may close the channel.
func (c *client) shutdown() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	c.conn.Close()
}

// Hub tracks connected users. One connection per user; a second connection
// replaces the first.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	auth    AuthFunc
	log     logger.ILogger
}

func NewHub(auth AuthFunc, log logger.ILogger) *Hub {
	return &Hub{
		clients: map[string]*client{},
		auth:    auth,
		log:     log,
	}
}

// ServeHTTP upgrades the request and runs the connection pumps until the
// client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth(r)
	if err != nil || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", logger.String("user_id", userID), logger.Error(err))
		return
	}

	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	h.log.Info("ws connected", logger.String("user_id", userID))

	go c.writePump()
	c.readPump(func() {
		h.drop(c)
		h.log.Info("ws disconnected", logger.String("user_id", userID))
	})
}

// Send pushes one event to a connected user. Offline users get ErrOffline.
// The push is non-blocking; a slow consumer loses its connection instead of
// stalling the caller.
func (h *Hub) Send(ctx context.Context, userID, event string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return ErrOffline
	}

	payload, err := json.Marshal(Envelope{Event: event, Data: data, At: time.Now().UTC()})
	if err != nil {
		return err
	}

	if c.enqueue(payload) {
		return nil
	}
	h.drop(c)
	return ErrOffline
}

// IsOnline reports whether the user has a live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	old := h.clients[c.userID]
	h.clients[c.userID] = c
	h.mu.Unlock()
	if old != nil {
		old.shutdown()
	}
}

// drop removes the client from the registry, unless a reconnect has already
// replaced it, and shuts it down.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.userID]; ok && cur == c {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()
	c.shutdown()
}

func (c *client) readPump(onClose func()) {
	defer onClose()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// inbound messages are discarded; the hub is push-only
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
