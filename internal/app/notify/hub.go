// Package notify pushes per-user events to websocket clients.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/metrics"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Event kinds.
const (
	EventComment = "comment"
	EventReply   = "reply"
	EventLike    = "like"
)

// Event is a JSON frame delivered to a user.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

// ErrClosed is returned when connecting to a stopped hub.
var ErrClosed = errors.New("notification hub closed")

// Hub tracks websocket connections by user ID.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	count    int
	closed   bool
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(*http.Request) bool, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients:  make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		log:      log,
	}
}

func (h *Hub) Name() string { return "notify" }

func (h *Hub) Start(context.Context) error {
	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()
	return nil
}

// Stop disconnects every client.
func (h *Hub) Stop(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for userID, set := range h.clients {
		for c := range set {
			c.close()
		}
		delete(h.clients, userID)
	}
	h.count = 0
	metrics.SetConnections(0)
	return nil
}

// Serve upgrades the request and streams events for userID until the client
// goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, ErrClosed.Error(), http.StatusServiceUnavailable)
		return ErrClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), log: h.log}
	if !h.register(userID, c) {
		c.close()
		return ErrClosed
	}
	go c.writeLoop()
	c.readLoop(func() { h.unregister(userID, c) })
	return nil
}

// Publish queues an event for every connection of userID. Clients whose
// buffers are full are dropped.
func (h *Hub) Publish(userID string, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Warn("encode notification")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients[userID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithField("user_id", userID).Info("dropping slow websocket client")
		h.unregister(userID, c)
	}
}

// Connections reports the number of open connections for userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Total counts open connections across all users.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) register(userID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.count++
	metrics.SetConnections(h.count)
	return true
}

func (h *Hub) unregister(userID string, c *client) {
	h.mu.Lock()
	if set, ok := h.clients[userID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			h.count--
			if len(set) == 0 {
				delete(h.clients, userID)
			}
		}
	}
	metrics.SetConnections(h.count)
	h.mu.Unlock()
	c.close()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	log  *logger.Logger
	once sync.Once
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.WithError(err).Debug("write websocket message")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readLoop(onClose func()) {
	defer onClose()
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		// give writeLoop a chance to send the close frame
		time.AfterFunc(time.Second, func() { _ = c.conn.Close() })
	})
}
