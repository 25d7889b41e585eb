package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection is one WebSocket client attached to the hub. Outbound frames
// go through the buffered send channel; the hub's write pump drains it.
// The send channel is never closed. Close signals through done instead, so
// a sender racing a close can never hit a closed channel.
type Connection struct {
	ID   string
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}

	mu            sync.RWMutex
	subscriptions map[string]bool

	closeOnce sync.Once
	createdAt time.Time
}

// NewConnection wraps an upgraded WebSocket connection
func NewConnection(ws *websocket.Conn, sendBuffer int) *Connection {
	return &Connection{
		ID:            uuid.New().String(),
		ws:            ws,
		send:          make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
		subscriptions: make(map[string]bool),
		createdAt:     time.Now(),
	}
}

// Subscribe narrows the connection to alerts for a symbol
func (c *Connection) Subscribe(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[symbol] = true
}

// Unsubscribe removes a symbol subscription
func (c *Connection) Unsubscribe(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, symbol)
}

// IsSubscribed reports whether the connection subscribed to a symbol
func (c *Connection) IsSubscribed(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscriptions[symbol]
}

// ShouldReceive reports whether an alert for a symbol belongs on this
// connection. A connection with no subscriptions receives everything.
func (c *Connection) ShouldReceive(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[symbol]
}

// Close shuts the connection down. Safe to call more than once; the hub
// and both pumps all release connections through here. The read pump keeps
// handling client frames until the socket close unblocks it, so send must
// stay open for its acks; done stops the write pump and fails later
// enqueues.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// closed reports whether Close has run
func (c *Connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// enqueue offers a frame to the send channel without blocking. Frames
// offered after Close are dropped.
func (c *Connection) enqueue(payload []byte) bool {
	if c.closed() {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Connection) sendError(code, message string) {
	payload, err := json.Marshal(ServerMessage{Type: "error", Code: code, Message: message})
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func (c *Connection) sendAck(action string, symbols []string) {
	payload, err := json.Marshal(ServerMessage{
		Type: "ack",
		Data: map[string]interface{}{"action": action, "symbols": symbols},
	})
	if err != nil {
		return
	}
	c.enqueue(payload)
}
