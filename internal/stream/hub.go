package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marketlens/oi-tracker/internal/config"
	"github.com/marketlens/oi-tracker/internal/models"
	"github.com/marketlens/oi-tracker/pkg/logger"
)

const maxMessageSize = 512

type broadcastMessage struct {
	symbol  string
	payload []byte
}

// Hub fans live alerts out to connected WebSocket clients. A single run
// goroutine owns the clients map; registration, removal and broadcasts all
// pass through its channels, so the map needs no lock. Slow clients are
// disconnected rather than allowed to stall a broadcast.
type Hub struct {
	cfg config.StreamConfig

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan broadcastMessage
	clients    map[*Connection]bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	mu          sync.Mutex
	running     bool
	clientCount int
}

// NewHub creates a hub; Start launches its run loop
func NewHub(cfg config.StreamConfig) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:        cfg,
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan broadcastMessage, 64),
		clients:    make(map[*Connection]bool),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start starts the hub run loop
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	logger.Info("Starting alert stream hub")
	h.wg.Add(1)
	go h.run()
	return nil
}

// Stop disconnects all clients and waits for the pumps to exit
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	logger.Info("Stopping alert stream hub")
	h.cancel()
	h.wg.Wait()
	logger.Info("Alert stream hub stopped")
}

// Register hands a new connection to the run loop and starts its pumps.
// After shutdown the connection is closed instead.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}

// Publish queues an alert for broadcast. Never blocks the caller; if the
// broadcast queue is full the alert is dropped.
func (h *Hub) Publish(alert models.LiveAlert) {
	payload, err := json.Marshal(ServerMessage{Type: "live_alert", Data: alert})
	if err != nil {
		logger.Error("Failed to encode live alert",
			logger.ErrorField(err),
			logger.String("symbol", alert.Symbol),
		)
		return
	}

	select {
	case h.broadcast <- broadcastMessage{symbol: alert.Symbol, payload: payload}:
	case <-h.done:
	default:
	}
}

// ClientCount returns the number of attached clients
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clientCount
}

func (h *Hub) setClientCount(n int) {
	h.mu.Lock()
	h.clientCount = n
	h.mu.Unlock()
	logger.StreamClients.Set(float64(n))
}

func (h *Hub) run() {
	defer h.wg.Done()
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			for conn := range h.clients {
				delete(h.clients, conn)
				conn.Close()
			}
			h.setClientCount(0)
			return

		case conn := <-h.register:
			h.clients[conn] = true
			h.setClientCount(len(h.clients))
			logger.Info("Stream client connected",
				logger.String("connection_id", conn.ID),
				logger.Int("clients", len(h.clients)),
			)
			h.wg.Add(2)
			go h.writePump(conn)
			go h.readPump(conn)

		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				h.setClientCount(len(h.clients))
				logger.Info("Stream client disconnected",
					logger.String("connection_id", conn.ID),
					logger.Int("clients", len(h.clients)),
				)
			}

		case msg := <-h.broadcast:
			for conn := range h.clients {
				if !conn.ShouldReceive(msg.symbol) {
					continue
				}
				if !conn.enqueue(msg.payload) {
					delete(h.clients, conn)
					conn.Close()
					h.setClientCount(len(h.clients))
					logger.Warn("Dropping slow stream client",
						logger.String("connection_id", conn.ID),
					)
				}
			}
		}
	}
}

// release routes a pump exit back through the run loop; once the loop has
// stopped the connection is closed directly.
func (h *Hub) release(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		conn.Close()
	}
}

// writePump drains the connection's send channel onto the wire and keeps
// the connection alive with pings
func (h *Hub) writePump(conn *Connection) {
	defer h.wg.Done()
	defer h.release(conn)

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			conn.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			conn.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-conn.send:
			conn.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			w, err := conn.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush whatever else is queued into the same frame
			n := len(conn.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-conn.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			conn.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client control frames and enforces pong liveness
func (h *Hub) readPump(conn *Connection) {
	defer h.wg.Done()
	defer h.release(conn)

	// A client gets two ping intervals to answer before the read times out
	wait := 2 * h.cfg.PingInterval
	conn.ws.SetReadLimit(maxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(wait))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(wait))
		return nil
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("Stream read error",
					logger.ErrorField(err),
					logger.String("connection_id", conn.ID),
				)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			conn.sendError("invalid_message", "failed to parse message")
			continue
		}
		handleClientMessage(conn, &msg)
	}
}
