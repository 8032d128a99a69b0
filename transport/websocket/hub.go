package websocket

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/naval-duel/game/protocol"
	"github.com/wricardo/naval-duel/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A full fleet submission is
	// well under this.
	maxMessageSize = 8192

	// DefaultSendBuffer is the per-client outbound queue length
	DefaultSendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients are served from other origins
		return true
	},
}

// Client is one WebSocket connection. It implements service.Emitter.
type Client struct {
	hub     *Hub
	ws      *websocket.Conn
	conn    *service.Conn
	send    chan []byte
	closed  bool
	dropped atomic.Int64
	mu      sync.Mutex
}

// Emit queues ev for delivery. It never blocks; when the queue is full the
// event is dropped.
func (c *Client) Emit(ev protocol.Event) {
	data, err := protocol.Encode(ev)
	if err != nil {
		c.hub.logger.Error("failed to encode event", zap.String("event", ev.EventName()), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.dropped.Add(1)
		c.hub.logger.Warn("send buffer full, dropping event",
			zap.String("conn_id", c.id()),
			zap.String("event", ev.EventName()))
	}
}

func (c *Client) id() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.ID()
}

// close stops further sends and lets writePump say goodbye
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks live clients and relays their traffic to the game service
type Hub struct {
	handler    service.ConnectionHandler
	logger     *zap.Logger
	sendBuffer int

	// Registered clients
	clients map[*Client]bool
	count   atomic.Int64

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a new WebSocket hub. sendBuffer <= 0 selects
// DefaultSendBuffer.
func NewHub(handler service.ConnectionHandler, logger *zap.Logger, sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		handler:    handler,
		logger:     logger.Named("websocket"),
		sendBuffer: sendBuffer,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It returns after Close.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("client registered", zap.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.count.Store(int64(len(h.clients)))
				h.logger.Debug("client unregistered", zap.Int("clients", len(h.clients)))
			}

		case <-h.done:
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.count.Store(0)
			return
		}
	}
}

// Close disconnects every client and stops Run
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// Clients returns the number of registered clients
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// ServeWS upgrades the request and starts the client pumps. An
// Authorization bearer header authenticates the connection immediately.
// Credentials in the query string are ignored so they stay out of access
// logs; browsers send the authenticate message instead.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		ws:   ws,
		send: make(chan []byte, h.sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		ws.Close()
		return
	}

	client.conn = h.handler.Connect(client)
	h.logger.Info("client connected",
		zap.String("conn_id", client.conn.ID()),
		zap.String("remote", r.RemoteAddr))

	if token, ok := bearerToken(r); ok {
		h.handler.Handle(client.conn, protocol.Authenticate{Token: token})
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// bearerToken extracts the credential from an "Authorization: Bearer" header
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// readPump pumps messages from the WebSocket connection to the service
func (c *Client) readPump() {
	defer func() {
		c.hub.handler.Disconnect(c.conn)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.ws.Close()
		c.hub.logger.Info("client disconnected",
			zap.String("conn_id", c.id()),
			zap.Int64("dropped_events", c.dropped.Load()))
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.String("conn_id", c.id()), zap.Error(err))
			}
			return
		}

		msg, err := protocol.Decode(raw)
		if err != nil {
			c.Emit(protocol.Error{Kind: protocol.KindPrecondition, Message: err.Error()})
			continue
		}
		c.hub.handler.Handle(c.conn, msg)
	}
}

// writePump pumps queued events to the WebSocket connection, one frame per
// event
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ service.Emitter = (*Client)(nil)
