package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/airship-atc/internal/metrics"
	"github.com/yegors/airship-atc/internal/simulation"
	"github.com/yegors/airship-atc/pkg/logger"
)

// Message types pushed to clients
const (
	MessageTypeAirshipUpdate = "airship_update"
	MessageTypeAirshipMode   = "airship_mode"
	MessageTypeAirshipDock   = "airship_dock"
	MessageTypeAirshipChat   = "airship_chat"
	MessageTypeBulkResponse  = "airship_bulk_response" // Server sends the current snapshot
)

// Message types sent by clients
const (
	MessageTypeBulkRequest  = "airship_bulk_request" // Client requests the current snapshot
	MessageTypeFilterUpdate = "filter_update"        // Client sends the routes it wants to see
)

const (
	sendBuffer      = 256
	broadcastBuffer = 256
	writeWait       = 10 * time.Second
)

// Message represents a WebSocket message
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`

	// routeID scopes the message to one route; 0 goes to everyone
	routeID int
}

// ClientFilters represents the active filters for a WebSocket client
type ClientFilters struct {
	Routes map[int]bool `json:"routes"` // route id -> enabled; empty shows all routes
}

// Client represents a WebSocket client
type Client struct {
	conn    *websocket.Conn
	send    chan *Message
	server  *Server
	mu      sync.Mutex
	closed  bool
	filters *ClientFilters // Active filters for this client
}

// SnapshotSource returns the latest airship states
type SnapshotSource func() []simulation.AirshipState

// Server is the hub that fans simulation events out to WebSocket clients
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
	snapshot   SnapshotSource
	done       chan struct{}
}

// NewServer creates a new WebSocket server. allowedOrigins empty or
// containing "*" accepts any origin.
func NewServer(allowedOrigins []string, log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, broadcastBuffer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: log.Named("web-socket"),
		done:   make(chan struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// SetSnapshotSource sets where bulk requests are answered from
func (s *Server) SetSnapshotSource(src SnapshotSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = src
}

// ClientCount returns the number of registered clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run runs the hub until ctx is done. It must be called once.
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			metrics.WebSocketConnections.Inc()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			s.remove(client)
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.mu.RLock()
			clientsToRemove := make([]*Client, 0)
			for client := range s.clients {
				if !client.matches(message) {
					continue
				}
				if !client.SendMessage(message) {
					clientsToRemove = append(clientsToRemove, client)
				}
			}
			s.mu.RUnlock()

			if len(clientsToRemove) > 0 {
				s.mu.Lock()
				for _, client := range clientsToRemove {
					s.logger.Warn("Dropping slow client", logger.String("remote_addr", client.conn.RemoteAddr().String()))
					s.remove(client)
				}
				s.mu.Unlock()
			}
		}
	}
}

// remove unregisters client; s.mu must be held
func (s *Server) remove(client *Client) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	metrics.WebSocketConnections.Dec()

	client.mu.Lock()
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	client.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		s.remove(client)
	}
}

// HandleConnection upgrades the request and registers the client
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Handling new WebSocket connection request",
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("user_agent", r.UserAgent()))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan *Message, sendBuffer),
		server: s,
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for all matching clients. The message is
// dropped when the hub is backed up so callers never block.
func (s *Server) Broadcast(message *Message) {
	select {
	case s.broadcast <- message:
	default:
		s.logger.Warn("Broadcast queue full, dropping message", logger.String("message_type", message.Type))
	}
}

func (s *Server) handleMessage(c *Client, messageType string, data map[string]any) {
	switch messageType {
	case MessageTypeFilterUpdate:
		c.UpdateFilters(parseFilters(data))
		s.logger.Debug("Client filters updated", logger.Any("routes", c.GetFilters().Routes))

	case MessageTypeBulkRequest:
		s.mu.RLock()
		src := s.snapshot
		s.mu.RUnlock()
		if src == nil {
			return
		}
		filters := c.GetFilters()
		airships := make([]simulation.AirshipState, 0)
		for _, st := range src() {
			if filters.allows(st.RouteID) {
				airships = append(airships, st)
			}
		}
		c.SendMessage(&Message{
			Type: MessageTypeBulkResponse,
			Data: map[string]any{"airships": airships},
		})

	default:
		s.logger.Debug("Ignoring unknown message type", logger.String("type", messageType))
	}
}

// parseFilters reads {"routes": [1, 2]}; JSON numbers arrive as float64
func parseFilters(data map[string]any) *ClientFilters {
	f := &ClientFilters{Routes: make(map[int]bool)}
	routes, _ := data["routes"].([]any)
	for _, r := range routes {
		if id, ok := r.(float64); ok {
			f.Routes[int(id)] = true
		}
	}
	return f
}

// readPump reads client messages until the connection fails
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Error("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		c.server.handleMessage(c, message.Type, message.Data)
	}
}

// writePump writes queued messages to the connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))

		data, err := json.Marshal(message)
		if err != nil {
			c.server.logger.Error("Failed to marshal message", logger.Error(err))
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
		metrics.WebSocketMessagesOut.WithLabelValues(message.Type).Inc()
	}

	// send was closed by the hub
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// SendMessage queues a message for this client. It returns false when the
// client is closed or its queue is full.
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// UpdateFilters updates the client's active filters
func (c *Client) UpdateFilters(filters *ClientFilters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = filters
}

// GetFilters returns a copy of the client's current filters
func (c *Client) GetFilters() *ClientFilters {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filters == nil {
		return nil
	}
	filtersCopy := &ClientFilters{Routes: make(map[int]bool, len(c.filters.Routes))}
	for id, enabled := range c.filters.Routes {
		filtersCopy.Routes[id] = enabled
	}
	return filtersCopy
}

func (c *Client) matches(m *Message) bool {
	if m.routeID == 0 {
		return true
	}
	return c.GetFilters().allows(m.routeID)
}

func (f *ClientFilters) allows(routeID int) bool {
	if f == nil || len(f.Routes) == 0 {
		return true
	}
	return f.Routes[routeID]
}
