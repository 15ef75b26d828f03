package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/relay-bridge/internal/device"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/config"
	"github.com/nerrad567/relay-bridge/internal/infrastructure/logging"
)

// Push message types.
const (
	wsTypeDevices      = "devices"
	wsTypeDeviceUpdate = "deviceUpdate"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 64

	wsWriteTimeout = 10 * time.Second
)

// wsMessage is one push-channel frame.
type wsMessage struct {
	Type     string          `json:"type"`
	Devices  []device.Device `json:"devices,omitempty"`
	DeviceID string          `json:"deviceId,omitempty"`
	Relay    int             `json:"relay,omitempty"`
	State    bool            `json:"state,omitempty"`
}

// Hub manages dashboard WebSocket connections and implements the
// engine's Broadcaster. Notification suppression never applies here:
// every registry change reaches every connected dashboard.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	registry *device.Registry

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Dashboard is LAN-only; the server binds to a trusted interface.
		return true
	},
}

// NewHub creates the push hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, registry *device.Registry) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		clients:  make(map[*wsClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects all
// clients.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DeviceUpdate pushes one relay change to every dashboard.
func (h *Hub) DeviceUpdate(deviceID string, relay int, on bool) {
	h.broadcast(wsMessage{
		Type:     wsTypeDeviceUpdate,
		DeviceID: deviceID,
		Relay:    relay,
		State:    on,
	})
}

// DevicesChanged pushes a full device snapshot to every dashboard.
// Used when the change is wider than one relay (approval, removal,
// rename, connectivity, bulk commands).
func (h *Hub) DevicesChanged() {
	h.broadcast(wsMessage{
		Type:    wsTypeDevices,
		Devices: h.registry.List(),
	})
}

func (h *Hub) broadcast(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshalling push message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.trySend(data)
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("dashboard connected", "clients", h.ClientCount())
}

// unregister removes a client. Only the goroutine that removes the
// client from the map closes the send channel, preventing double-close
// panics during shutdown.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
	h.logger.Debug("dashboard disconnected", "clients", h.ClientCount())
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}

// trySend queues a frame without blocking; a client whose buffer is
// full just misses the frame and catches up on the next snapshot.
func (c *wsClient) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// handleWebSocket upgrades the connection and streams push frames.
// The first frame is always the full device snapshot.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}
	s.hub.register(client)

	snapshot, err := json.Marshal(wsMessage{
		Type:    wsTypeDevices,
		Devices: s.registry().List(),
	})
	if err == nil {
		client.trySend(snapshot)
	}

	go client.writePump(s.hub)
	go client.readPump(s.hub, s.wsCfg)
}

// writePump drains the send channel onto the connection, pinging on
// the configured interval.
func (c *wsClient) writePump(h *Hub) {
	interval := time.Duration(h.cfg.PingInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump exists to detect disconnects and honour pongs; the dashboard
// sends no application frames.
func (c *wsClient) readPump(h *Hub, cfg config.WebSocketConfig) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}

	pongTimeout := time.Duration(cfg.PongTimeout) * time.Second
	if pongTimeout <= 0 {
		pongTimeout = 60 * time.Second
	}
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	deadline := pingInterval + pongTimeout

	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
