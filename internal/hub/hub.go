package hub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/quantdash/internal/metrics"
)

// Config configures downstream connections.
type Config struct {
	SendQueueSize  int           // Outbound frames buffered per client
	ReadLimit      int64         // Max inbound frame size
	WriteTimeout   time.Duration // Per-frame write deadline
	PingInterval   time.Duration // Server ping period
	PongTimeout    time.Duration // Read deadline, extended by pongs and frames
	AllowedOrigins []string      // Empty allows any origin
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SendQueueSize: 256,
		ReadLimit:     4096,
		WriteTimeout:  10 * time.Second,
		PingInterval:  30 * time.Second,
		PongTimeout:   60 * time.Second,
	}
}

// Stats provides statistics about the hub.
type Stats struct {
	Clients int
	RegistryStats
}

// Hub manages downstream client connections.
type Hub struct {
	cfg      Config
	registry *Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	closed  bool
}

// NewHub creates a hub that records subscriptions in registry.
func NewHub(cfg Config, registry *Registry, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop()
	}
	def := DefaultConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		cfg.PongTimeout = 2 * cfg.PingInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:      cfg,
		registry: registry,
		metrics:  m,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[uuid.UUID]*Client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Registry returns the subscription registry backing the hub.
func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and hands the connection to Connect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	if _, err := h.Connect(conn, r.RemoteAddr); err != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
}

// Connect registers an upgraded connection as an open client with no
// subscriptions and starts its reader and writer goroutines.
func (h *Hub) Connect(conn *websocket.Conn, remoteAddr string) (*Client, error) {
	c := newClient(conn, remoteAddr, h.cfg.SendQueueSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrShuttingDown
	}
	c.setState(StateOpen)
	h.clients[c.ID] = c
	n := len(h.clients)
	h.wg.Add(2)
	h.mu.Unlock()

	h.metrics.ConnectedClients.Set(float64(n))
	h.logger.Info("client connected",
		"client_id", c.ID,
		"remote", remoteAddr,
		"clients", n,
	)

	go func() {
		defer h.wg.Done()
		c.writePump(h.cfg.WriteTimeout, h.cfg.PingInterval, func(err error) {
			h.Disconnect(c, err)
		})
	}()
	go func() {
		defer h.wg.Done()
		h.readPump(c)
	}()

	return c, nil
}

// readPump reads client frames until the connection fails.
func (h *Hub) readPump(c *Client) {
	var reason error
	defer func() { h.Disconnect(c, reason) }()

	c.conn.SetReadLimit(h.cfg.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			reason = err
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		h.HandleMessage(h.ctx, c, data)
	}
}

// HandleMessage applies one client frame. Malformed frames, unknown types
// and empty symbols are logged and ignored; the connection stays open.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, data []byte) {
	msg, err := ParseClientMessage(data)
	if err != nil {
		h.metrics.MalformedMessages.Inc()
		h.logger.Warn("ignoring client message",
			"client_id", c.ID,
			"error", err,
		)
		return
	}

	var ack string
	switch msg.Type {
	case TypeSubscribe:
		h.registry.Subscribe(ctx, c, msg.Symbol)
		ack = TypeSubscribed
	case TypeUnsubscribe:
		h.registry.Unsubscribe(ctx, c, msg.Symbol)
		ack = TypeUnsubscribed
	}

	h.logger.Debug("client "+msg.Type, "client_id", c.ID, "symbol", msg.Symbol)

	if !c.Enqueue(encodeAck(ack, msg.Symbol)) && c.State() == StateOpen {
		h.Disconnect(c, ErrSlowConsumer)
	}
}

// Disconnect tears a client down: its subscriptions are released (with one
// batched upstream unsubscribe) and the client's writer is stopped. Slow
// consumers and failed writers have their transport closed at once; other
// clients get a close frame from their writer. Disconnect never blocks on the
// client's socket. Safe to call repeatedly and from any goroutine; only the
// first call has an effect.
func (h *Hub) Disconnect(c *Client, reason error) {
	if c == nil || !c.beginClose() {
		return
	}

	h.mu.Lock()
	delete(h.clients, c.ID)
	n := len(h.clients)
	h.mu.Unlock()

	// Cleanup must still reach upstream while the hub itself is shutting down.
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteTimeout)
	released := h.registry.RemoveClient(ctx, c)
	cancel()

	code, text, abort := websocket.CloseNormalClosure, "", false
	switch {
	case errors.Is(reason, ErrSlowConsumer), errors.Is(reason, ErrWriteFailed):
		abort = true
	case errors.Is(reason, ErrShuttingDown):
		code, text = websocket.CloseGoingAway, "server shutting down"
	}
	c.close(code, text, abort)
	c.setState(StateClosed)

	label := disconnectReason(reason)
	h.metrics.Disconnects.WithLabelValues(label).Inc()
	h.metrics.ConnectedClients.Set(float64(n))
	h.logger.Info("client disconnected",
		"client_id", c.ID,
		"reason", label,
		"error", reason,
		"released", released,
		"clients", n,
	)
}

// Subscribers returns the open clients subscribed to symbol.
func (h *Hub) Subscribers(symbol string) []*Client {
	return h.registry.Subscribers(symbol)
}

// Clients returns a snapshot of all open clients.
func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.State() == StateOpen {
			out = append(out, c)
		}
	}
	return out
}

// Client looks up an active client by ID.
func (h *Hub) Client(id uuid.UUID) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Stats returns current statistics.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	return Stats{Clients: n, RegistryStats: h.registry.Stats()}
}

// Shutdown stops accepting connections, disconnects every client and waits
// for their goroutines, or for ctx.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.logger.Info("shutting down hub", "clients", len(clients))

	// Stable order keeps logs readable.
	slices.SortFunc(clients, func(a, b *Client) int { return a.ConnectedAt.Compare(b.ConnectedAt) })
	for _, c := range clients {
		h.Disconnect(c, ErrShuttingDown)
	}
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub stopped")
		return nil
	case <-ctx.Done():
		h.logger.Warn("shutdown timeout, client goroutines still running")
		return ctx.Err()
	}
}
