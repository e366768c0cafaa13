package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single upstream WebSocket connection.
type Client interface {
	// Connect dials the server and starts the reader and keepalive goroutines.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection. Safe to call more than once.
	Close() error

	// Send writes one text frame. Writes are serialized.
	Send(data []byte) error

	// Messages returns a channel of raw inbound frames.
	Messages() <-chan Message

	// Errors returns a channel that receives at most one terminal error.
	Errors() <-chan error

	// IsConnected reports whether the session is live.
	IsConnected() bool
}

// wsClient is a gorilla/websocket Client. Liveness is enforced with a read
// deadline of PingTimeout that every inbound frame, ping or pong pushes forward.
type wsClient struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu   sync.Mutex // guards conn
	conn *websocket.Conn

	writeMu sync.Mutex

	connected atomic.Bool
	dropped   atomic.Int64

	messages  chan Message
	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultClientConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	return &wsClient{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan Message, cfg.BufferSize),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *wsClient) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *wsClient) Connect(ctx context.Context) error {
	if c.closing() {
		return ErrAlreadyClosed
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closing() {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.extend(conn)
	conn.SetPingHandler(func(data string) error {
		c.extend(conn)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.cfg.WriteTimeout))
	})
	conn.SetPongHandler(func(string) error {
		c.extend(conn)
		return nil
	})

	c.connected.Store(true)
	go c.read(conn)
	go c.keepalive(conn)

	c.logger.Debug("websocket connected", "host", conn.RemoteAddr().String())
	return nil
}

func (c *wsClient) extend(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(c.cfg.PingTimeout))
}

func (c *wsClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.connected.Store(false)

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = conn.Close()
	})
	return err
}

func (c *wsClient) Send(data []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) Messages() <-chan Message { return c.messages }

func (c *wsClient) Errors() <-chan error { return c.errs }

func (c *wsClient) IsConnected() bool { return c.connected.Load() }

// read forwards frames until the connection fails or Close is called.
func (c *wsClient) read(conn *websocket.Conn) {
	defer c.connected.Store(false)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closing() {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.logger.Warn("connection stale", "timeout", c.cfg.PingTimeout)
				err = fmt.Errorf("%w: nothing received for %s", ErrStaleConnection, c.cfg.PingTimeout)
			}
			c.report(err)
			return
		}
		c.extend(conn)

		msg := Message{Data: data, ReceivedAt: time.Now()}
		select {
		case c.messages <- msg:
		case <-c.done:
			return
		default:
			if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
				c.logger.Warn("message buffer full, dropping frames", "dropped", n)
			}
		}
	}
}

// keepalive pings the server every PingInterval so an idle but healthy
// session keeps answering with pongs.
func (c *wsClient) keepalive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				if !c.connected.Load() {
					return
				}
			}
		}
	}
}

// report delivers the first terminal error; later ones are dropped.
func (c *wsClient) report(err error) {
	select {
	case c.errs <- err:
	default:
	}
}
