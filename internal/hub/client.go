package hub

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientState is the lifecycle state of a downstream connection.
type ClientState int32

const (
	StateConnecting ClientState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ClientState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one downstream WebSocket connection. Only the Hub closes it;
// the Registry holds plain references.
type Client struct {
	ID          uuid.UUID
	RemoteAddr  string
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	state     atomic.Int32
	closeOnce sync.Once

	// Set before done is closed; read by the writer afterwards.
	closeCode int
	closeText string
}

func newClient(conn *websocket.Conn, remoteAddr string, queueSize int) *Client {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Client{
		ID:          uuid.New(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, queueSize),
		done:        make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

func (c *Client) setState(s ClientState) {
	c.state.Store(int32(s))
}

// beginClose moves an Open or Connecting client to Closing. It returns false
// if the client was already closing or closed.
func (c *Client) beginClose() bool {
	for {
		cur := c.state.Load()
		if ClientState(cur) >= StateClosing {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(StateClosing)) {
			return true
		}
	}
}

// Enqueue queues payload for the writer without blocking. It returns false
// when the queue is full or the client is not open.
func (c *Client) Enqueue(payload []byte) bool {
	if c.State() != StateOpen {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Pending returns the number of frames waiting in the outbound queue.
func (c *Client) Pending() int {
	return len(c.send)
}

// close stops the writer. The writer then sends a close frame with code and
// text and closes the transport. With abort the transport is closed at once
// and no close frame is sent; this also unblocks a writer stuck on a peer
// that stopped reading. close never waits on the socket.
func (c *Client) close(code int, text string, abort bool) {
	c.closeOnce.Do(func() {
		c.closeCode, c.closeText = code, text
		close(c.done)
		if abort && c.conn != nil {
			c.conn.Close()
		}
	})
}

// writePump drains the outbound queue onto the socket and pings on
// pingInterval. onError is called once on the first write failure. The
// transport is closed when writePump returns.
func (c *Client) writePump(writeTimeout, pingInterval time.Duration, onError func(error)) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeText),
				time.Now().Add(writeTimeout),
			)
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				onError(fmt.Errorf("%w: %w", ErrWriteFailed, err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				onError(fmt.Errorf("%w: %w", ErrWriteFailed, err))
				return
			}
		}
	}
}
