package feed

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no inbound traffic)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrClosed          = errors.New("feed adapter closed")
	ErrStreamActive    = errors.New("stream already active")
	ErrNoHistory       = errors.New("history source not configured")
)

// ConnState is the upstream session state of an Adapter.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateStreaming
	StateReconnectBackoff
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateReconnectBackoff:
		return "reconnect_backoff"
	default:
		return "unknown"
	}
}

// Message wraps raw frame data with its receive timestamp.
type Message struct {
	Data       []byte
	ReceivedAt time.Time // Local time when ReadMessage returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full WebSocket URL, including any auth query
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max silence before the connection is considered stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       10000,
	}
}

// AdapterConfig configures the Finnhub adapter.
type AdapterConfig struct {
	URL            string // e.g. wss://ws.finnhub.io
	Token          string // Appended as ?token=
	Client         ClientConfig
	Backoff        Backoff
	TickBufferSize int // Capacity of the channel returned by Stream
}

// DefaultAdapterConfig returns sensible defaults.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		URL:            "wss://ws.finnhub.io",
		Client:         DefaultClientConfig(),
		Backoff:        DefaultBackoff(),
		TickBufferSize: 1024,
	}
}
