package hub

import (
	"errors"

	"github.com/gorilla/websocket"
)

var (
	ErrSlowConsumer = errors.New("outbound queue full")
	ErrShuttingDown = errors.New("hub shutting down")
	ErrStreamEnded  = errors.New("tick stream ended")
	ErrWriteFailed  = errors.New("write to client failed")
)

// disconnectReason maps a disconnect cause to a low-cardinality metric label.
func disconnectReason(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, ErrSlowConsumer):
		return "slow_consumer"
	case errors.Is(err, ErrShuttingDown):
		return "shutdown"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return "client_closed"
	default:
		return "transport_error"
	}
}
