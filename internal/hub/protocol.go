package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/quantdash/internal/model"
)

// Frame types.
const (
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeTick         = "tick"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownType      = errors.New("unknown message type")
	ErrEmptySymbol      = errors.New("empty symbol")
)

// ClientMessage is an inbound client frame.
type ClientMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// TickFrame is the outbound frame for one tick.
type TickFrame struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"ts"`
	Volume    float64 `json:"volume,omitempty"`
}

// AckFrame confirms a subscribe or unsubscribe.
type AckFrame struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// ParseClientMessage decodes and validates an inbound frame. The returned
// symbol is normalized.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	msg.Type = strings.ToLower(strings.TrimSpace(msg.Type))
	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
	default:
		return msg, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	msg.Symbol = model.NormalizeSymbol(msg.Symbol)
	if msg.Symbol == "" {
		return msg, ErrEmptySymbol
	}
	return msg, nil
}

// EncodeTick renders t as a tick frame.
func EncodeTick(t model.Tick) ([]byte, error) {
	return json.Marshal(TickFrame{
		Type:      TypeTick,
		Symbol:    t.Symbol,
		Price:     t.Price,
		Timestamp: t.Timestamp,
		Volume:    t.Volume,
	})
}

func encodeAck(typ, symbol string) []byte {
	data, _ := json.Marshal(AckFrame{Type: typ, Symbol: symbol})
	return data
}
