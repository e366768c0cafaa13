package feed

import (
	"encoding/json"
	"fmt"

	"github.com/rickgao/quantdash/internal/model"
)

// Upstream frame types.
const (
	frameTrade = "trade"
	framePing  = "ping"
	frameError = "error"
)

type controlFrame struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type upstreamFrame struct {
	Type string      `json:"type"`
	Data []tradeWire `json:"data"`
	Msg  string      `json:"msg"`
}

type tradeWire struct {
	Symbol     string   `json:"s"`
	Price      float64  `json:"p"`
	Timestamp  int64    `json:"t"`
	Volume     float64  `json:"v"`
	Conditions []string `json:"c,omitempty"`
}

type noticeFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func encodeControl(action, symbol string) ([]byte, error) {
	return json.Marshal(controlFrame{Type: action, Symbol: symbol})
}

func decodeFrame(data []byte) (upstreamFrame, error) {
	var f upstreamFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decode upstream frame: %w", err)
	}
	return f, nil
}

// ticks converts the trades of a trade frame, skipping entries without a symbol.
func (f upstreamFrame) ticks() []model.Tick {
	out := make([]model.Tick, 0, len(f.Data))
	for _, tr := range f.Data {
		sym := model.NormalizeSymbol(tr.Symbol)
		if sym == "" {
			continue
		}
		out = append(out, model.Tick{
			Symbol:    sym,
			Price:     tr.Price,
			Timestamp: tr.Timestamp,
			Volume:    tr.Volume,
		})
	}
	return out
}

// noticeTick wraps an upstream error message as an out-of-band tick for all clients.
func noticeTick(msg string) model.Tick {
	raw, _ := json.Marshal(noticeFrame{Type: "notice", Message: msg})
	return model.Tick{Raw: raw}
}
