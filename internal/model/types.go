package model

import (
	"encoding/json"
	"strings"
)

// Tick is a single price observation for one symbol.
//
// A Tick with an empty Symbol is out-of-band: it is delivered to every
// connected client, using Raw as the payload when set.
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp int64   // ms since epoch
	Volume    float64 // 0 when the source does not report it
	Raw       json.RawMessage
}

// IsBroadcast reports whether the tick targets all clients rather than a symbol's subscribers.
func (t Tick) IsBroadcast() bool {
	return t.Symbol == ""
}

// Bar is one OHLCV candle returned by a historical query.
type Bar struct {
	Symbol     string
	Resolution string // 1, 5, 15, 30, 60, D, W, M
	Timestamp  int64  // Bar open time (s since epoch)
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// Quote is a point-in-time summary for one symbol.
type Quote struct {
	Symbol        string
	Current       float64
	Change        float64
	PercentChange float64
	High          float64
	Low           float64
	Open          float64
	PreviousClose float64
	Timestamp     int64 // s since epoch
}

// Tick converts the quote into a tick carrying the current price.
func (q Quote) Tick() Tick {
	return Tick{
		Symbol:    q.Symbol,
		Price:     q.Current,
		Timestamp: q.Timestamp * 1000,
	}
}

// NormalizeSymbol trims whitespace and upper-cases s. An empty result means
// the symbol is invalid.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeSymbols normalizes and de-duplicates symbols, dropping empty entries
// and preserving first-seen order.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		n := NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
