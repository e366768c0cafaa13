package feed

import (
	"encoding/json"
	"testing"
)

func TestEncodeControl(t *testing.T) {
	data, err := encodeControl("subscribe", "AAPL")
	if err != nil {
		t.Fatalf("encodeControl failed: %v", err)
	}
	if string(data) != `{"type":"subscribe","symbol":"AAPL"}` {
		t.Errorf("encodeControl = %s, want subscribe frame", data)
	}
}

func TestDecodeFrame_Trade(t *testing.T) {
	data := `{"type":"trade","data":[
		{"s":"AAPL","p":189.51,"t":1700000000123,"v":100,"c":["1","12"]},
		{"s":"binance:btcusdt","p":37000.5,"t":1700000000456,"v":0.01},
		{"s":"","p":1,"t":1,"v":1}
	]}`

	frame, err := decodeFrame([]byte(data))
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	if frame.Type != frameTrade {
		t.Fatalf("Type = %q, want trade", frame.Type)
	}

	ticks := frame.ticks()
	if len(ticks) != 2 {
		t.Fatalf("len(ticks) = %d, want 2 (empty symbol skipped)", len(ticks))
	}
	if ticks[0].Symbol != "AAPL" || ticks[0].Price != 189.51 || ticks[0].Timestamp != 1700000000123 || ticks[0].Volume != 100 {
		t.Errorf("ticks[0] = %+v", ticks[0])
	}
	if ticks[1].Symbol != "BINANCE:BTCUSDT" {
		t.Errorf("ticks[1].Symbol = %q, want normalized BINANCE:BTCUSDT", ticks[1].Symbol)
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	if _, err := decodeFrame([]byte(`{"type":`)); err == nil {
		t.Error("expected error for truncated frame")
	}
}

func TestNoticeTick(t *testing.T) {
	tick := noticeTick("Subscribing to too many symbols")
	if !tick.IsBroadcast() {
		t.Error("notice tick should be broadcast")
	}

	var n noticeFrame
	if err := json.Unmarshal(tick.Raw, &n); err != nil {
		t.Fatalf("unmarshal notice: %v", err)
	}
	if n.Type != "notice" || n.Message != "Subscribing to too many symbols" {
		t.Errorf("notice = %+v", n)
	}
}
