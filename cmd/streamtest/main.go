// streamtest connects to a running hub, subscribes to symbols and prints ticks to console.
// Usage: go run ./cmd/streamtest --url ws://localhost:8000/ws --symbols AAPL,MSFT,BINANCE:BTCUSDT
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/quantdash/internal/hub"
	"github.com/rickgao/quantdash/internal/model"
)

func main() {
	url := flag.String("url", "ws://localhost:8000/ws", "hub WebSocket URL")
	symbols := flag.String("symbols", "AAPL,MSFT", "comma-separated symbols")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, *url, nil)
	cancel()
	if err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	wanted := model.NormalizeSymbols(strings.Split(*symbols, ","))
	for _, s := range wanted {
		if err := conn.WriteJSON(hub.ClientMessage{Type: hub.TypeSubscribe, Symbol: s}); err != nil {
			logger.Error("failed to subscribe", "symbol", s, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("streaming started - press Ctrl+C to stop", "symbols", wanted)

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	var ticks int
	start := time.Now()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("read failed", "error", err)
			}
			break
		}
		if printFrame(data, *verbose) {
			ticks++
		}
	}

	logger.Info("shutdown complete", "ticks", ticks, "duration", time.Since(start).Round(time.Second))
}

// printFrame prints one hub frame and reports whether it was a tick.
func printFrame(data []byte, verbose bool) bool {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		fmt.Printf("[RAW] %s\n", data)
		return false
	}

	if verbose {
		fmt.Printf("[%s] %s\n", strings.ToUpper(head.Type), data)
		return head.Type == hub.TypeTick
	}

	switch head.Type {
	case hub.TypeTick:
		var f hub.TickFrame
		json.Unmarshal(data, &f)
		fmt.Printf("[TICK] %s price=%.4f vol=%g ts=%s\n",
			f.Symbol, f.Price, f.Volume, time.UnixMilli(f.Timestamp).Format(time.TimeOnly))
		return true
	case hub.TypeSubscribed, hub.TypeUnsubscribed:
		var f hub.AckFrame
		json.Unmarshal(data, &f)
		fmt.Printf("[%s] %s\n", strings.ToUpper(f.Type), f.Symbol)
	default:
		fmt.Printf("[%s] %s\n", strings.ToUpper(head.Type), data)
	}
	return false
}
