package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rickgao/quantdash/internal/metrics"
	"github.com/rickgao/quantdash/internal/model"
)

// TickSource produces ticks. Each Stream call opens a session whose channel
// closes when the session ends. Satisfied by *feed.Adapter.
type TickSource interface {
	Stream(ctx context.Context) (<-chan model.Tick, error)
}

// Audience resolves tick recipients and drops clients that cannot keep up.
// Satisfied by *Hub.
type Audience interface {
	Subscribers(symbol string) []*Client
	Clients() []*Client
	Disconnect(c *Client, reason error)
}

// BroadcasterState is the fan-out loop state.
type BroadcasterState int32

const (
	BroadcasterIdle BroadcasterState = iota
	BroadcasterDraining
	BroadcasterDelivering
	BroadcasterBackoff
)

func (s BroadcasterState) String() string {
	switch s {
	case BroadcasterIdle:
		return "idle"
	case BroadcasterDraining:
		return "draining"
	case BroadcasterDelivering:
		return "delivering"
	case BroadcasterBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// BroadcasterConfig configures stream restart delays.
type BroadcasterConfig struct {
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DefaultBroadcasterConfig returns sensible defaults.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		RetryBaseDelay: time.Second,
		RetryMaxDelay:  30 * time.Second,
	}
}

// Broadcaster drains a TickSource and fans each tick out to its subscribers.
type Broadcaster struct {
	source   TickSource
	audience Audience
	cfg      BroadcasterConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger

	state atomic.Int32
}

// NewBroadcaster creates a broadcaster.
func NewBroadcaster(source TickSource, audience Audience, cfg BroadcasterConfig, m *metrics.Metrics, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop()
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultBroadcasterConfig().RetryBaseDelay
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	return &Broadcaster{
		source:   source,
		audience: audience,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// State returns the current loop state.
func (b *Broadcaster) State() BroadcasterState {
	return BroadcasterState(b.state.Load())
}

func (b *Broadcaster) setState(s BroadcasterState) {
	b.state.Store(int32(s))
}

// Run drains the source until ctx is cancelled, reopening the stream with
// exponential backoff whenever it fails or ends. It returns nil on cancellation.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer b.setState(BroadcasterIdle)

	b.logger.Info("broadcaster started")
	delay := b.cfg.RetryBaseDelay

	for {
		if ctx.Err() != nil {
			b.logger.Info("broadcaster stopped")
			return nil
		}

		b.setState(BroadcasterDraining)
		delivered, err := b.drain(ctx)
		if ctx.Err() != nil {
			b.logger.Info("broadcaster stopped")
			return nil
		}

		if delivered > 0 {
			delay = b.cfg.RetryBaseDelay
		}
		b.metrics.StreamRestarts.Inc()
		b.logger.Warn("tick stream interrupted",
			"error", err,
			"ticks", delivered,
			"retry_in", delay,
		)

		b.setState(BroadcasterBackoff)
		select {
		case <-ctx.Done():
			b.logger.Info("broadcaster stopped")
			return nil
		case <-time.After(delay):
		}

		delay = min(delay*2, b.cfg.RetryMaxDelay)
	}
}

// drain consumes one stream session and returns how many ticks it carried.
func (b *Broadcaster) drain(ctx context.Context) (int, error) {
	ticks, err := b.source.Stream(ctx)
	if err != nil {
		return 0, fmt.Errorf("open stream: %w", err)
	}

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case t, ok := <-ticks:
			if !ok {
				return n, ErrStreamEnded
			}
			n++
			b.setState(BroadcasterDelivering)
			b.Deliver(t)
			b.setState(BroadcasterDraining)
		}
	}
}

// Deliver fans one tick out and returns the number of clients it was queued to.
// A tick without a symbol goes to every open client. The payload is encoded
// once and shared by all recipients. A client whose queue rejects the frame
// is disconnected; delivery to the rest continues.
func (b *Broadcaster) Deliver(t model.Tick) int {
	b.metrics.TicksReceived.Inc()

	t.Symbol = model.NormalizeSymbol(t.Symbol)

	var targets []*Client
	if t.Symbol == "" {
		targets = b.audience.Clients()
	} else {
		targets = b.audience.Subscribers(t.Symbol)
	}
	if len(targets) == 0 {
		return 0
	}

	payload := []byte(t.Raw)
	if t.Symbol != "" || payload == nil {
		var err error
		payload, err = EncodeTick(t)
		if err != nil {
			b.logger.Warn("encode tick failed", "symbol", t.Symbol, "error", err)
			return 0
		}
	}

	sent := 0
	for _, c := range targets {
		if c.Enqueue(payload) {
			sent++
			continue
		}
		if c.State() != StateOpen {
			// Already being torn down.
			continue
		}
		b.metrics.SendFailures.Inc()
		b.logger.Warn("dropping slow client",
			"client_id", c.ID,
			"symbol", t.Symbol,
			"pending", c.Pending(),
		)
		b.audience.Disconnect(c, ErrSlowConsumer)
	}

	if sent > 0 {
		b.metrics.TicksDelivered.Inc()
		b.metrics.FramesSent.Add(float64(sent))
	}
	return sent
}
