package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/quantdash/internal/model"
)

// Provider is the capability set the hub needs from a market-data source.
type Provider interface {
	Subscribe(ctx context.Context, symbols []string) error
	Unsubscribe(ctx context.Context, symbols []string) error
	Stream(ctx context.Context) (<-chan model.Tick, error)
	History(ctx context.Context, symbol, resolution string, from, to int64) ([]model.Bar, error)
}

// HistorySource fetches OHLCV bars. Satisfied by *api.Client.
type HistorySource interface {
	GetCandles(ctx context.Context, symbol, resolution string, from, to int64) ([]model.Bar, error)
}

var _ Provider = (*Adapter)(nil)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithStateListener registers fn to be called on every state transition.
func WithStateListener(fn func(ConnState)) AdapterOption {
	return func(a *Adapter) {
		a.onState = fn
	}
}

// Adapter streams Finnhub trades as ticks and tracks the desired symbol set.
type Adapter struct {
	cfg       AdapterConfig
	history   HistorySource
	logger    *slog.Logger
	newClient func(ClientConfig, *slog.Logger) Client
	onState   func(ConnState)

	state   atomic.Int32
	closing chan struct{}

	// mu serializes control frames and guards the session fields below.
	mu        sync.Mutex
	client    Client
	desired   map[string]struct{}
	streaming bool
	closed    bool
}

// NewAdapter creates a Finnhub adapter. history may be nil, in which case
// History returns ErrNoHistory.
func NewAdapter(cfg AdapterConfig, history HistorySource, logger *slog.Logger, opts ...AdapterOption) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TickBufferSize <= 0 {
		cfg.TickBufferSize = DefaultAdapterConfig().TickBufferSize
	}

	a := &Adapter{
		cfg:       cfg,
		history:   history,
		logger:    logger,
		newClient: NewClient,
		closing:   make(chan struct{}),
		desired:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current upstream session state.
func (a *Adapter) State() ConnState {
	return ConnState(a.state.Load())
}

func (a *Adapter) setState(s ConnState) {
	if ConnState(a.state.Swap(int32(s))) == s {
		return
	}
	if a.onState != nil {
		a.onState(s)
	}
}

// Desired returns the sorted set of symbols replayed on every new session.
func (a *Adapter) Desired() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.desiredLocked()
}

func (a *Adapter) desiredLocked() []string {
	out := make([]string, 0, len(a.desired))
	for s := range a.desired {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Subscribe adds symbols to the desired set and, when a session is live,
// sends one subscribe frame per symbol. Symbols stay desired even when the
// send fails; the next session replays them.
func (a *Adapter) Subscribe(ctx context.Context, symbols []string) error {
	return a.control(ctx, "subscribe", symbols)
}

// Unsubscribe removes symbols from the desired set and, when a session is
// live, sends one unsubscribe frame per symbol.
func (a *Adapter) Unsubscribe(ctx context.Context, symbols []string) error {
	return a.control(ctx, "unsubscribe", symbols)
}

func (a *Adapter) control(ctx context.Context, action string, symbols []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	symbols = model.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	var errs []error
	for _, s := range symbols {
		if action == "subscribe" {
			a.desired[s] = struct{}{}
		} else {
			delete(a.desired, s)
		}
		if a.client == nil {
			continue
		}
		if err := a.sendLocked(action, s); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", action, s, err))
		}
	}

	a.logger.Debug("upstream "+action,
		"symbols", symbols,
		"live", a.client != nil,
	)
	return errors.Join(errs...)
}

func (a *Adapter) sendLocked(action, symbol string) error {
	data, err := encodeControl(action, symbol)
	if err != nil {
		return err
	}
	return a.client.Send(data)
}

// Stream opens an upstream session and returns a channel of ticks. The
// channel is closed when the session ends; call Stream again to reconnect.
// Only one stream may be active at a time.
func (a *Adapter) Stream(ctx context.Context) (<-chan model.Tick, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrClosed
	}
	if a.streaming {
		a.mu.Unlock()
		return nil, ErrStreamActive
	}
	a.streaming = true
	a.mu.Unlock()

	client, err := a.dial(ctx)
	if err != nil {
		a.mu.Lock()
		a.streaming = false
		a.mu.Unlock()
		a.setState(StateDisconnected)
		return nil, err
	}

	out := make(chan model.Tick, a.cfg.TickBufferSize)
	go a.pump(ctx, client, out)
	return out, nil
}

// dial connects with backoff until a session is established, ctx ends or the
// adapter is closed. The desired set is replayed before the session is published.
func (a *Adapter) dial(ctx context.Context) (Client, error) {
	streamURL, err := a.streamURL()
	if err != nil {
		return nil, err
	}
	clientCfg := a.cfg.Client
	clientCfg.URL = streamURL

	for attempt := 1; ; attempt++ {
		a.setState(StateConnecting)

		client := a.newClient(clientCfg, a.logger)
		err := client.Connect(ctx)
		if err == nil {
			a.mu.Lock()
			if a.closed {
				a.mu.Unlock()
				client.Close()
				return nil, ErrClosed
			}
			a.client = client
			a.setState(StateConnected)

			replay := a.desiredLocked()
			for _, s := range replay {
				if err := a.sendLocked("subscribe", s); err != nil {
					a.logger.Warn("replay subscribe failed", "symbol", s, "error", err)
				}
			}
			a.setState(StateStreaming)
			a.mu.Unlock()

			a.logger.Info("upstream connected",
				"attempt", attempt,
				"replayed", len(replay),
			)
			return client, nil
		}

		client.Close()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		wait := a.cfg.Backoff.Next(attempt)
		a.setState(StateReconnectBackoff)
		a.logger.Warn("upstream connect failed",
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-a.closing:
			return nil, ErrClosed
		case <-time.After(wait):
		}
	}
}

func (a *Adapter) streamURL() (string, error) {
	u, err := url.Parse(a.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	if a.cfg.Token != "" {
		q := u.Query()
		q.Set("token", a.cfg.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// pump forwards decoded ticks until the session fails, ctx ends or the adapter closes.
func (a *Adapter) pump(ctx context.Context, client Client, out chan<- model.Tick) {
	defer func() {
		client.Close()
		a.mu.Lock()
		if a.client == client {
			a.client = nil
		}
		a.streaming = false
		a.mu.Unlock()
		a.setState(StateDisconnected)
		close(out)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closing:
			return
		case err := <-client.Errors():
			a.logger.Warn("upstream session ended", "error", err)
			return
		case msg := <-client.Messages():
			if !a.handleFrame(ctx, msg.Data, out) {
				return
			}
		}
	}
}

// handleFrame decodes one upstream frame and forwards its ticks. It returns
// false when delivery was abandoned because the stream is shutting down.
func (a *Adapter) handleFrame(ctx context.Context, data []byte, out chan<- model.Tick) bool {
	frame, err := decodeFrame(data)
	if err != nil {
		a.logger.Warn("malformed upstream frame", "error", err, "size", len(data))
		return true
	}

	var ticks []model.Tick
	switch frame.Type {
	case frameTrade:
		ticks = frame.ticks()
	case framePing:
		return true
	case frameError:
		a.logger.Warn("upstream error message", "msg", frame.Msg)
		ticks = []model.Tick{noticeTick(frame.Msg)}
	default:
		a.logger.Debug("ignoring upstream frame", "type", frame.Type)
		return true
	}

	for _, t := range ticks {
		select {
		case out <- t:
		case <-ctx.Done():
			return false
		case <-a.closing:
			return false
		}
	}
	return true
}

// History fetches historical bars through the configured HistorySource.
func (a *Adapter) History(ctx context.Context, symbol, resolution string, from, to int64) ([]model.Bar, error) {
	if a.history == nil {
		return nil, ErrNoHistory
	}
	return a.history.GetCandles(ctx, symbol, resolution, from, to)
}

// Close ends the live session and makes further Stream calls fail with ErrClosed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	client := a.client
	a.mu.Unlock()

	close(a.closing)

	if client != nil {
		return client.Close()
	}
	return nil
}
