package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/quantdash/internal/metrics"
	"github.com/rickgao/quantdash/internal/model"
)

// fakeAudience is an Audience backed by a Registry.
type fakeAudience struct {
	reg *Registry

	mu           sync.Mutex
	all          []*Client
	disconnected map[*Client]error
}

func newFakeAudience(reg *Registry, clients ...*Client) *fakeAudience {
	return &fakeAudience{reg: reg, all: clients, disconnected: make(map[*Client]error)}
}

func (a *fakeAudience) Subscribers(symbol string) []*Client { return a.reg.Subscribers(symbol) }

func (a *fakeAudience) Clients() []*Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Client
	for _, c := range a.all {
		if c.State() == StateOpen {
			out = append(out, c)
		}
	}
	return out
}

func (a *fakeAudience) Disconnect(c *Client, reason error) {
	if !c.beginClose() {
		return
	}
	a.reg.RemoveClient(context.Background(), c)
	a.mu.Lock()
	a.disconnected[c] = reason
	a.mu.Unlock()
}

func (a *fakeAudience) reason(c *Client) (error, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	err, ok := a.disconnected[c]
	return err, ok
}

// fakeSource hands out one pre-built channel per Stream call.
type fakeSource struct {
	mu       sync.Mutex
	sessions []chan model.Tick
	opened   int
	err      error
}

func (s *fakeSource) Stream(ctx context.Context) (<-chan model.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.sessions) == 0 {
		return nil, errors.New("no session")
	}
	ch := s.sessions[0]
	s.sessions = s.sessions[1:]
	return ch, nil
}

func (s *fakeSource) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func drainFrames(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case f := <-c.send:
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestDeliver_OnlySubscribers(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	ctx := context.Background()
	a, b, c := openClient(t, 8), openClient(t, 8), openClient(t, 8)
	reg.Subscribe(ctx, a, "AAPL")
	reg.Subscribe(ctx, b, "AAPL")
	reg.Subscribe(ctx, c, "MSFT")

	m := metrics.Nop()
	bc := NewBroadcaster(&fakeSource{}, newFakeAudience(reg, a, b, c), BroadcasterConfig{}, m, nil)

	n := bc.Deliver(model.Tick{Symbol: "aapl", Price: 187.5, Timestamp: 1700000000000, Volume: 10})
	assert.Equal(t, 2, n)

	for _, cl := range []*Client{a, b} {
		frames := drainFrames(cl)
		require.Len(t, frames, 1)
		var f TickFrame
		require.NoError(t, json.Unmarshal(frames[0], &f))
		assert.Equal(t, TickFrame{Type: TypeTick, Symbol: "AAPL", Price: 187.5, Timestamp: 1700000000000, Volume: 10}, f)
	}
	assert.Empty(t, drainFrames(c))

	assert.Equal(t, 0, bc.Deliver(model.Tick{Symbol: "GOOG", Price: 1}))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicksReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksDelivered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesSent))
}

func TestDeliver_SlowClientIsolated(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	ctx := context.Background()
	slow, fast := openClient(t, 1), openClient(t, 8)
	reg.Subscribe(ctx, slow, "TSLA")
	reg.Subscribe(ctx, slow, "AMD")
	reg.Subscribe(ctx, fast, "TSLA")

	aud := newFakeAudience(reg, slow, fast)
	m := metrics.Nop()
	bc := NewBroadcaster(&fakeSource{}, aud, BroadcasterConfig{}, m, nil)

	assert.Equal(t, 2, bc.Deliver(model.Tick{Symbol: "TSLA", Price: 1}))
	assert.Equal(t, 1, bc.Deliver(model.Tick{Symbol: "TSLA", Price: 2}))

	reason, ok := aud.reason(slow)
	require.True(t, ok, "slow client should be disconnected")
	assert.ErrorIs(t, reason, ErrSlowConsumer)
	assert.Len(t, drainFrames(fast), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendFailures))

	// Every subscription of the dropped client is gone, not just TSLA.
	assert.Empty(t, reg.SymbolsOf(slow))
	assert.Equal(t, []string{"TSLA"}, reg.Symbols())
	assert.Empty(t, reg.Subscribers("AMD"))

	// Removed from the registry, so later ticks skip it.
	assert.Equal(t, 1, bc.Deliver(model.Tick{Symbol: "TSLA", Price: 3}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendFailures))
}

func TestDeliver_BroadcastTick(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	a, b := openClient(t, 4), openClient(t, 4)
	bc := NewBroadcaster(&fakeSource{}, newFakeAudience(reg, a, b), BroadcasterConfig{}, nil, nil)

	raw := json.RawMessage(`{"type":"notice","message":"maintenance"}`)
	assert.Equal(t, 2, bc.Deliver(model.Tick{Raw: raw}))

	for _, c := range []*Client{a, b} {
		frames := drainFrames(c)
		require.Len(t, frames, 1)
		assert.JSONEq(t, string(raw), string(frames[0]))
	}
}

func TestRun_DeliversInOrderAndRestarts(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	c := openClient(t, 64)
	reg.Subscribe(context.Background(), c, "AAPL")

	first := make(chan model.Tick, 3)
	for i := 1; i <= 3; i++ {
		first <- model.Tick{Symbol: "AAPL", Price: float64(i)}
	}
	close(first)
	second := make(chan model.Tick, 1)
	second <- model.Tick{Symbol: "AAPL", Price: 4}

	src := &fakeSource{sessions: []chan model.Tick{first, second}}
	m := metrics.Nop()
	bc := NewBroadcaster(src, newFakeAudience(reg, c), BroadcasterConfig{
		RetryBaseDelay: 5 * time.Millisecond,
		RetryMaxDelay:  10 * time.Millisecond,
	}, m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bc.Run(ctx) }()

	require.Eventually(t, func() bool { return c.Pending() == 4 }, 2*time.Second, 5*time.Millisecond)

	var prices []float64
	for _, f := range drainFrames(c) {
		var tf TickFrame
		require.NoError(t, json.Unmarshal(f, &tf))
		prices = append(prices, tf.Price)
	}
	assert.Equal(t, []float64{1, 2, 3, 4}, prices)
	assert.Equal(t, 2, src.Opened())
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.StreamRestarts), 1.0)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, BroadcasterIdle, bc.State())
}

func TestRun_RetriesStreamErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("dial failed")}
	bc := NewBroadcaster(src, newFakeAudience(NewRegistry(nil, nil, nil)), BroadcasterConfig{
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bc.Run(ctx)

	require.Eventually(t, func() bool { return src.Opened() >= 3 }, 2*time.Second, time.Millisecond)
}

func TestBroadcasterState_String(t *testing.T) {
	assert.Equal(t, "idle", BroadcasterIdle.String())
	assert.Equal(t, "draining", BroadcasterDraining.String())
	assert.Equal(t, "delivering", BroadcasterDelivering.String())
	assert.Equal(t, "backoff", BroadcasterBackoff.String())
	assert.Equal(t, "unknown", BroadcasterState(42).String())
}
