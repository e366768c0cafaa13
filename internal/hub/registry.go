package hub

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/rickgao/quantdash/internal/feed"
	"github.com/rickgao/quantdash/internal/metrics"
	"github.com/rickgao/quantdash/internal/model"
)

// Upstream receives subscription changes for symbols whose subscriber count
// crosses zero. Satisfied by *feed.Adapter.
type Upstream interface {
	Subscribe(ctx context.Context, symbols []string) error
	Unsubscribe(ctx context.Context, symbols []string) error
}

// RegistryStats is a point-in-time view of the registry.
type RegistryStats struct {
	Symbols int
	Clients int
	Pairs   int
}

// Registry is the bidirectional symbol <-> client subscription index.
//
// Mutations hold opMu across the map change and the upstream call, so the
// upstream sees one subscribe per 0->1 transition and one unsubscribe per
// 1->0 transition, in order. Lookups take only mu and never wait on upstream I/O.
type Registry struct {
	upstream Upstream
	metrics  *metrics.Metrics
	logger   *slog.Logger

	opMu sync.Mutex

	mu       sync.RWMutex
	bySymbol map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}
}

// NewRegistry creates an empty registry. upstream may be nil.
func NewRegistry(upstream Upstream, m *metrics.Metrics, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Registry{
		upstream: upstream,
		metrics:  m,
		logger:   logger,
		bySymbol: make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

// Subscribe records that c wants symbol. The first subscriber of a symbol
// triggers exactly one upstream subscribe. It returns false when nothing
// changed: duplicate pair, empty symbol or a client that is not open.
func (r *Registry) Subscribe(ctx context.Context, c *Client, symbol string) bool {
	symbol = model.NormalizeSymbol(symbol)
	if c == nil || symbol == "" {
		return false
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	// Checked under opMu: Disconnect marks the client Closing before RemoveClient runs.
	if c.State() != StateOpen {
		return false
	}

	r.mu.Lock()
	subs, exists := r.bySymbol[symbol]
	if exists {
		if _, dup := subs[c]; dup {
			r.mu.Unlock()
			return false
		}
	} else {
		subs = make(map[*Client]struct{})
		r.bySymbol[symbol] = subs
	}
	subs[c] = struct{}{}

	syms := r.byClient[c]
	if syms == nil {
		syms = make(map[string]struct{})
		r.byClient[c] = syms
	}
	syms[symbol] = struct{}{}
	r.updateGaugesLocked()
	r.mu.Unlock()

	if !exists {
		r.callUpstream(ctx, "subscribe", []string{symbol})
	}
	return true
}

// Unsubscribe removes the (c, symbol) pair. The last subscriber leaving
// triggers exactly one upstream unsubscribe. Returns false if c was not subscribed.
func (r *Registry) Unsubscribe(ctx context.Context, c *Client, symbol string) bool {
	symbol = model.NormalizeSymbol(symbol)
	if c == nil || symbol == "" {
		return false
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	subs := r.bySymbol[symbol]
	if _, ok := subs[c]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(subs, c)
	emptied := len(subs) == 0
	if emptied {
		delete(r.bySymbol, symbol)
	}

	if syms := r.byClient[c]; syms != nil {
		delete(syms, symbol)
		if len(syms) == 0 {
			delete(r.byClient, c)
		}
	}
	r.updateGaugesLocked()
	r.mu.Unlock()

	if emptied {
		r.callUpstream(ctx, "unsubscribe", []string{symbol})
	}
	return true
}

// RemoveClient drops every subscription of c and issues a single batched
// upstream unsubscribe for the symbols left without subscribers. It returns
// those symbols, sorted.
func (r *Registry) RemoveClient(ctx context.Context, c *Client) []string {
	if c == nil {
		return nil
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	syms := r.byClient[c]
	delete(r.byClient, c)

	var emptied []string
	for s := range syms {
		subs := r.bySymbol[s]
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.bySymbol, s)
			emptied = append(emptied, s)
		}
	}
	r.updateGaugesLocked()
	r.mu.Unlock()

	if len(emptied) == 0 {
		return nil
	}
	slices.Sort(emptied)
	r.callUpstream(ctx, "unsubscribe", emptied)
	return emptied
}

// Subscribers returns a snapshot of the open clients subscribed to symbol.
// The slice is safe to iterate while the registry changes.
func (r *Registry) Subscribers(symbol string) []*Client {
	symbol = model.NormalizeSymbol(symbol)

	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.bySymbol[symbol]
	if len(subs) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(subs))
	for c := range subs {
		if c.State() == StateOpen {
			out = append(out, c)
		}
	}
	return out
}

// Symbols returns the sorted set of symbols with at least one subscriber.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.bySymbol))
	for s := range r.bySymbol {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.Sort(out)
	return out
}

// SymbolsOf returns the sorted symbols c is subscribed to.
func (r *Registry) SymbolsOf(c *Client) []string {
	r.mu.RLock()
	syms := r.byClient[c]
	out := make([]string, 0, len(syms))
	for s := range syms {
		out = append(out, s)
	}
	r.mu.RUnlock()

	slices.Sort(out)
	return out
}

// Stats returns current counts.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statsLocked()
}

func (r *Registry) statsLocked() RegistryStats {
	pairs := 0
	for _, syms := range r.byClient {
		pairs += len(syms)
	}
	return RegistryStats{
		Symbols: len(r.bySymbol),
		Clients: len(r.byClient),
		Pairs:   pairs,
	}
}

func (r *Registry) updateGaugesLocked() {
	st := r.statsLocked()
	r.metrics.SubscribedSymbols.Set(float64(st.Symbols))
	r.metrics.Subscriptions.Set(float64(st.Pairs))
}

// callUpstream forwards a subscription change. Failures are logged and
// counted; local state is not rolled back.
func (r *Registry) callUpstream(ctx context.Context, op string, symbols []string) {
	if r.upstream == nil {
		return
	}

	var err error
	if op == "subscribe" {
		err = r.upstream.Subscribe(ctx, symbols)
	} else {
		err = r.upstream.Unsubscribe(ctx, symbols)
	}
	if errors.Is(err, feed.ErrClosed) {
		r.logger.Debug("upstream closed, skipping "+op, "symbols", symbols)
		return
	}
	if err != nil {
		r.metrics.UpstreamErrors.WithLabelValues(op).Inc()
		r.logger.Warn("upstream "+op+" failed",
			"symbols", symbols,
			"error", err,
		)
		return
	}
	r.logger.Debug("upstream "+op, "symbols", symbols)
}
