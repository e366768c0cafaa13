package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/quantdash/internal/metrics"
	"github.com/rickgao/quantdash/internal/model"
)

// QuoteFetcher fetches a live quote. Satisfied by *api.Client.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
}

// SymbolSource provides the symbols to poll. Satisfied by *hub.Registry.
type SymbolSource interface {
	Symbols() []string
}

// TickHandler receives ticks built from fresh quotes.
type TickHandler interface {
	HandleTick(t model.Tick)
}

// TickHandlerFunc is a function adapter for TickHandler.
type TickHandlerFunc func(model.Tick)

func (f TickHandlerFunc) HandleTick(t model.Tick) {
	f(t)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 15s)
	Concurrency int           // Max concurrent requests (default: 5)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Second,
		Concurrency: 5,
		Timeout:     10 * time.Second,
	}
}

// Poller periodically turns REST quotes into ticks.
type Poller struct {
	cfg     Config
	quotes  QuoteFetcher
	symbols SymbolSource
	handler TickHandler
	active  func() bool
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	lastSeen map[string]int64 // symbol -> last delivered quote timestamp

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. active reports whether a poll cycle should run;
// nil means always.
func New(cfg Config, quotes QuoteFetcher, symbols SymbolSource, handler TickHandler, active func() bool, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if active == nil {
		active = func() bool { return true }
	}
	return &Poller{
		cfg:      cfg,
		quotes:   quotes,
		symbols:  symbols,
		handler:  handler,
		active:   active,
		metrics:  m,
		logger:   logger,
		lastSeen: make(map[string]int64),
		ctx:      context.Background(),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("quote poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("quote poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if p.active() {
				p.pollAll()
			}
		}
	}
}

// pollAll fetches quotes for all subscribed symbols concurrently and returns
// how many ticks were delivered.
func (p *Poller) pollAll() int {
	start := time.Now()

	symbols := p.symbols.Symbols()
	p.prune(symbols)
	if len(symbols) == 0 {
		p.logger.Debug("no subscribed symbols to poll")
		return 0
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var delivered, failed atomic.Int64

	for _, symbol := range symbols {
		symbol := symbol
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			fresh, err := p.pollSymbol(symbol)
			if err != nil {
				p.logger.Warn("failed to poll quote",
					"symbol", symbol,
					"err", err,
				)
				failed.Add(1)
				return
			}
			if fresh {
				delivered.Add(1)
			}
		}()
	}

	wg.Wait()

	p.logger.Debug("poll cycle complete",
		"symbols", len(symbols),
		"delivered", delivered.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
	return int(delivered.Load())
}

// pollSymbol fetches one quote and delivers it if its timestamp advanced.
func (p *Poller) pollSymbol(symbol string) (bool, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	q, err := p.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return false, err
	}
	p.metrics.QuotesPolled.Inc()

	if !p.advance(symbol, q.Timestamp) {
		return false, nil
	}
	if p.handler != nil {
		p.handler.HandleTick(q.Tick())
	}
	return true, nil
}

func (p *Poller) advance(symbol string, ts int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ts <= p.lastSeen[symbol] {
		return false
	}
	p.lastSeen[symbol] = ts
	return true
}

// prune forgets symbols nobody is subscribed to anymore.
func (p *Poller) prune(current []string) {
	keep := make(map[string]struct{}, len(current))
	for _, s := range current {
		keep[s] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for s := range p.lastSeen {
		if _, ok := keep[s]; !ok {
			delete(p.lastSeen, s)
		}
	}
}
