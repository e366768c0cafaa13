package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/quantdash/internal/api"
	"github.com/rickgao/quantdash/internal/metrics"
	"github.com/rickgao/quantdash/internal/model"
)

var (
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrInvalidRange      = errors.New("invalid time range")
	ErrUnavailable       = errors.New("history unavailable")
)

// DefaultLookback is the range used when a query omits from.
const DefaultLookback = 30 * 24 * time.Hour

// Source fetches bars from upstream. Satisfied by *feed.Adapter.
type Source interface {
	History(ctx context.Context, symbol, resolution string, from, to int64) ([]model.Bar, error)
}

// Store archives bars. Satisfied by *database.BarStore.
type Store interface {
	SaveBars(ctx context.Context, bars []model.Bar) error
	LoadBars(ctx context.Context, symbol, resolution string, from, to int64) ([]model.Bar, error)
}

// Query identifies a bar range.
type Query struct {
	Symbol     string
	Resolution string
	From       int64 // unix seconds, inclusive
	To         int64 // unix seconds, inclusive
}

func (q Query) key() string {
	return q.Symbol + "|" + q.Resolution + "|" + strconv.FormatInt(q.From, 10) + "|" + strconv.FormatInt(q.To, 10)
}

// Validate normalizes the symbol and checks the resolution and range.
func (q *Query) Validate() error {
	q.Symbol = model.NormalizeSymbol(q.Symbol)
	if q.Symbol == "" {
		return ErrInvalidSymbol
	}
	if !api.ValidResolution(q.Resolution) {
		return fmt.Errorf("%w: %q", ErrInvalidResolution, q.Resolution)
	}
	if q.From < 0 || q.To <= 0 || q.From > q.To {
		return fmt.Errorf("%w: from=%d to=%d", ErrInvalidRange, q.From, q.To)
	}
	return nil
}

// Result is the answer to a Query.
type Result struct {
	Query
	Bars   []model.Bar
	Source string // "upstream" or "archive"
}

// Service answers bar queries.
type Service struct {
	source  Source
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	group   singleflight.Group
	timeout time.Duration
}

// NewService creates a service. store may be nil.
func NewService(source Source, store Store, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop()
	}
	return &Service{
		source:  source,
		store:   store,
		metrics: m,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Bars returns bars for q. Upstream "no data" is an empty, successful result.
func (s *Service) Bars(ctx context.Context, q Query) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{Query: q}, err
	}

	v, err, shared := s.group.Do(q.key(), func() (any, error) {
		// Detached so one caller cancelling does not fail the others.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.fetch(fctx, q)
	})
	if shared {
		s.logger.Debug("history query shared", "symbol", q.Symbol, "resolution", q.Resolution)
	}
	if err != nil {
		return Result{Query: q}, err
	}
	return v.(Result), nil
}

func (s *Service) fetch(ctx context.Context, q Query) (Result, error) {
	bars, err := s.source.History(ctx, q.Symbol, q.Resolution, q.From, q.To)
	if err == nil {
		s.metrics.HistoryRequests.WithLabelValues("upstream").Inc()
		s.archive(ctx, bars)
		return Result{Query: q, Bars: bars, Source: "upstream"}, nil
	}

	s.logger.Warn("upstream history failed",
		"symbol", q.Symbol,
		"resolution", q.Resolution,
		"error", err,
	)

	if s.store != nil {
		stored, serr := s.store.LoadBars(ctx, q.Symbol, q.Resolution, q.From, q.To)
		if serr != nil {
			s.logger.Warn("archive lookup failed", "symbol", q.Symbol, "error", serr)
		} else if len(stored) > 0 {
			s.metrics.HistoryRequests.WithLabelValues("archive").Inc()
			return Result{Query: q, Bars: stored, Source: "archive"}, nil
		}
	}

	s.metrics.HistoryRequests.WithLabelValues("error").Inc()
	return Result{Query: q}, fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func (s *Service) archive(ctx context.Context, bars []model.Bar) {
	if s.store == nil || len(bars) == 0 {
		return
	}
	if err := s.store.SaveBars(ctx, bars); err != nil {
		s.logger.Warn("archive bars failed",
			"symbol", bars[0].Symbol,
			"count", len(bars),
			"error", err,
		)
	}
}
