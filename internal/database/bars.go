package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/quantdash/internal/model"
)

// DB is the subset of *pgxpool.Pool the bar store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const barsSchema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol     TEXT             NOT NULL,
	resolution TEXT             NOT NULL,
	ts         BIGINT           NOT NULL,
	open       DOUBLE PRECISION NOT NULL,
	high       DOUBLE PRECISION NOT NULL,
	low        DOUBLE PRECISION NOT NULL,
	close      DOUBLE PRECISION NOT NULL,
	volume     DOUBLE PRECISION NOT NULL,
	fetched_at BIGINT           NOT NULL,
	PRIMARY KEY (symbol, resolution, ts)
)`

const upsertBar = `
INSERT INTO bars (symbol, resolution, ts, open, high, low, close, volume, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (symbol, resolution, ts) DO UPDATE SET
	open = EXCLUDED.open,
	high = EXCLUDED.high,
	low = EXCLUDED.low,
	close = EXCLUDED.close,
	volume = EXCLUDED.volume,
	fetched_at = EXCLUDED.fetched_at`

const selectBars = `
SELECT ts, open, high, low, close, volume
FROM bars
WHERE symbol = $1 AND resolution = $2 AND ts >= $3 AND ts <= $4
ORDER BY ts`

// BarStore archives OHLCV bars.
type BarStore struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

// NewBarStore creates a store backed by db.
func NewBarStore(db DB, logger *slog.Logger) *BarStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BarStore{db: db, logger: logger, now: time.Now}
}

// EnsureSchema creates the bars table if it does not exist.
func (s *BarStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, barsSchema); err != nil {
		return fmt.Errorf("create bars table: %w", err)
	}
	return nil
}

// SaveBars upserts bars in a single batch.
func (s *BarStore) SaveBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	fetchedAt := s.now().Unix()
	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(upsertBar, barArgs(b, fetchedAt)...)
	}

	start := time.Now()
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert bars: %w", err)
		}
	}

	s.logger.Debug("saved bars",
		"symbol", bars[0].Symbol,
		"resolution", bars[0].Resolution,
		"count", len(bars),
		"duration", time.Since(start),
	)
	return nil
}

// LoadBars returns stored bars for symbol in [from, to] (unix seconds), oldest first.
func (s *BarStore) LoadBars(ctx context.Context, symbol, resolution string, from, to int64) ([]model.Bar, error) {
	rows, err := s.db.Query(ctx, selectBars, symbol, resolution, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	bars := make([]model.Bar, 0)
	for rows.Next() {
		b := model.Bar{Symbol: symbol, Resolution: resolution}
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read bars: %w", err)
	}
	return bars, nil
}

func barArgs(b model.Bar, fetchedAt int64) []any {
	return []any{b.Symbol, b.Resolution, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, fetchedAt}
}
