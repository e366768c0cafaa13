package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/quantdash/internal/model"
)

// ErrUnknownSymbol is returned when the quote endpoint answers with an all-zero quote.
var ErrUnknownSymbol = errors.New("unknown symbol")

// GetCandles fetches OHLCV bars for symbol between from and to (unix seconds).
// An empty range upstream is not an error: the result is an empty slice.
func (c *Client) GetCandles(ctx context.Context, symbol, resolution string, from, to int64) ([]model.Bar, error) {
	symbol = model.NormalizeSymbol(symbol)

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("resolution", resolution)
	query.Set("from", strconv.FormatInt(from, 10))
	query.Set("to", strconv.FormatInt(to, 10))

	var resp CandlesResponse
	if err := c.get(ctx, "/stock/candle", query, &resp); err != nil {
		return nil, fmt.Errorf("get candles %s: %w", symbol, err)
	}

	bars, err := resp.ToBars(symbol, resolution)
	if err != nil {
		return nil, fmt.Errorf("get candles %s: %w", symbol, err)
	}
	return bars, nil
}

// GetQuote fetches the current quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	symbol = model.NormalizeSymbol(symbol)

	query := url.Values{}
	query.Set("symbol", symbol)

	var resp QuoteResponse
	if err := c.get(ctx, "/quote", query, &resp); err != nil {
		return model.Quote{}, fmt.Errorf("get quote %s: %w", symbol, err)
	}

	// Finnhub answers unknown symbols with 200 and zeros.
	if resp.Current == 0 && resp.Timestamp == 0 {
		return model.Quote{}, fmt.Errorf("get quote %s: %w", symbol, ErrUnknownSymbol)
	}

	return resp.ToModel(symbol), nil
}
