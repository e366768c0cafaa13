package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingExchange is returned by GetSymbols when no exchange code is given.
var ErrMissingExchange = errors.New("exchange is required")

// GetSymbols lists the instruments traded on exchange ("US", "TO", "L", ...).
func (c *Client) GetSymbols(ctx context.Context, exchange string) ([]SymbolInfo, error) {
	exchange = strings.ToUpper(strings.TrimSpace(exchange))
	if exchange == "" {
		return nil, ErrMissingExchange
	}

	query := url.Values{}
	query.Set("exchange", exchange)

	var resp []SymbolInfo
	if err := c.get(ctx, "/stock/symbol", query, &resp); err != nil {
		return nil, fmt.Errorf("get symbols %s: %w", exchange, err)
	}
	if resp == nil {
		resp = []SymbolInfo{}
	}

	c.logger.Debug("fetched symbols", "exchange", exchange, "count", len(resp))
	return resp, nil
}

// GetCountries lists the countries Finnhub reports on.
func (c *Client) GetCountries(ctx context.Context) ([]Country, error) {
	var resp []Country
	if err := c.get(ctx, "/country", nil, &resp); err != nil {
		return nil, fmt.Errorf("get countries: %w", err)
	}
	if resp == nil {
		resp = []Country{}
	}
	return resp, nil
}
