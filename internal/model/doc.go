// Package model defines the market-data types shared by the feed, hub and history packages.
//
// Conventions:
//   - Symbols: upper-case, trimmed (see NormalizeSymbol)
//   - Prices: float64 in quote currency, as published by the upstream provider
//   - Tick timestamps: int64 milliseconds since Unix epoch
//   - Bar and quote timestamps: int64 seconds since Unix epoch
package model
