// Package api provides the Finnhub REST client used for quotes and historical candles.
//
// REST endpoint:
//   - https://finnhub.io/api/v1
//
// Requests authenticate with the X-Finnhub-Token header. The free tier allows
// 60 requests per minute, so the client carries a token-bucket limiter
// (see WithRateLimit).
package api
