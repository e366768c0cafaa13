// Package history serves OHLCV bars, quotes and reference listings over HTTP.
//
// Bar queries go to the upstream REST API. Identical concurrent queries are
// collapsed into one upstream call, and when an archive Store is configured
// fetched bars are saved there and served back if upstream fails.
package history
