// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Downstream client count and subscription fan-in
//   - Tick throughput, frames enqueued and slow-consumer drops
//   - Upstream control failures and stream restarts
//   - History lookups by source
package metrics
