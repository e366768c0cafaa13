// Package database provides the PostgreSQL connection pool and the bar
// archive used as a fallback for historical queries.
//
// Bars are stored in a single table keyed by (symbol, resolution, ts) and
// written with upsert semantics, so re-fetching an overlapping range from
// upstream simply refreshes the stored rows.
package database
