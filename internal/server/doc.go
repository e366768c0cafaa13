// Package server assembles the HTTP surfaces of the hub.
//
// The public listener serves the WebSocket endpoint and the REST routes.
// The ops listener, on metrics.port, serves /health, /debug/symbols and
// Prometheus metrics.
package server
