package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/quantdash/internal/feed"
	"github.com/rickgao/quantdash/internal/hub"
	"github.com/rickgao/quantdash/internal/version"
)

// Pinger checks a dependency. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Components are the parts /health reports on. DB may be nil.
type Components struct {
	Feed        interface{ State() feed.ConnState }
	Broadcaster interface{ State() hub.BroadcasterState }
	Hub         interface{ Stats() hub.Stats }
	Symbols     interface{ Symbols() []string }
	DB          Pinger
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string         `json:"status"`
	Version    version.Info   `json:"version"`
	Components map[string]any `json:"components"`
}

// NewOpsHandler serves /health, /debug/symbols and metricsPath.
func NewOpsHandler(c Components, gatherer prometheus.Gatherer, metricsPath string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler(c)).Methods(http.MethodGet)

	router.HandleFunc("/debug/symbols", func(w http.ResponseWriter, r *http.Request) {
		symbols := c.Symbols.Symbols()

		// Limit to first 100 for debugging
		showing := symbols
		if len(showing) > 100 {
			showing = showing[:100]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   len(symbols),
			"showing": len(showing),
			"symbols": showing,
		})
	}).Methods(http.MethodGet)

	if gatherer != nil {
		router.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		}))
	}

	return router
}

func healthHandler(c Components) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := HealthResponse{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]any),
		}

		feedState := c.Feed.State()
		health.Components["feed"] = feedState.String()
		if feedState != feed.StateStreaming {
			health.Status = "degraded"
		}

		health.Components["broadcaster"] = c.Broadcaster.State().String()

		stats := c.Hub.Stats()
		health.Components["hub"] = map[string]int{
			"clients":       stats.Clients,
			"symbols":       stats.Symbols,
			"subscriptions": stats.Pairs,
		}

		if c.DB != nil {
			if err := c.DB.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
