package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rickgao/quantdash/internal/history"
)

// NewRouter routes wsPath to the hub and mounts the history routes. history may be nil.
func NewRouter(hub http.Handler, wsPath string, hist *history.Handler, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}

	router := mux.NewRouter()
	router.Handle(wsPath, hub).Methods(http.MethodGet).Name("ws")

	api := router.NewRoute().Subrouter()
	if hist != nil {
		hist.Register(api)
	}
	api.Use(requestLogger(logger))

	return router
}

// requestLogger logs each REST request with its route name and duration.
func requestLogger(logger *slog.Logger) mux.MiddlewareFunc {
	return func(inner http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			inner.ServeHTTP(rec, r)

			name := ""
			if route := mux.CurrentRoute(r); route != nil {
				name = route.GetName()
			}
			logger.Debug("http request",
				"method", r.Method,
				"uri", r.RequestURI,
				"route", name,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
