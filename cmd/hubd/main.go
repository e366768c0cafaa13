// hubd runs the market-data hub: it streams Finnhub trades upstream and fans
// them out to WebSocket clients by symbol.
// Usage: go run ./cmd/hubd --config configs/hub.example.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/quantdash/internal/api"
	"github.com/rickgao/quantdash/internal/config"
	"github.com/rickgao/quantdash/internal/database"
	"github.com/rickgao/quantdash/internal/feed"
	"github.com/rickgao/quantdash/internal/history"
	"github.com/rickgao/quantdash/internal/hub"
	"github.com/rickgao/quantdash/internal/metrics"
	"github.com/rickgao/quantdash/internal/model"
	"github.com/rickgao/quantdash/internal/poller"
	"github.com/rickgao/quantdash/internal/server"
	"github.com/rickgao/quantdash/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/hub.example.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	if err := config.LoadEnvFiles(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting hub",
		"build", version.Get(),
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("hub failed", "error", err)
		os.Exit(1)
	}
	logger.Info("hub stopped")
}

func run(cfg *config.HubConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	apiClient := api.NewClient(
		cfg.Feed.RestURL,
		cfg.Feed.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Feed.Timeout),
		api.WithRetries(cfg.Feed.MaxRetries, time.Second),
		api.WithRateLimit(time.Minute, cfg.Feed.RequestsPerMinute),
	)

	adapter := feed.NewAdapter(feed.AdapterConfig{
		URL:   cfg.Feed.WSURL,
		Token: cfg.Feed.Token,
		Client: feed.ClientConfig{
			HandshakeTimeout: 10 * time.Second,
			PingInterval:     cfg.Feed.PingInterval,
			PingTimeout:      cfg.Feed.PingTimeout,
			WriteTimeout:     cfg.Feed.WriteTimeout,
			BufferSize:       cfg.Feed.BufferSize,
		},
		Backoff: feed.Backoff{
			Min:    cfg.Feed.ReconnectBaseDelay,
			Max:    cfg.Feed.ReconnectMaxDelay,
			Factor: 2.0,
			Jitter: 0.2,
		},
	}, apiClient, logger, feed.WithStateListener(func(s feed.ConnState) {
		m.FeedState.Set(float64(s))
		logger.Info("feed state changed", "state", s)
	}))

	registry := hub.NewRegistry(adapter, m, logger)
	h := hub.NewHub(hub.Config{
		SendQueueSize:  cfg.Server.SendQueueSize,
		ReadLimit:      cfg.Server.ReadLimit,
		WriteTimeout:   cfg.Server.WriteTimeout,
		PingInterval:   cfg.Server.PingInterval,
		PongTimeout:    cfg.Server.PongTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, registry, m, logger)
	broadcaster := hub.NewBroadcaster(adapter, h, hub.BroadcasterConfig{
		RetryBaseDelay: cfg.Broadcaster.RetryBaseDelay,
		RetryMaxDelay:  cfg.Broadcaster.RetryMaxDelay,
	}, m, logger)

	// Optional bar archive.
	var (
		store  history.Store
		pinger server.Pinger
	)
	if cfg.Database.Enabled() {
		db := cfg.Database.Bars
		logger.Info("connecting to bar archive",
			"host", db.Host,
			"port", db.Port,
			"database", db.Name,
		)
		pool, err := database.Connect(ctx, db, "quantdash-"+cfg.Instance.ID)
		if err != nil {
			return fmt.Errorf("connect bar archive: %w", err)
		}
		defer pool.Close()

		bars := database.NewBarStore(pool, logger)
		if err := bars.EnsureSchema(ctx); err != nil {
			return err
		}
		store, pinger = bars, pool
		logger.Info("bar archive connected")
	}

	histHandler := history.NewHandler(history.NewService(adapter, store, m, logger), apiClient, logger)

	public := server.New("http", cfg.Server.Addr,
		server.NewRouter(h, cfg.Server.WSPath, histHandler, logger),
		cfg.Server.ShutdownTimeout, logger)
	ops := server.New("ops", fmt.Sprintf(":%d", cfg.Metrics.Port),
		server.NewOpsHandler(server.Components{
			Feed:        adapter,
			Broadcaster: broadcaster,
			Hub:         h,
			Symbols:     registry,
			DB:          pinger,
		}, reg, cfg.Metrics.Path, logger),
		cfg.Server.ShutdownTimeout, logger)

	var quotePoller *poller.Poller
	if cfg.Poller.Enabled {
		quotePoller = poller.New(poller.Config{
			Interval:    cfg.Poller.Interval,
			Concurrency: cfg.Poller.Concurrency,
			Timeout:     cfg.Poller.Timeout,
		}, apiClient, registry, poller.TickHandlerFunc(func(t model.Tick) {
			broadcaster.Deliver(t)
		}), func() bool {
			return adapter.State() != feed.StateStreaming
		}, m, logger)
		if err := quotePoller.Start(ctx); err != nil {
			return fmt.Errorf("start quote poller: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return public.Run(gctx) })
	g.Go(func() error { return ops.Run(gctx) })
	g.Go(func() error { return broadcaster.Run(gctx) })

	logger.Info("hub running",
		"addr", cfg.Server.Addr,
		"ws_path", cfg.Server.WSPath,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
		"poller", cfg.Poller.Enabled,
		"archive", cfg.Database.Enabled(),
	)

	runErr := g.Wait()

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if quotePoller != nil {
		quotePoller.Stop(shutdownCtx)
	}
	// Clients release their symbols upstream, so the hub goes before the adapter.
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Warn("hub shutdown incomplete", "error", err)
	}
	if err := adapter.Close(); err != nil {
		logger.Warn("close feed adapter", "error", err)
	}

	return runErr
}
