package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-hub
server:
  addr: ":9000"
  allowed_origins:
    - https://dash.example.com
feed:
  rest_url: https://finnhub.example.com/api/v1
  token: abc123
database:
  bars:
    host: localhost
    port: 5432
    name: bars
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-hub" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-hub")
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9000")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://dash.example.com" {
		t.Errorf("Server.AllowedOrigins = %v, want [https://dash.example.com]", cfg.Server.AllowedOrigins)
	}
	if cfg.Feed.RestURL != "https://finnhub.example.com/api/v1" {
		t.Errorf("Feed.RestURL = %q, want %q", cfg.Feed.RestURL, "https://finnhub.example.com/api/v1")
	}
	if cfg.Feed.Token != "abc123" {
		t.Errorf("Feed.Token = %q, want %q", cfg.Feed.Token, "abc123")
	}
	if !cfg.Database.Enabled() {
		t.Error("Database.Enabled() = false, want true")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
feed:
  token: tok
database:
  bars:
    host: localhost
    name: bars
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Bars.Password != "secret123" {
		t.Errorf("Database.Bars.Password = %q, want %q", cfg.Database.Bars.Password, "secret123")
	}
}

func TestLoadTokenFromEnv(t *testing.T) {
	t.Setenv(TokenEnvVar, "from-env")

	path := writeTempFile(t, "instance:\n  id: test-hub\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Feed.Token != "from-env" {
		t.Errorf("Feed.Token = %q, want %q", cfg.Feed.Token, "from-env")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("QUANTDASH_TEST_VAR=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("QUANTDASH_TEST_VAR", "")
	os.Unsetenv("QUANTDASH_TEST_VAR")

	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles failed: %v", err)
	}
	if got := os.Getenv("QUANTDASH_TEST_VAR"); got != "from-dotenv" {
		t.Errorf("QUANTDASH_TEST_VAR = %q, want %q", got, "from-dotenv")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "feed:\n  token: tok\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Instance.ID != DefaultInstanceID {
		t.Errorf("Instance.ID = %q, want default %q", cfg.Instance.ID, DefaultInstanceID)
	}
	if cfg.Server.WSPath != DefaultWSPath {
		t.Errorf("Server.WSPath = %q, want default %q", cfg.Server.WSPath, DefaultWSPath)
	}
	if cfg.Server.SendQueueSize != DefaultSendQueueSize {
		t.Errorf("Server.SendQueueSize = %d, want default %d", cfg.Server.SendQueueSize, DefaultSendQueueSize)
	}
	if cfg.Feed.RestURL != DefaultRestURL {
		t.Errorf("Feed.RestURL = %q, want default %q", cfg.Feed.RestURL, DefaultRestURL)
	}
	if cfg.Feed.WSURL != DefaultWSURL {
		t.Errorf("Feed.WSURL = %q, want default %q", cfg.Feed.WSURL, DefaultWSURL)
	}
	if cfg.Feed.Timeout != DefaultAPITimeout {
		t.Errorf("Feed.Timeout = %v, want default %v", cfg.Feed.Timeout, DefaultAPITimeout)
	}
	if cfg.Feed.RequestsPerMinute != DefaultRequestsPerMinute {
		t.Errorf("Feed.RequestsPerMinute = %d, want default %d", cfg.Feed.RequestsPerMinute, DefaultRequestsPerMinute)
	}
	if cfg.Broadcaster.RetryMaxDelay != DefaultRetryMaxDelay {
		t.Errorf("Broadcaster.RetryMaxDelay = %v, want default %v", cfg.Broadcaster.RetryMaxDelay, DefaultRetryMaxDelay)
	}
	if cfg.Poller.Enabled {
		t.Error("Poller.Enabled = true, want false by default")
	}
	if cfg.Database.Enabled() {
		t.Error("Database.Enabled() = true, want false without host")
	}
	if cfg.Database.Bars.Port != 0 {
		t.Errorf("Database.Bars.Port = %d, want 0 when archive disabled", cfg.Database.Bars.Port)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, DefaultLogFormat)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadAndValidate_MissingToken(t *testing.T) {
	t.Setenv(TokenEnvVar, "")

	path := writeTempFile(t, "instance:\n  id: test-hub\n")

	if _, err := LoadAndValidate(path); err == nil {
		t.Fatal("expected error for missing feed token")
	}
}

func validConfig() HubConfig {
	return HubConfig{
		Instance: InstanceConfig{ID: "test"},
		Server: ServerConfig{
			Addr:          ":8000",
			WSPath:        "/ws",
			ReadLimit:     4096,
			SendQueueSize: 64,
			PingInterval:  30 * time.Second,
			PongTimeout:   60 * time.Second,
		},
		Feed: FeedConfig{
			RestURL:            DefaultRestURL,
			WSURL:              DefaultWSURL,
			Token:              "tok",
			MaxRetries:         3,
			RequestsPerMinute:  60,
			ReconnectBaseDelay: time.Second,
			ReconnectMaxDelay:  time.Minute,
			BufferSize:         100,
		},
		Broadcaster: BroadcasterConfig{
			RetryBaseDelay: time.Second,
			RetryMaxDelay:  30 * time.Second,
		},
		Metrics: MetricsConfig{Port: 9090},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*HubConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *HubConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *HubConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "ws path without slash",
			mutate:  func(c *HubConfig) { c.Server.WSPath = "ws" },
			wantErr: `server.ws_path must start with /, got "ws"`,
		},
		{
			name:    "zero send queue",
			mutate:  func(c *HubConfig) { c.Server.SendQueueSize = 0 },
			wantErr: "server.send_queue_size must be >= 1",
		},
		{
			name:    "pong timeout not above ping interval",
			mutate:  func(c *HubConfig) { c.Server.PongTimeout = 30 * time.Second },
			wantErr: "server.pong_timeout (30s) must exceed server.ping_interval (30s)",
		},
		{
			name:    "missing token",
			mutate:  func(c *HubConfig) { c.Feed.Token = "" },
			wantErr: "feed.token is required (or set FINNHUB_API_KEY)",
		},
		{
			name: "reconnect base exceeds max",
			mutate: func(c *HubConfig) {
				c.Feed.ReconnectBaseDelay = 2 * time.Minute
			},
			wantErr: "feed.reconnect_base_delay (2m0s) cannot exceed reconnect_max_delay (1m0s)",
		},
		{
			name: "poller enabled without concurrency",
			mutate: func(c *HubConfig) {
				c.Poller.Enabled = true
				c.Poller.Concurrency = 0
			},
			wantErr: "poller.concurrency must be >= 1",
		},
		{
			name: "database missing password",
			mutate: func(c *HubConfig) {
				c.Database.Bars = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 5}
			},
			wantErr: "database.bars.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *HubConfig) {
				c.Database.Bars = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.bars.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *HubConfig) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *HubConfig) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
