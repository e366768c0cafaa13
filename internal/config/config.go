package config

import "time"

// HubConfig is the root configuration for a hub instance.
type HubConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Server      ServerConfig      `yaml:"server"`
	Feed        FeedConfig        `yaml:"feed"`
	Broadcaster BroadcasterConfig `yaml:"broadcaster"`
	Poller      PollerConfig      `yaml:"poller"`
	Database    DatabaseConfig    `yaml:"database"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// InstanceConfig identifies this hub.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the downstream WebSocket and HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	WSPath          string        `yaml:"ws_path"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // Empty allows any origin
	ReadLimit       int64         `yaml:"read_limit"`      // Max inbound frame size in bytes
	SendQueueSize   int           `yaml:"send_queue_size"` // Outbound frames buffered per client
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// FeedConfig holds Finnhub upstream settings.
type FeedConfig struct {
	RestURL            string        `yaml:"rest_url"`
	WSURL              string        `yaml:"ws_url"`
	Token              string        `yaml:"token"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	RequestsPerMinute  int           `yaml:"requests_per_minute"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// BroadcasterConfig holds fan-out loop settings.
type BroadcasterConfig struct {
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
}

// PollerConfig holds quote fallback poller settings.
type PollerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the optional history archive connection.
// The archive is enabled when Bars.Host is set.
type DatabaseConfig struct {
	Bars DBConfig `yaml:"bars"`
}

// Enabled reports whether a bar archive database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Bars.Host != ""
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the ops server (health + Prometheus) settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
