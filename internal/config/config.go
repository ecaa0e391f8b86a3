package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Gfycat  GfycatConfig
	Observe ObserveConfig
	Server  ServerConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8080"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHTTPMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
	OutgoingHTTPTimeoutSeconds  int `env:"SERVER_OUTGOING_TIMEOUT_SECS, default=30"`

	// RateLimitRPS limits the random item endpoint across all clients.
	RateLimitRPS   float64 `env:"SERVER_RATE_LIMIT_RPS, default=5"`
	RateLimitBurst int     `env:"SERVER_RATE_LIMIT_BURST, default=10"`
}

const (
	GrantPassword          = "password"
	GrantClientCredentials = "client_credentials"
)

// GfycatConfig holds the API credentials and the album to serve.
type GfycatConfig struct {
	APIURL     string `env:"CATVID_API_URL, default=https://api.gfycat.com"`
	PublicHost string `env:"CATVID_PUBLIC_HOST, default=gfycat.com"`

	ClientID     string `env:"CATVID_CLIENT_ID, required"`
	ClientSecret string `env:"CATVID_CLIENT_SECRET, required"`
	AlbumID      string `env:"CATVID_ALBUM_ID, required"`

	// GrantType selects the token flow. When empty, the password grant is used
	// if a username is configured, otherwise client credentials.
	GrantType string `env:"CATVID_GRANT_TYPE"`
	Username  string `env:"CATVID_USERNAME"`
	Password  string `env:"CATVID_PASSWORD"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=catvid-bridge"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Gfycat.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid gfycat configuration: %w", err)
	}

	return cfg, nil
}

// LoadGfycat reads only the API settings, for tools that do not serve HTTP.
func LoadGfycat(ctx context.Context) (GfycatConfig, error) {
	var cfg GfycatConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid gfycat configuration: %w", err)
	}

	return cfg, nil
}

// Grant resolves the configured grant type, inferring it from the presence
// of a username when not set explicitly.
func (c *GfycatConfig) Grant() string {
	if c.GrantType != "" {
		return c.GrantType
	}
	if c.Username != "" {
		return GrantPassword
	}
	return GrantClientCredentials
}

// Validate checks that the selected grant has what it needs.
func (c *GfycatConfig) Validate() error {
	switch c.Grant() {
	case GrantPassword:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("CATVID_USERNAME and CATVID_PASSWORD required for the password grant")
		}
	case GrantClientCredentials:
		// nothing further
	default:
		return fmt.Errorf("invalid CATVID_GRANT_TYPE %q: must be either %q or %q", c.GrantType, GrantPassword, GrantClientCredentials)
	}

	return nil
}
