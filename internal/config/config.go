// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Policy    PolicyConfig    `yaml:"policy"`
	Limits    LimitsConfig    `yaml:"limits"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig holds document store connection settings. Pool size stays at 1:
// the upstream caller serializes its requests, so a larger pool only adds
// setup cost. All timeouts are kept in the single-digit-second range so a
// store outage degrades into a fast error rather than a hung request.
type StoreConfig struct {
	URI              string        `yaml:"uri"`
	Database         string        `yaml:"database"`
	MaxPoolSize      uint64        `yaml:"max_pool_size"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	SelectionTimeout time.Duration `yaml:"selection_timeout"`
	SocketTimeout    time.Duration `yaml:"socket_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
}

// AuthConfig holds authentication settings. An empty SharedSecret does not
// disable auth: the gateway fails closed and rejects every request.
type AuthConfig struct {
	SharedSecret string `yaml:"shared_secret"`
}

// PolicyConfig holds the collection allow-list and the operator/stage
// block-lists. The shipped defaults are the production tuning values; they are
// configuration, not constants.
type PolicyConfig struct {
	AllowedCollections []string `yaml:"allowed_collections"`
	BlockedOperators   []string `yaml:"blocked_operators"`
	BlockedStages      []string `yaml:"blocked_stages"`
}

// LimitsConfig holds request-shaping bounds.
type LimitsConfig struct {
	DefaultFindLimit int64 `yaml:"default_find_limit"`
	MaxFindLimit     int64 `yaml:"max_find_limit"`
	MaxBatchSize     int   `yaml:"max_batch_size"`
	MaxFilterDepth   int   `yaml:"max_filter_depth"`
}

// CacheConfig holds read-result cache settings.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxSize    int           `yaml:"max_size"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns a Config populated with the shipped defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			URI:              "mongodb://localhost:27017",
			Database:         "mukoko_news",
			MaxPoolSize:      1,
			ConnectTimeout:   5 * time.Second,
			SelectionTimeout: 5 * time.Second,
			SocketTimeout:    8 * time.Second,
			PingInterval:     30 * time.Second,
		},
		Policy: PolicyConfig{
			AllowedCollections: []string{
				"articles", "sources", "source_health", "health_records",
				"trending", "keywords", "clusters", "search_cache",
				"processing_log", "feed_state",
			},
			BlockedOperators: []string{
				"$where", "$function", "$accumulator", "$expr",
			},
			BlockedStages: []string{
				"$out", "$merge", "$currentOp", "$listSessions",
				"$listLocalSessions", "$planCacheStats", "$collStats",
				"$indexStats",
			},
		},
		Limits: LimitsConfig{
			DefaultFindLimit: 100,
			MaxFindLimit:     1000,
			MaxBatchSize:     500,
			MaxFilterDepth:   32,
		},
		Cache: CacheConfig{
			Enabled:    false,
			MaxSize:    10_000,
			DefaultTTL: 30 * time.Second,
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
