package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk YAML configuration. Every field is optional; absent
// values fall back to component defaults.
type File struct {
	Endpoint       EndpointConfig       `yaml:"endpoint"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimiter    RateLimiterConfig    `yaml:"rate_limiter"`
	Bulkhead       BulkheadConfig       `yaml:"bulkhead"`
	Stream         StreamConfig         `yaml:"stream"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// EndpointConfig locates and authenticates the streaming API.
type EndpointConfig struct {
	// BaseURL is the API root, e.g. "https://api.anthropic.com".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates with an x-api-key header. Supports ${VAR}.
	APIKey string `yaml:"api_key"`

	// BearerToken authenticates with an Authorization header instead of
	// an API key. Supports ${VAR}.
	BearerToken string `yaml:"bearer_token"`

	// Timeout bounds the initial connection, not the stream itself.
	Timeout Duration `yaml:"timeout"`
}

// RetryConfig mirrors resilience.RetryConfig.
type RetryConfig struct {
	MaxAttempts          *int     `yaml:"max_attempts"`
	InitialDelay         Duration `yaml:"initial_delay"`
	MaxDelay             Duration `yaml:"max_delay"`
	BackoffMultiplier    float64  `yaml:"backoff_multiplier"`
	JitterFactor         float64  `yaml:"jitter_factor"`
	RetryableStatusCodes []int    `yaml:"retryable_status_codes"`
}

// CircuitBreakerConfig mirrors resilience.CircuitBreakerConfig.
type CircuitBreakerConfig struct {
	FailureThreshold         int      `yaml:"failure_threshold"`
	RecoveryTimeout          Duration `yaml:"recovery_timeout"`
	HalfOpenSuccessThreshold int      `yaml:"half_open_success_threshold"`
}

// RateLimiterConfig mirrors resilience.RateLimiterConfig.
type RateLimiterConfig struct {
	DefaultBackoff Duration `yaml:"default_backoff"`
}

// BulkheadConfig mirrors resilience.BulkheadConfig.
type BulkheadConfig struct {
	MaxConcurrentStreams int      `yaml:"max_concurrent_streams"`
	MaxWait              Duration `yaml:"max_wait"`
}

// StreamConfig holds stream-level settings.
type StreamConfig struct {
	// InactivityTimeout is the silence window after which a live stream
	// is declared stalled. Zero disables the watchdog.
	InactivityTimeout Duration `yaml:"inactivity_timeout"`
}

// MetricsConfig mirrors metrics.Config. Enabled flags are pointers so an
// absent key keeps the component default of true.
type MetricsConfig struct {
	Enabled            *bool `yaml:"enabled"`
	AggregationEnabled *bool `yaml:"aggregation_enabled"`
	SampleWindow       int   `yaml:"sample_window"`
	SubscriberBuffer   int   `yaml:"subscriber_buffer"`
}

// ObservabilityConfig mirrors observe.Config.
type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name"`
	Version     string        `yaml:"version"`
	Tracing     TracingConfig `yaml:"tracing"`
	Metrics     ExporterOnly  `yaml:"metrics"`
	Logging     LoggingConfig `yaml:"logging"`
}

// TracingConfig configures trace export and sampling.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`
	SamplePct float64 `yaml:"sample_pct"`
}

// ExporterOnly configures a metrics exporter.
type ExporterOnly struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Load reads and parses the configuration at path, expanding ${VAR}
// references against the environment first.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse parses raw YAML configuration bytes.
func Parse(raw []byte) (*File, error) {
	expanded, err := expandEnvStrict(string(raw))
	if err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}
