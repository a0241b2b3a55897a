package config

import (
	"github.com/streamgate-io/streamgate/auth"
	"github.com/streamgate-io/streamgate/metrics"
	"github.com/streamgate-io/streamgate/observe"
	"github.com/streamgate-io/streamgate/resilience"
)

// RetryPolicy builds the resilience retry config. Component defaults
// apply to zero values.
func (f *File) RetryPolicy() resilience.RetryConfig {
	cfg := resilience.RetryConfig{
		InitialDelay:         f.Retry.InitialDelay.Duration,
		MaxDelay:             f.Retry.MaxDelay.Duration,
		Multiplier:           f.Retry.BackoffMultiplier,
		JitterFactor:         f.Retry.JitterFactor,
		RetryableStatusCodes: f.Retry.RetryableStatusCodes,
	}
	if f.Retry.MaxAttempts != nil {
		cfg.MaxAttempts = *f.Retry.MaxAttempts
		if cfg.MaxAttempts == 0 {
			// Explicit zero means retries off; the component treats a
			// negative value that way without touching its default.
			cfg.MaxAttempts = -1
		}
	}
	return cfg
}

// Breaker builds the circuit breaker config.
func (f *File) Breaker() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold:         f.CircuitBreaker.FailureThreshold,
		RecoveryTimeout:          f.CircuitBreaker.RecoveryTimeout.Duration,
		HalfOpenSuccessThreshold: f.CircuitBreaker.HalfOpenSuccessThreshold,
	}
}

// Limiter builds the rate limiter config.
func (f *File) Limiter() resilience.RateLimiterConfig {
	return resilience.RateLimiterConfig{
		DefaultBackoff: f.RateLimiter.DefaultBackoff.Duration,
	}
}

// Streams builds the bulkhead config.
func (f *File) Streams() resilience.BulkheadConfig {
	return resilience.BulkheadConfig{
		MaxConcurrentStreams: f.Bulkhead.MaxConcurrentStreams,
		MaxWait:              f.Bulkhead.MaxWait.Duration,
	}
}

// Collector builds the metrics collector config. Absent enabled flags
// keep the collector default of true.
func (f *File) Collector() metrics.Config {
	cfg := metrics.DefaultConfig()
	if f.Metrics.Enabled != nil {
		cfg.Enabled = *f.Metrics.Enabled
	}
	if f.Metrics.AggregationEnabled != nil {
		cfg.AggregationEnabled = *f.Metrics.AggregationEnabled
	}
	if f.Metrics.SampleWindow > 0 {
		cfg.SampleWindow = f.Metrics.SampleWindow
	}
	if f.Metrics.SubscriberBuffer > 0 {
		cfg.SubscriberBuffer = f.Metrics.SubscriberBuffer
	}
	return cfg
}

// Observer builds the observability config.
func (f *File) Observer() observe.Config {
	return observe.Config{
		ServiceName: f.Observability.ServiceName,
		Version:     f.Observability.Version,
		Tracing: observe.TracingConfig{
			Enabled:   f.Observability.Tracing.Enabled,
			Exporter:  f.Observability.Tracing.Exporter,
			SamplePct: f.Observability.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  f.Observability.Metrics.Enabled,
			Exporter: f.Observability.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: f.Observability.Logging.Enabled,
			Level:   f.Observability.Logging.Level,
		},
	}
}

// Credentials builds request credentials from the endpoint section. The
// API key wins when both are set; nil means no credentials configured.
func (f *File) Credentials() auth.Credentials {
	switch {
	case f.Endpoint.APIKey != "":
		return auth.NewAPIKey(f.Endpoint.APIKey)
	case f.Endpoint.BearerToken != "":
		return auth.NewBearerToken(f.Endpoint.BearerToken)
	default:
		return nil
	}
}
