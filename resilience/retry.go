package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"
)

// Retry configuration validation errors.
var (
	ErrInvalidMultiplier   = errors.New("resilience: retry multiplier must be >= 1")
	ErrInvalidJitterFactor = errors.New("resilience: retry jitter factor must be in [0, 1]")
	ErrInvalidDelay        = errors.New("resilience: retry delays must be positive and max >= initial")
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of retries after the initial
	// attempt. A negative value disables retries entirely.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the base delay before the first retry.
	// Default: 1s
	InitialDelay time.Duration

	// MaxDelay caps the computed delay before jitter is applied.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor. Must be >= 1.
	// Default: 2.0
	Multiplier float64

	// JitterFactor controls symmetric jitter: the final delay is drawn
	// uniformly from [base*(1-j), base*(1+j)]. Must be in [0, 1].
	// Default: 0.25
	JitterFactor float64

	// RetryableStatusCodes lists HTTP statuses that warrant a retry even
	// when the error kind alone would not.
	// Default: 429, 500, 502, 503, 504
	RetryableStatusCodes []int

	// Rand supplies the uniform [0, 1) variates used for jitter. Tests
	// inject a seeded source here.
	// Default: math/rand/v2.Float64
	Rand func() float64
}

// RetryPolicy decides whether a failed attempt should be retried and how
// long to wait before the next one.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy validates config, applies defaults, and creates a policy.
func NewRetryPolicy(config RetryConfig) (*RetryPolicy, error) {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	} else if config.MaxAttempts < 0 {
		// Negative means retries explicitly disabled.
		config.MaxAttempts = 0
	}
	if config.InitialDelay == 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay == 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier == 0 {
		config.Multiplier = 2.0
	}
	if config.JitterFactor == 0 {
		config.JitterFactor = 0.25
	}
	if config.RetryableStatusCodes == nil {
		config.RetryableStatusCodes = []int{429, 500, 502, 503, 504}
	}
	if config.Rand == nil {
		config.Rand = rand.Float64
	}

	if config.Multiplier < 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidMultiplier, config.Multiplier)
	}
	if config.JitterFactor < 0 || config.JitterFactor > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidJitterFactor, config.JitterFactor)
	}
	if config.InitialDelay < 0 || config.MaxDelay < config.InitialDelay {
		return nil, fmt.Errorf("%w: initial=%v max=%v", ErrInvalidDelay, config.InitialDelay, config.MaxDelay)
	}

	return &RetryPolicy{config: config}, nil
}

// ShouldRetry reports whether another attempt is warranted after err, given
// that attempts retries have already been made.
func (p *RetryPolicy) ShouldRetry(err error, attempts int) bool {
	if err == nil || attempts >= p.config.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var e *Error
	if errors.As(err, &e) && e.StatusCode != 0 {
		return slices.Contains(p.config.RetryableStatusCodes, e.StatusCode)
	}
	return Retryable(err)
}

// DelayForAttempt computes the backoff delay before retry number attempt
// (zero-indexed): base = InitialDelay * Multiplier^attempt, capped at
// MaxDelay, with symmetric jitter applied.
func (p *RetryPolicy) DelayForAttempt(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	base := float64(p.config.InitialDelay) * math.Pow(p.config.Multiplier, float64(attempt))
	if base > float64(p.config.MaxDelay) {
		base = float64(p.config.MaxDelay)
	}

	// Uniform in [base*(1-j), base*(1+j)].
	jittered := base * (1 + p.config.JitterFactor*(2*p.config.Rand()-1))
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// MaxAttempts returns the configured retry budget.
func (p *RetryPolicy) MaxAttempts() int {
	return p.config.MaxAttempts
}

// Execute runs op, retrying according to the policy. The error from the
// final attempt is returned. A rate-limited error's server-suggested delay
// takes precedence over the computed backoff.
func (p *RetryPolicy) Execute(ctx context.Context, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if !p.ShouldRetry(err, attempt) {
			return err
		}

		delay := p.DelayForAttempt(attempt)
		var e *Error
		if errors.As(err, &e) && e.RetryAfter > delay {
			delay = e.RetryAfter
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
