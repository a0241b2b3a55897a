package resilience

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrentStreams caps the number of streams open at once.
	// Default: 10
	MaxConcurrentStreams int

	// MaxWait is how long an acquirer waits for a slot before failing
	// with ErrBulkheadFull. Zero means fail immediately when full.
	MaxWait time.Duration
}

// Bulkhead isolates the downstream by capping concurrent streams, so one
// burst of long-lived requests cannot exhaust the process.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrentStreams <= 0 {
		config.MaxConcurrentStreams = 10
	}
	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrentStreams)),
	}
}

// Acquire claims a stream slot. The returned release function must be
// called exactly once when the stream ends.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	if b.config.MaxWait <= 0 {
		if !b.sem.TryAcquire(1) {
			return nil, ErrBulkheadFull
		}
		return func() { b.sem.Release(1) }, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.config.MaxWait)
	defer cancel()

	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrBulkheadFull
	}
	return func() { b.sem.Release(1) }, nil
}

// Execute runs op inside a stream slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	release, err := b.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return op(ctx)
}
