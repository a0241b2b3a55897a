package resilience

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// DefaultBackoff is the block duration applied when a 429 arrives
	// without a usable Retry-After value.
	// Default: 60 seconds
	DefaultBackoff time.Duration

	// OnBlocked is called when a 429 observation sets or extends the
	// block deadline.
	OnBlocked func(until time.Time)
}

// RateLimiter absorbs HTTP 429 responses by deferring subsequent calls
// until a server-supplied (or default) deadline passes, rather than
// hammering the endpoint. Deferred callers run in strict FIFO order once
// the block lifts.
type RateLimiter struct {
	config RateLimiterConfig

	mu           sync.Mutex
	blockedUntil time.Time
	queue        []*waiter
	draining     bool
	disposed     bool
	stop         chan struct{}
}

// waiter is a deferred caller. The drain goroutine closes release to hand
// it the turn; the waiter closes done when it has finished or given up.
type waiter struct {
	release chan struct{}
	done    chan struct{}
	err     error // set before release closes on failure paths
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.DefaultBackoff <= 0 {
		config.DefaultBackoff = 60 * time.Second
	}
	return &RateLimiter{
		config: config,
		stop:   make(chan struct{}),
	}
}

// RecordRateLimit observes a response status. It is a no-op unless status
// is 429, in which case the block deadline becomes now + retryAfter, or
// now + DefaultBackoff when retryAfter is zero.
func (rl *RateLimiter) RecordRateLimit(status int, retryAfter time.Duration) {
	if status != http.StatusTooManyRequests {
		return
	}
	if retryAfter <= 0 {
		retryAfter = rl.config.DefaultBackoff
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.disposed {
		return
	}
	until := time.Now().Add(retryAfter)
	if until.After(rl.blockedUntil) {
		rl.blockedUntil = until
		if rl.config.OnBlocked != nil {
			rl.config.OnBlocked(until)
		}
	}
}

// Blocked reports whether calls are currently being deferred.
func (rl *RateLimiter) Blocked() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return time.Now().Before(rl.blockedUntil)
}

// QueueLen returns the number of deferred callers.
func (rl *RateLimiter) QueueLen() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.queue)
}

// Execute runs op immediately when unblocked, or defers it behind earlier
// callers when a block deadline is active. Context cancellation removes
// the caller from the queue.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	rl.mu.Lock()
	if rl.disposed {
		rl.mu.Unlock()
		return ErrLimiterDisposed
	}

	// Fast path: nothing ahead of us and no active deadline.
	if len(rl.queue) == 0 && !rl.draining && !time.Now().Before(rl.blockedUntil) {
		rl.mu.Unlock()
		return op(ctx)
	}

	w := &waiter{
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	rl.queue = append(rl.queue, w)
	rl.ensureDrainLocked()
	rl.mu.Unlock()

	select {
	case <-w.release:
		defer close(w.done)
		if w.err != nil {
			return w.err
		}
		return op(ctx)
	case <-ctx.Done():
		rl.removeWaiter(w)
		close(w.done)
		return ctx.Err()
	}
}

// Dispose cancels the pending drain and fails all still-queued callers
// with ErrLimiterDisposed rather than leaving them hanging.
func (rl *RateLimiter) Dispose() {
	rl.mu.Lock()
	if rl.disposed {
		rl.mu.Unlock()
		return
	}
	rl.disposed = true
	queued := rl.queue
	rl.queue = nil
	close(rl.stop)
	rl.mu.Unlock()

	for _, w := range queued {
		w.err = ErrLimiterDisposed
		close(w.release)
	}
}

// ensureDrainLocked starts the drain goroutine if one is not running.
func (rl *RateLimiter) ensureDrainLocked() {
	if rl.draining || rl.disposed {
		return
	}
	rl.draining = true
	go rl.drain()
}

// drain services the queue one caller at a time. Each waiter finishes
// before the next is released, so deferred operations are strictly
// serialized in arrival order.
func (rl *RateLimiter) drain() {
	for {
		rl.mu.Lock()
		if rl.disposed || len(rl.queue) == 0 {
			rl.draining = false
			rl.mu.Unlock()
			return
		}
		if wait := time.Until(rl.blockedUntil); wait > 0 {
			rl.mu.Unlock()
			select {
			case <-time.After(wait):
			case <-rl.stop:
				return
			}
			continue
		}
		w := rl.queue[0]
		rl.queue = rl.queue[1:]
		rl.mu.Unlock()

		close(w.release)
		<-w.done
	}
}

// removeWaiter drops w from the queue if the drain has not already
// claimed it.
func (rl *RateLimiter) removeWaiter(w *waiter) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for i, q := range rl.queue {
		if q == w {
			rl.queue = append(rl.queue[:i], rl.queue[i+1:]...)
			return
		}
	}
}

// ParseRetryAfter parses a Retry-After header value, which is either an
// integer number of seconds or an HTTP-date. The second return is false
// when the value is unparsable; callers then fall back to a default.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
