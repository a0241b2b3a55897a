package metrics

import (
	"sort"
	"sync"
	"time"
)

// Config configures the Collector.
type Config struct {
	// Enabled turns recording on. When false every record call is a no-op.
	Enabled bool

	// AggregationEnabled turns counter and latency-sample aggregation on.
	// Events are still published to the feed when aggregation is off.
	AggregationEnabled bool

	// SampleWindow is the number of latency samples retained for
	// percentile computation. Oldest samples are evicted first.
	// Default: 512
	SampleWindow int

	// SubscriberBuffer is the channel buffer per feed subscriber.
	// Default: 64
	SubscriberBuffer int
}

// DefaultConfig returns the default collector configuration with recording
// and aggregation enabled.
func DefaultConfig() Config {
	return Config{Enabled: true, AggregationEnabled: true}
}

// Snapshot is an immutable point-in-time view of the aggregated metrics.
// Safe to read concurrently after creation.
type Snapshot struct {
	TotalRequests      int64
	ActiveRequests     int64
	SuccessfulRequests int64
	FailedRequests     int64
	TotalRetries       int64
	RateLimitHits      int64
	CircuitOpens       int64
	StreamInactivity   int64

	// SuccessRate is successful/(successful+failed)*100, or 100.0 when no
	// request has completed yet.
	SuccessRate float64

	AvgLatency time.Duration
	P50Latency time.Duration
	P95Latency time.Duration
	P99Latency time.Duration
}

// Collector aggregates streaming request metrics and broadcasts a live
// event feed. Safe for concurrent use; all record methods are nil-receiver
// safe so optional wiring stays uncluttered.
type Collector struct {
	cfg Config

	mu               sync.Mutex
	total            int64
	active           int64
	succeeded        int64
	failed           int64
	retries          int64
	rateLimitHits    int64
	circuitOpens     int64
	streamInactivity int64

	latencySum time.Duration
	samples    []time.Duration // ring buffer
	next       int
	count      int

	feed *feed
}

// NewCollector creates a Collector.
func NewCollector(cfg Config) *Collector {
	if cfg.SampleWindow <= 0 {
		cfg.SampleWindow = 512
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 64
	}

	return &Collector{
		cfg:     cfg,
		samples: make([]time.Duration, cfg.SampleWindow),
		feed:    newFeed(cfg.SubscriberBuffer),
	}
}

// RecordRequestStart records the start of a logical request.
func (c *Collector) RecordRequestStart(requestID string) {
	if c == nil || !c.cfg.Enabled {
		return
	}
	if c.cfg.AggregationEnabled {
		c.mu.Lock()
		c.total++
		c.active++
		c.mu.Unlock()
	}
	c.feed.publish(Event{Type: EventRequestStarted, RequestID: requestID, Time: time.Now()})
}

// RecordRequestSuccess records a request that completed normally.
func (c *Collector) RecordRequestSuccess(requestID string, latency time.Duration, retries int) {
	if c == nil || !c.cfg.Enabled {
		return
	}
	if c.cfg.AggregationEnabled {
		c.mu.Lock()
		c.succeeded++
		if c.active > 0 {
			c.active--
		}
		c.addSampleLocked(latency)
		c.mu.Unlock()
	}
	c.feed.publish(Event{
		Type:      EventRequestSucceeded,
		RequestID: requestID,
		Time:      time.Now(),
		Latency:   latency,
		Retries:   retries,
	})
}

// RecordRequestFailure records a request that exhausted its attempts.
// cause should be the sanitized failure kind, not raw transport text.
func (c *Collector) RecordRequestFailure(requestID string, latency time.Duration, retries int, cause string) {
	if c == nil || !c.cfg.Enabled {
		return
	}
	if c.cfg.AggregationEnabled {
		c.mu.Lock()
		c.failed++
		if c.active > 0 {
			c.active--
		}
		c.addSampleLocked(latency)
		c.mu.Unlock()
	}
	c.feed.publish(Event{
		Type:      EventRequestFailed,
		RequestID: requestID,
		Time:      time.Now(),
		Latency:   latency,
		Retries:   retries,
		Cause:     cause,
	})
}

// RecordRetry records a retry attempt being scheduled after a delay.
func (c *Collector) RecordRetry(requestID string, attempt int, delay time.Duration) {
	if c == nil || !c.cfg.Enabled {
		return
	}
	if c.cfg.AggregationEnabled {
		c.mu.Lock()
		c.retries++
		c.mu.Unlock()
	}
	c.feed.publish(Event{
		Type:      EventRetryScheduled,
		RequestID: requestID,
		Time:      time.Now(),
		Attempt:   attempt,
		Delay:     delay,
	})
}

// RecordRateLimit records a 429 observation with the applied backoff.
func (c *Collector) RecordRateLimit(requestID string, wait time.Duration) {
	if c == nil || !c.cfg.Enabled {
		return
	}
	if c.cfg.AggregationEnabled {
		c.mu.Lock()
		c.rateLimitHits++
		c.mu.Unlock()
	}
	c.feed.publish(Event{
		Type:      EventRateLimited,
		RequestID: requestID,
		Time:      time.Now(),
		Delay:     wait,
	})
}

// RecordCircuitTransition records a circuit breaker state change.
// Transitions into the open state also increment the circuit-opens counter,
// which is what external alerting keys on.
func (c *Collector) RecordCircuitTransition(from, to string, failures int) {
	if c == nil || !c.cfg.Enabled {
		return
	}
	if c.cfg.AggregationEnabled && to == "open" {
		c.mu.Lock()
		c.circuitOpens++
		c.mu.Unlock()
	}
	c.feed.publish(Event{
		Type:      EventCircuitTransition,
		Time:      time.Now(),
		FromState: from,
		ToState:   to,
		Failures:  failures,
	})
}

// RecordStreamInactivity records a stream going silent past the inactivity
// window.
func (c *Collector) RecordStreamInactivity(requestID string) {
	if c == nil || !c.cfg.Enabled {
		return
	}
	if c.cfg.AggregationEnabled {
		c.mu.Lock()
		c.streamInactivity++
		c.mu.Unlock()
	}
	c.feed.publish(Event{Type: EventStreamInactivity, RequestID: requestID, Time: time.Now()})
}

// addSampleLocked appends a latency sample to the ring, evicting the oldest
// when full, and maintains the running sum for the average.
func (c *Collector) addSampleLocked(latency time.Duration) {
	if c.count == len(c.samples) {
		c.latencySum -= c.samples[c.next]
	} else {
		c.count++
	}
	c.samples[c.next] = latency
	c.latencySum += latency
	c.next = (c.next + 1) % len(c.samples)
}

// Stats returns an immutable snapshot of the aggregated metrics. Counters
// are O(1); percentiles are computed over the retained sample window.
func (c *Collector) Stats() Snapshot {
	if c == nil {
		return Snapshot{SuccessRate: 100.0}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		TotalRequests:      c.total,
		ActiveRequests:     c.active,
		SuccessfulRequests: c.succeeded,
		FailedRequests:     c.failed,
		TotalRetries:       c.retries,
		RateLimitHits:      c.rateLimitHits,
		CircuitOpens:       c.circuitOpens,
		StreamInactivity:   c.streamInactivity,
		SuccessRate:        100.0,
	}

	if completed := c.succeeded + c.failed; completed > 0 {
		s.SuccessRate = float64(c.succeeded) / float64(completed) * 100.0
	}

	if c.count > 0 {
		s.AvgLatency = c.latencySum / time.Duration(c.count)

		sorted := make([]time.Duration, c.count)
		if c.count == len(c.samples) {
			copy(sorted, c.samples)
		} else {
			copy(sorted, c.samples[:c.count])
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		s.P50Latency = percentile(sorted, 0.50)
		s.P95Latency = percentile(sorted, 0.95)
		s.P99Latency = percentile(sorted, 0.99)
	}

	return s
}

// percentile interpolates the q-th percentile over sorted samples.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := q * float64(len(sorted)-1)
	lower := int(pos)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	return sorted[lower] + time.Duration(frac*float64(sorted[lower+1]-sorted[lower]))
}

// ResetStats zeroes all counters and clears the sample buffer. Existing feed
// subscribers are unaffected.
func (c *Collector) ResetStats() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total = 0
	c.active = 0
	c.succeeded = 0
	c.failed = 0
	c.retries = 0
	c.rateLimitHits = 0
	c.circuitOpens = 0
	c.streamInactivity = 0
	c.latencySum = 0
	c.next = 0
	c.count = 0
}

// Subscribe registers a feed subscriber and returns its channel together
// with a cancel function. Events are dropped for a subscriber whose buffer
// is full.
func (c *Collector) Subscribe() (<-chan Event, func()) {
	return c.feed.subscribe()
}

// Close terminates the feed and closes all subscriber channels. Record
// calls after Close still update aggregates but publish nothing.
func (c *Collector) Close() {
	if c == nil {
		return
	}
	c.feed.close()
}
