package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/streamgate-io/streamgate/metrics"
)

// Bridge forwards metrics.Collector feed events to OpenTelemetry
// instruments. It subscribes to the collector feed and consumes it on a
// dedicated goroutine so instrument export cost never lands on the request
// hot path.
type Bridge struct {
	cancel func()
	done   chan struct{}
	once   sync.Once

	requests    metric.Int64Counter
	failures    metric.Int64Counter
	retries     metric.Int64Counter
	rateLimits  metric.Int64Counter
	circuitOpen metric.Int64Counter
	inactivity  metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewBridge subscribes to the collector feed and starts forwarding events
// to instruments created on the given meter. Call Stop to detach.
func NewBridge(meter metric.Meter, collector *metrics.Collector) (*Bridge, error) {
	if collector == nil {
		return nil, ErrNilCollector
	}

	b := &Bridge{done: make(chan struct{})}

	var err error
	if b.requests, err = meter.Int64Counter(
		"stream.requests.completed",
		metric.WithDescription("Completed logical streaming requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if b.failures, err = meter.Int64Counter(
		"stream.requests.failed",
		metric.WithDescription("Failed logical streaming requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if b.retries, err = meter.Int64Counter(
		"stream.retries",
		metric.WithDescription("Retry attempts scheduled"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return nil, err
	}
	if b.rateLimits, err = meter.Int64Counter(
		"stream.rate_limited",
		metric.WithDescription("Rate-limit (429) observations"),
		metric.WithUnit("{hit}"),
	); err != nil {
		return nil, err
	}
	if b.circuitOpen, err = meter.Int64Counter(
		"stream.circuit.opened",
		metric.WithDescription("Circuit breaker transitions into open"),
		metric.WithUnit("{transition}"),
	); err != nil {
		return nil, err
	}
	if b.inactivity, err = meter.Int64Counter(
		"stream.inactivity",
		metric.WithDescription("Streams that went silent past the inactivity window"),
		metric.WithUnit("{stream}"),
	); err != nil {
		return nil, err
	}
	if b.latency, err = meter.Float64Histogram(
		"stream.request.latency_ms",
		metric.WithDescription("Logical request latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	feed, cancel := collector.Subscribe()
	b.cancel = cancel

	go b.consume(feed)

	return b, nil
}

func (b *Bridge) consume(feed <-chan metrics.Event) {
	defer close(b.done)

	ctx := context.Background()
	for ev := range feed {
		switch ev.Type {
		case metrics.EventRequestSucceeded:
			b.requests.Add(ctx, 1)
			b.latency.Record(ctx, float64(ev.Latency.Milliseconds()))

		case metrics.EventRequestFailed:
			b.requests.Add(ctx, 1)
			b.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", ev.Cause)))
			b.latency.Record(ctx, float64(ev.Latency.Milliseconds()))

		case metrics.EventRetryScheduled:
			b.retries.Add(ctx, 1)

		case metrics.EventRateLimited:
			b.rateLimits.Add(ctx, 1)

		case metrics.EventCircuitTransition:
			if ev.ToState == "open" {
				b.circuitOpen.Add(ctx, 1)
			}

		case metrics.EventStreamInactivity:
			b.inactivity.Add(ctx, 1)
		}
	}
}

// Stop detaches the bridge from the collector feed and waits for the
// consumer goroutine to drain.
func (b *Bridge) Stop() {
	b.once.Do(b.cancel)
	<-b.done
}
