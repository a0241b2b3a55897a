package client

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/streamgate-io/streamgate/metrics"
	"github.com/streamgate-io/streamgate/observe"
	"github.com/streamgate-io/streamgate/resilience"
	"github.com/streamgate-io/streamgate/stream"
	"github.com/streamgate-io/streamgate/wire"
)

// Client is the resilient request executor. Every request runs through
// the circuit breaker, bulkhead, and rate limiter; failed attempts are
// classified and retried per the retry policy; each attempt decodes a
// fresh event stream under an inactivity watchdog.
type Client struct {
	transport Transport
	breaker   *resilience.CircuitBreaker
	retry     *resilience.RetryPolicy
	limiter   *resilience.RateLimiter
	bulkhead  *resilience.Bulkhead
	collector *metrics.Collector
	logger    observe.Logger
	tracer    observe.Tracer
	om        observe.Metrics
	dispatch  stream.Dispatch

	inactivityWindow time.Duration
	endpoint         string
}

// Option configures a Client.
type Option func(*Client)

// WithCircuitBreaker sets a breaker, typically shared across clients so
// callers observe the downstream's health collectively.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p *resilience.RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithRateLimiter sets a rate limiter, typically shared.
func WithRateLimiter(rl *resilience.RateLimiter) Option {
	return func(c *Client) { c.limiter = rl }
}

// WithBulkhead caps concurrent streams.
func WithBulkhead(b *resilience.Bulkhead) Option {
	return func(c *Client) { c.bulkhead = b }
}

// WithCollector sets the metrics collector. A nil collector disables
// metric recording.
func WithCollector(mc *metrics.Collector) Option {
	return func(c *Client) { c.collector = mc }
}

// WithLogger sets the structured logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracer sets the request tracer.
func WithTracer(t observe.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithObserveMetrics sets the OpenTelemetry request metrics.
func WithObserveMetrics(m observe.Metrics) Option {
	return func(c *Client) { c.om = m }
}

// WithDispatch sets the tool dispatch table.
func WithDispatch(d stream.Dispatch) Option {
	return func(c *Client) { c.dispatch = d }
}

// WithInactivityWindow sets the stream-stall watchdog window. Zero
// disables the watchdog.
func WithInactivityWindow(w time.Duration) Option {
	return func(c *Client) { c.inactivityWindow = w }
}

// New creates a Client over transport. Resilience components not supplied
// via options are created with their defaults; the collector defaults to
// disabled (nil).
func New(transport Transport, opts ...Option) (*Client, error) {
	retry, err := resilience.NewRetryPolicy(resilience.RetryConfig{})
	if err != nil {
		return nil, err
	}

	c := &Client{
		transport:        transport,
		breaker:          resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{}),
		retry:            retry,
		limiter:          resilience.NewRateLimiter(resilience.RateLimiterConfig{}),
		bulkhead:         resilience.NewBulkhead(resilience.BulkheadConfig{}),
		logger:           observe.NewNopLogger(),
		tracer:           observe.NewNopTracer(),
		om:               observe.NewNopMetrics(),
		inactivityWindow: 60 * time.Second,
		endpoint:         "anthropic",
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BreakerTransitionHook adapts a collector into a circuit-breaker state
// change callback, so transitions show up in the metrics feed.
func BreakerTransitionHook(mc *metrics.Collector) func(from, to resilience.State, failures int) {
	return func(from, to resilience.State, failures int) {
		mc.RecordCircuitTransition(from.String(), to.String(), failures)
	}
}

// Stream executes req and returns the decoded message channel. The
// channel always carries exactly one terminal message — Complete or
// Failed — and is then closed. Cancelling ctx aborts the request and the
// terminal is a Failed carrying the cancellation.
func (c *Client) Stream(ctx context.Context, req Request) <-chan stream.Message {
	out := make(chan stream.Message, 16)
	go c.run(ctx, req, out)
	return out
}

func (c *Client) run(ctx context.Context, req Request, out chan<- stream.Message) {
	defer close(out)

	meta := observe.RequestMeta{
		ID:       uuid.NewString(),
		Model:    req.Model,
		Endpoint: c.endpoint,
	}
	logger := c.logger.WithRequest(meta)

	ctx, span := c.tracer.StartSpan(ctx, meta)

	start := time.Now()
	c.collector.RecordRequestStart(meta.ID)

	retries := 0
	var finalErr error

	for {
		attemptErr, forwarded := c.attempt(ctx, req, meta, logger, out)
		if attemptErr == nil {
			c.collector.RecordRequestSuccess(meta.ID, time.Since(start), retries)
			c.om.RecordRequest(ctx, meta, time.Since(start), retries, nil)
			c.tracer.EndSpan(span, nil)
			return
		}

		c.observeFailure(meta, attemptErr)

		// Text already delivered to the caller cannot be unsent; a retry
		// would replay it. The attempt becomes terminal instead.
		if forwarded || !c.retry.ShouldRetry(attemptErr, retries) {
			finalErr = attemptErr
			break
		}

		delay := c.retry.DelayForAttempt(retries)
		var e *resilience.Error
		if errors.As(attemptErr, &e) && e.RetryAfter > delay {
			delay = e.RetryAfter
		}

		retries++
		c.collector.RecordRetry(meta.ID, retries, delay)
		logger.Warn(ctx, "retrying after failed attempt",
			observe.Field{Key: "attempt", Value: retries},
			observe.Field{Key: "delay", Value: delay.String()},
			observe.Field{Key: "cause", Value: resilience.KindOf(attemptErr).String()})

		select {
		case <-ctx.Done():
			finalErr = ctx.Err()
		case <-time.After(delay):
			continue
		}
		break
	}

	cause := classify(finalErr)
	c.collector.RecordRequestFailure(meta.ID, time.Since(start), retries, resilience.KindOf(cause).String())
	c.om.RecordRequest(ctx, meta, time.Since(start), retries, cause)
	c.tracer.EndSpan(span, cause)
	logger.Error(ctx, "request failed",
		observe.Field{Key: "retries", Value: retries},
		observe.Field{Key: "cause", Value: cause.Error()})

	select {
	case out <- stream.Failed{Cause: cause}:
	case <-time.After(5 * time.Second):
		// Nobody is reading; the buffered channel is full and closed next.
	}
}

// attempt runs one network attempt. forwarded reports whether any
// non-terminal message reached the caller, which makes a retry unsafe.
func (c *Client) attempt(ctx context.Context, req Request, meta observe.RequestMeta, logger observe.Logger, out chan<- stream.Message) (err error, forwarded bool) {
	if cbErr := c.breaker.CheckState(); cbErr != nil {
		return cbErr, false
	}

	release, err := c.bulkhead.Acquire(ctx)
	if err != nil {
		return err, false
	}
	defer release()

	err = c.limiter.Execute(ctx, func(ctx context.Context) error {
		var streamErr error
		streamErr, forwarded = c.streamOnce(ctx, req, meta, logger, out)
		return streamErr
	})

	switch {
	case err == nil:
		c.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled), errors.Is(err, resilience.ErrLimiterDisposed):
		// Not a statement about downstream health.
	default:
		c.breaker.RecordFailure()
	}
	return err, forwarded
}

// streamOnce opens the transport and decodes events until a terminal
// condition: Complete (nil error), a classified failure, a stalled
// stream, or caller cancellation.
func (c *Client) streamOnce(ctx context.Context, req Request, meta observe.RequestMeta, logger observe.Logger, out chan<- stream.Message) (err error, forwarded bool) {
	body, err := c.transport.Open(ctx, req)
	if err != nil {
		return err, false
	}
	defer body.Close()

	decoder := stream.NewDecoder(c.dispatch, logger)
	reader := wire.NewReader(body)

	watchdog := resilience.NewInactivityTimer(c.inactivityWindow)
	defer watchdog.Stop()

	type readResult struct {
		ev  wire.Event
		err error
	}
	results := make(chan readResult)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			ev, rerr := reader.Next()
			select {
			case results <- readResult{ev, rerr}:
			case <-done:
				return
			}
			if rerr != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err(), forwarded

		case <-watchdog.C():
			c.collector.RecordStreamInactivity(meta.ID)
			logger.Warn(ctx, "stream inactivity window elapsed")
			return resilience.NewError(resilience.KindTimeout, errors.New("no stream activity within window")), forwarded

		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					// Stream ended without a message_stop.
					return resilience.NewError(resilience.KindNetwork, io.ErrUnexpectedEOF), forwarded
				}
				kind := resilience.KindOf(r.err)
				if kind == resilience.KindUnknown {
					kind = resilience.KindDecode
				}
				return resilience.NewError(kind, r.err), forwarded
			}
			watchdog.Touch()
			if r.ev == nil {
				continue
			}

			for _, msg := range decoder.Feed(r.ev) {
				switch m := msg.(type) {
				case stream.Failed:
					// Server-reported failure; the outer loop decides
					// whether it is retryable.
					return m.Cause, forwarded
				case stream.Complete:
					if serr := send(ctx, out, m); serr != nil {
						return serr, forwarded
					}
					return nil, forwarded
				default:
					if serr := send(ctx, out, msg); serr != nil {
						return serr, forwarded
					}
					forwarded = true
				}
			}
		}
	}
}

// observeFailure records side effects of a failed attempt that are not
// retry decisions: 429s feed the rate limiter and a rate-limit metric.
func (c *Client) observeFailure(meta observe.RequestMeta, err error) {
	var e *resilience.Error
	if errors.As(err, &e) && e.Kind == resilience.KindRateLimited {
		c.limiter.RecordRateLimit(e.StatusCode, e.RetryAfter)
		c.collector.RecordRateLimit(meta.ID, e.RetryAfter)
	}
}

// classify guarantees the terminal cause is a classified *Error with a
// sanitized message.
func classify(err error) error {
	if err == nil {
		err = errors.New("request aborted")
	}
	var e *resilience.Error
	if errors.As(err, &e) {
		return e
	}
	return resilience.NewError(resilience.KindOf(err), err)
}

func send(ctx context.Context, out chan<- stream.Message, msg stream.Message) error {
	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
