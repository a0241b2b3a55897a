package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streamgate-io/streamgate/auth"
	"github.com/streamgate-io/streamgate/metrics"
	"github.com/streamgate-io/streamgate/resilience"
	"github.com/streamgate-io/streamgate/stream"
)

// happyStream is a complete SSE exchange: one text run, one tool call.
const happyStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","model":"test-model"}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"tu_1","name":"begin_rendering"}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"surfaceId\":\"s1\"}"}}

event: content_block_stop
data: {"type":"content_block_stop","index":1}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"tool_use"}}

event: message_stop
data: {"type":"message_stop"}

`

func sseHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	transport := NewHTTPTransport(auth.NewAPIKey("sk-test"), WithBaseURL(server.URL))
	c, err := New(transport, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func collect(t *testing.T, ch <-chan stream.Message) []stream.Message {
	t.Helper()
	var msgs []stream.Message
	timeout := time.After(10 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		case <-timeout:
			t.Fatalf("stream did not terminate; got so far: %v", msgs)
		}
	}
}

func fastRetry(t *testing.T, attempts int) *resilience.RetryPolicy {
	t.Helper()
	p, err := resilience.NewRetryPolicy(resilience.RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewRetryPolicy() error = %v", err)
	}
	return p
}

func TestClient_StreamHappyPath(t *testing.T) {
	server := httptest.NewServer(sseHandler(happyStream))
	defer server.Close()

	collector := metrics.NewCollector(metrics.DefaultConfig())
	defer collector.Close()

	c := newTestClient(t, server,
		WithDispatch(stream.Dispatch{"begin_rendering": stream.ActionInvoke}),
		WithCollector(collector),
	)

	msgs := collect(t, c.Stream(context.Background(), Request{Model: "test-model"}))

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3: %v", len(msgs), msgs)
	}
	if td, ok := msgs[0].(stream.TextDelta); !ok || td.Text != "Hello" {
		t.Errorf("message 0 = %#v, want TextDelta{Hello}", msgs[0])
	}
	inv, ok := msgs[1].(stream.ToolInvocation)
	if !ok || inv.Name != "begin_rendering" {
		t.Errorf("message 1 = %#v, want ToolInvocation{begin_rendering}", msgs[1])
	}
	if string(inv.Arguments) != `{"surfaceId":"s1"}` {
		t.Errorf("Arguments = %s", inv.Arguments)
	}
	if cm, ok := msgs[2].(stream.Complete); !ok || cm.StopReason != "tool_use" {
		t.Errorf("message 2 = %#v, want Complete{tool_use}", msgs[2])
	}

	snap := collector.Stats()
	if snap.SuccessfulRequests != 1 || snap.FailedRequests != 0 {
		t.Errorf("snapshot = %+v, want one success", snap)
	}
}

func TestClient_RetriesServerFailure(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"type":"api_error","message":"boom"}}`)
			return
		}
		sseHandler(happyStream)(w, r)
	}))
	defer server.Close()

	collector := metrics.NewCollector(metrics.DefaultConfig())
	defer collector.Close()

	c := newTestClient(t, server,
		WithRetryPolicy(fastRetry(t, 3)),
		WithCollector(collector),
	)

	msgs := collect(t, c.Stream(context.Background(), Request{Model: "test-model"}))

	if _, ok := msgs[len(msgs)-1].(stream.Complete); !ok {
		t.Fatalf("terminal = %#v, want Complete after retry", msgs[len(msgs)-1])
	}
	if calls.Load() != 2 {
		t.Errorf("HTTP calls = %d, want 2", calls.Load())
	}
	if snap := collector.Stats(); snap.TotalRetries != 1 {
		t.Errorf("TotalRetries = %d, want 1", snap.TotalRetries)
	}
}

func TestClient_AuthFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"authentication_error","message":"bad key"}}`)
	}))
	defer server.Close()

	c := newTestClient(t, server, WithRetryPolicy(fastRetry(t, 3)))

	msgs := collect(t, c.Stream(context.Background(), Request{Model: "test-model"}))

	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 terminal: %v", len(msgs), msgs)
	}
	failed, ok := msgs[0].(stream.Failed)
	if !ok {
		t.Fatalf("terminal = %#v, want Failed", msgs[0])
	}
	if !errors.Is(failed.Cause, resilience.ErrAuth) {
		t.Errorf("Cause = %v, want auth failure", failed.Cause)
	}
	if calls.Load() != 1 {
		t.Errorf("HTTP calls = %d, want 1", calls.Load())
	}
}

func TestClient_RateLimitFeedsLimiter(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"type":"rate_limit_error","message":"slow down"}}`)
			return
		}
		sseHandler(happyStream)(w, r)
	}))
	defer server.Close()

	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{DefaultBackoff: time.Millisecond})
	defer limiter.Dispose()

	collector := metrics.NewCollector(metrics.DefaultConfig())
	defer collector.Close()

	c := newTestClient(t, server,
		WithRetryPolicy(fastRetry(t, 3)),
		WithRateLimiter(limiter),
		WithCollector(collector),
	)

	msgs := collect(t, c.Stream(context.Background(), Request{Model: "test-model"}))

	if _, ok := msgs[len(msgs)-1].(stream.Complete); !ok {
		t.Fatalf("terminal = %#v, want Complete after rate limit", msgs[len(msgs)-1])
	}
	if snap := collector.Stats(); snap.RateLimitHits != 1 {
		t.Errorf("RateLimitHits = %d, want 1", snap.RateLimitHits)
	}
}

func TestClient_CircuitOpenShortCircuits(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
	})
	breaker.RecordFailure() // circuit already open

	c := newTestClient(t, server,
		WithCircuitBreaker(breaker),
		WithRetryPolicy(fastRetry(t, -1)), // retries disabled
	)

	msgs := collect(t, c.Stream(context.Background(), Request{Model: "test-model"}))

	failed, ok := msgs[len(msgs)-1].(stream.Failed)
	if !ok {
		t.Fatalf("terminal = %#v, want Failed", msgs[len(msgs)-1])
	}
	if !errors.Is(failed.Cause, resilience.ErrCircuitOpen) {
		t.Errorf("Cause = %v, want ErrCircuitOpen", failed.Cause)
	}
	if calls.Load() != 0 {
		t.Errorf("HTTP calls = %d, want 0 (short-circuit before network)", calls.Load())
	}
}

func TestClient_InactivityTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\"}}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done() // stall forever
	}))
	defer server.Close()

	collector := metrics.NewCollector(metrics.DefaultConfig())
	defer collector.Close()

	c := newTestClient(t, server,
		WithRetryPolicy(fastRetry(t, -1)),
		WithInactivityWindow(50*time.Millisecond),
		WithCollector(collector),
	)

	msgs := collect(t, c.Stream(context.Background(), Request{Model: "test-model"}))

	failed, ok := msgs[len(msgs)-1].(stream.Failed)
	if !ok {
		t.Fatalf("terminal = %#v, want Failed", msgs[len(msgs)-1])
	}
	if !errors.Is(failed.Cause, resilience.ErrTimeout) {
		t.Errorf("Cause = %v, want timeout", failed.Cause)
	}
	if snap := collector.Stats(); snap.StreamInactivity != 1 {
		t.Errorf("StreamInactivity = %d, want 1", snap.StreamInactivity)
	}
}

func TestClient_ServerErrorEventAfterTextIsTerminal(t *testing.T) {
	var calls atomic.Int64
	body := `event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"partial"}}

event: error
data: {"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}

`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		sseHandler(body)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server, WithRetryPolicy(fastRetry(t, 3)))

	msgs := collect(t, c.Stream(context.Background(), Request{Model: "test-model"}))

	// Text reached the caller, so a retry would replay it; the failure
	// must be terminal on the first attempt.
	if calls.Load() != 1 {
		t.Errorf("HTTP calls = %d, want 1", calls.Load())
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want text + terminal: %v", len(msgs), msgs)
	}
	if td, ok := msgs[0].(stream.TextDelta); !ok || td.Text != "partial" {
		t.Errorf("message 0 = %#v", msgs[0])
	}
	failed, ok := msgs[1].(stream.Failed)
	if !ok || !errors.Is(failed.Cause, resilience.ErrServer) {
		t.Errorf("terminal = %#v, want Failed with server cause", msgs[1])
	}
}

func TestClient_ConnectionDropBeforeOutputIsRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Truncated stream: no terminal event.
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"m\"}}\n\n")
			return
		}
		sseHandler(happyStream)(w, r)
	}))
	defer server.Close()

	c := newTestClient(t, server, WithRetryPolicy(fastRetry(t, 3)))

	msgs := collect(t, c.Stream(context.Background(), Request{Model: "test-model"}))

	if _, ok := msgs[len(msgs)-1].(stream.Complete); !ok {
		t.Fatalf("terminal = %#v, want Complete after reconnect", msgs[len(msgs)-1])
	}
	if calls.Load() != 2 {
		t.Errorf("HTTP calls = %d, want 2", calls.Load())
	}
}

func TestClient_CancellationProducesFailedTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	c := newTestClient(t, server, WithRetryPolicy(fastRetry(t, -1)))

	ctx, cancel := context.WithCancel(context.Background())
	ch := c.Stream(ctx, Request{Model: "test-model"})

	time.Sleep(20 * time.Millisecond)
	cancel()

	msgs := collect(t, ch)
	if len(msgs) == 0 {
		t.Fatal("channel closed without a terminal message")
	}
	if _, ok := msgs[len(msgs)-1].(stream.Failed); !ok {
		t.Errorf("terminal = %#v, want Failed on cancellation", msgs[len(msgs)-1])
	}
}
