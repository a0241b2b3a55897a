package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Sentinel errors, one per failure kind, usable with errors.Is.
var (
	// ErrNetwork indicates a transport-level network failure.
	ErrNetwork = errors.New("resilience: network failure")

	// ErrTimeout indicates an operation or stream timed out.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrAuth indicates the downstream rejected the credentials.
	ErrAuth = errors.New("resilience: authentication failed")

	// ErrRateLimited indicates the downstream returned HTTP 429.
	ErrRateLimited = errors.New("resilience: rate limited")

	// ErrValidation indicates a malformed or rejected request.
	ErrValidation = errors.New("resilience: request validation failed")

	// ErrServer indicates a downstream 5xx failure.
	ErrServer = errors.New("resilience: server failure")

	// ErrDecode indicates the response stream could not be decoded.
	ErrDecode = errors.New("resilience: stream decode failure")

	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrLimiterDisposed is returned to callers still queued when a rate
	// limiter is disposed.
	ErrLimiterDisposed = errors.New("resilience: rate limiter disposed")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")
)

// Kind classifies a failure for retry decisions and user-facing messaging.
type Kind int

const (
	// KindUnknown is an unclassified failure; never retried.
	KindUnknown Kind = iota
	// KindNetwork is a transport-level failure; retryable.
	KindNetwork
	// KindTimeout is a timeout or stream stall; retryable.
	KindTimeout
	// KindAuth is an authentication failure; not retryable.
	KindAuth
	// KindRateLimited is an HTTP 429; retryable, carries a suggested delay.
	KindRateLimited
	// KindValidation is a malformed-request rejection; not retryable.
	KindValidation
	// KindServer is a downstream 5xx; retryable.
	KindServer
	// KindDecode is a malformed response stream; not retryable.
	KindDecode
	// KindCircuitOpen means the breaker short-circuited the attempt;
	// retryable, carries the recovery timestamp.
	KindCircuitOpen
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind are transient.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindRateLimited, KindServer, KindCircuitOpen:
		return true
	default:
		return false
	}
}

// Message returns the sanitized, user-presentable message for this kind.
// Callers surface this instead of raw transport text.
func (k Kind) Message() string {
	switch k {
	case KindNetwork:
		return "network failure while contacting the model service"
	case KindTimeout:
		return "the model service stopped responding"
	case KindAuth:
		return "authentication with the model service failed"
	case KindRateLimited:
		return "the model service is rate limiting requests"
	case KindValidation:
		return "the request was rejected as invalid"
	case KindServer:
		return "the model service reported an internal error"
	case KindDecode:
		return "the response stream could not be decoded"
	case KindCircuitOpen:
		return "the model service is temporarily unavailable"
	default:
		return "the request failed"
	}
}

// sentinel returns the sentinel error for this kind.
func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindTimeout:
		return ErrTimeout
	case KindAuth:
		return ErrAuth
	case KindRateLimited:
		return ErrRateLimited
	case KindValidation:
		return ErrValidation
	case KindServer:
		return ErrServer
	case KindDecode:
		return ErrDecode
	case KindCircuitOpen:
		return ErrCircuitOpen
	default:
		return nil
	}
}

// Error is a classified failure. It unwraps both to its kind's sentinel
// (for errors.Is checks) and to the underlying cause (for logs).
type Error struct {
	Kind       Kind
	StatusCode int           // HTTP status, when the failure came from a response
	RetryAfter time.Duration // suggested delay, set for KindRateLimited
	RecoverAt  time.Time     // breaker recovery time, set for KindCircuitOpen
	Err        error         // underlying cause; never shown to end users
}

// NewError creates a classified failure wrapping cause.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Kind.Message(), e.StatusCode)
	}
	return e.Kind.Message()
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// FromStatus classifies a non-success HTTP status code. retryAfter applies
// only to 429 responses; pass 0 when the header was absent or unparsable.
func FromStatus(status int, retryAfter time.Duration) *Error {
	e := &Error{StatusCode: status}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = retryAfter
	case status == http.StatusRequestTimeout:
		e.Kind = KindTimeout
	case status >= 500:
		e.Kind = KindServer
	case status >= 400:
		e.Kind = KindValidation
	default:
		e.Kind = KindUnknown
	}
	return e
}

// RetryableError is the explicit opt-in for domain error types that know
// their own transience.
type RetryableError interface {
	error
	Retryable() bool
}

// KindOf extracts the failure kind from err, classifying common transport
// errors when err is not already an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		// Connection dropped mid-stream.
		return KindNetwork
	}
	return KindUnknown
}

// Retryable reports whether err is transient. Cancellation is never
// retryable: the caller asked to stop.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return KindOf(err).Retryable()
}
