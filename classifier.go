package resilienthttp

import (
	"context"
	"errors"
	"net/http"

	pkgerrors "github.com/JohnPlummer/jp-go-errors"
)

// ErrorClassifier determines whether an error should trigger a retry.
// Implement this interface to customize retry behavior for your specific
// error types.
type ErrorClassifier interface {
	// IsRetryable returns true if the error represents a transient failure
	// that should be retried.
	IsRetryable(err error) bool
}

// CircuitBreakerErrorClassifier determines whether an error should trip the
// circuit breaker.
type CircuitBreakerErrorClassifier interface {
	// ShouldTripCircuit returns true if the error represents a failure
	// serious enough to open the circuit breaker and stop requests
	// temporarily.
	ShouldTripCircuit(err error) bool
}

// IsTransient is the pure transient-fault predicate over a call outcome.
// An outcome is transient when the transport failed outright (connection
// refused, DNS failure, anything that prevented a response from arriving),
// or when a response arrived with a server-error status (500-599)
// or 408 Request Timeout. Cancellation is never transient: it propagates as
// cancellation, not as a retriable fault. Every other received status,
// including 4xx other than 408, is non-transient.
func IsTransient(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	if resp == nil {
		return false
	}
	return isTransientStatus(resp.StatusCode)
}

// isTransientStatus reports whether a received status code counts as a
// transient fault: 5xx or 408.
func isTransientStatus(status int) bool {
	return (status >= 500 && status <= 599) || status == http.StatusRequestTimeout
}

// HTTPStatusClassifier provides HTTP status code-based error classification
// for the generic strategies, which only see errors. It classifies errors
// carrying a status code as retryable or circuit-tripping.
type HTTPStatusClassifier struct {
	// RetryableStatuses lists HTTP status codes that should trigger retries.
	// Defaults to 408 and 500-599 (the transient-fault set) if nil.
	RetryableStatuses []int

	// CircuitTripStatuses lists HTTP status codes that should trip the
	// circuit breaker. Defaults to 401, 403, 500, 502, 503, 504 if nil.
	CircuitTripStatuses []int
}

// HTTPError represents an error with an associated HTTP status code.
// Many HTTP client libraries provide errors that implement this interface.
type HTTPError interface {
	error
	StatusCode() int
}

// NewHTTPStatusClassifier creates a classifier with the default mappings:
// retryable on any transient status (408, 5xx), circuit trip on auth errors
// (401, 403) and persistent server errors.
func NewHTTPStatusClassifier() *HTTPStatusClassifier {
	return &HTTPStatusClassifier{
		CircuitTripStatuses: []int{401, 403, 500, 502, 503, 504},
	}
}

// IsRetryable implements ErrorClassifier for HTTP status codes.
func (c *HTTPStatusClassifier) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation is never retryable - retrying with the same context
	// would fail immediately. Check before other timeout checks, since
	// context.DeadlineExceeded also satisfies generic timeout checkers.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, pkgerrors.ErrRateLimited) {
		return true
	}
	if pkgerrors.IsTimeout(err) {
		return true
	}

	statusCode := extractStatusCode(err)
	if statusCode == 0 {
		// No status means the transport failed before a response arrived;
		// that is the transient case by definition.
		return true
	}

	if c.RetryableStatuses != nil {
		return containsStatus(c.RetryableStatuses, statusCode)
	}
	return isTransientStatus(statusCode)
}

// ShouldTripCircuit implements CircuitBreakerErrorClassifier for HTTP status
// codes.
func (c *HTTPStatusClassifier) ShouldTripCircuit(err error) bool {
	if err == nil {
		return false
	}

	// Rate limits, timeouts and cancellation should NOT trip the circuit.
	if errors.Is(err, pkgerrors.ErrRateLimited) {
		return false
	}
	if pkgerrors.IsTimeout(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	statusCode := extractStatusCode(err)
	if statusCode == 0 {
		// Unknown errors should trip the circuit to be safe.
		return true
	}

	return containsStatus(c.getCircuitTripStatuses(), statusCode)
}

func (c *HTTPStatusClassifier) getCircuitTripStatuses() []int {
	if c.CircuitTripStatuses != nil {
		return c.CircuitTripStatuses
	}
	return []int{401, 403, 500, 502, 503, 504}
}

// extractStatusCode attempts to extract an HTTP status code from an error.
func extractStatusCode(err error) int {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode()
	}
	return 0
}

func containsStatus(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// DefaultErrorClassifier provides reasonable defaults for most use cases:
// transient statuses (408, 5xx), network errors, timeouts and rate limits
// are retryable.
func DefaultErrorClassifier() ErrorClassifier {
	return NewHTTPStatusClassifier()
}

// DefaultCircuitBreakerErrorClassifier trips on authentication errors
// (401, 403) and server errors, but not on rate limits or timeouts.
func DefaultCircuitBreakerErrorClassifier() CircuitBreakerErrorClassifier {
	return NewHTTPStatusClassifier()
}

// StatusCodeError wraps an error with an HTTP status code.
// Use this when you need to add status code information to an existing error.
type StatusCodeError struct {
	Err  error
	Code int
}

// Error implements the error interface.
func (e *StatusCodeError) Error() string {
	return e.Err.Error()
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *StatusCodeError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code. This implements the HTTPError
// interface.
func (e *StatusCodeError) StatusCode() int {
	return e.Code
}

// NewStatusCodeError creates a new StatusCodeError.
func NewStatusCodeError(statusCode int, err error) error {
	return &StatusCodeError{
		Code: statusCode,
		Err:  err,
	}
}
