package resilienthttp

import (
	"context"
	"errors"
	"log/slog"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerStrategy executes operations through a circuit breaker. It
// tracks failures and opens the circuit when too many occur, rejecting
// operations immediately instead of letting them reach a failing downstream
// service.
type CircuitBreakerStrategy[T any] struct {
	cb         *gobreaker.CircuitBreaker[T]
	logger     *slog.Logger
	classifier CircuitBreakerErrorClassifier
}

// NewCircuitBreakerStrategy creates a circuit breaker strategy with the
// provided options.
//
// Example:
//
//	strategy := resilienthttp.NewCircuitBreakerStrategy[*http.Response](
//	    resilienthttp.WithMaxRequests(5),
//	    resilienthttp.WithTimeout(60*time.Second),
//	)
func NewCircuitBreakerStrategy[T any](opts ...CircuitBreakerOption) *CircuitBreakerStrategy[T] {
	config := DefaultCircuitBreakerConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultCircuitBreakerErrorClassifier()
	}

	classifier := config.ErrorClassifier

	name := config.Name
	if name == "" {
		name = "resilient-dispatcher"
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			internalCounts := CircuitBreakerCounts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			}
			return config.ReadyToTrip(internalCounts)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			config.Logger.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())

			if config.OnStateChange != nil {
				fromState := convertGobreakerState(from)
				toState := convertGobreakerState(to)
				config.OnStateChange(name, fromState, toState)
			}
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}

			// Errors that should not trip the circuit do not count as
			// failures.
			return !classifier.ShouldTripCircuit(err)
		},
	}

	return &CircuitBreakerStrategy[T]{
		cb:         gobreaker.NewCircuitBreaker[T](settings),
		logger:     config.Logger,
		classifier: classifier,
	}
}

// Execute runs op through the circuit breaker. If the circuit is open, the
// operation is rejected immediately without being invoked. Circuit breaker
// errors are wrapped with jperrors types for consistent error handling:
//   - gobreaker.ErrOpenState becomes jperrors.ErrCircuitOpen
//   - gobreaker.ErrTooManyRequests becomes jperrors.ErrCircuitTooManyRequests
func (s *CircuitBreakerStrategy[T]) Execute(ctx context.Context, op Operation[T]) (T, error) {
	var zero T

	result, err := s.cb.Execute(func() (T, error) {
		return op(ctx)
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			counts := s.cb.Counts()
			s.logger.Warn("circuit breaker is open, operation rejected",
				"error", err,
				"state", s.cb.State(),
				"counts", counts)
			return zero, jperrors.NewCircuitBreakerError(
				"operation rejected",
				"execute",
				"open",
				jperrors.WithCause(err),
				jperrors.WithCounts(jperrors.CircuitCounts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				}),
			)
		case errors.Is(err, gobreaker.ErrTooManyRequests):
			counts := s.cb.Counts()
			s.logger.Debug("circuit breaker in half-open state, too many requests",
				"error", err)
			return zero, jperrors.NewCircuitBreakerError(
				"too many requests in half-open state",
				"execute",
				"half-open",
				jperrors.WithCause(err),
				jperrors.WithCounts(jperrors.CircuitCounts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				}),
			)
		default:
			s.logger.Debug("operation failed through circuit breaker",
				"error", err,
				"should_trip", s.classifier.ShouldTripCircuit(err))
		}
		return zero, err
	}

	return result, nil
}

// State returns the current state of the circuit breaker.
func (s *CircuitBreakerStrategy[T]) State() CircuitBreakerState {
	return convertGobreakerState(s.cb.State())
}

// Counts returns the current counts of the circuit breaker.
func (s *CircuitBreakerStrategy[T]) Counts() CircuitBreakerCounts {
	counts := s.cb.Counts()
	return CircuitBreakerCounts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

// GetHealth returns the health status of the circuit breaker.
func (s *CircuitBreakerStrategy[T]) GetHealth() HealthStatus {
	state := s.State()
	counts := s.Counts()

	var healthy bool
	var status string

	switch state {
	case StateClosed:
		healthy = true
		status = "closed"
	case StateHalfOpen:
		healthy = true // Degraded but operational
		status = "half-open"
	case StateOpen:
		healthy = false
		status = "open"
	default:
		status = "unknown"
	}

	return HealthStatus{
		Healthy:              healthy,
		Status:               status,
		State:                state.String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
	}
}

// convertGobreakerState converts gobreaker.State to our CircuitBreakerState.
func convertGobreakerState(state gobreaker.State) CircuitBreakerState {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
