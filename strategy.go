// Package resilienthttp wraps outgoing HTTP calls with configurable resilience
// strategies (retry, circuit breaker, timeout, fallback) selected statically or
// per request. The Dispatcher plugs into an http.Client as its Transport and
// threads a pooled ExecutionContext through every call, so strategies and
// nested handlers can share per-call state.
package resilienthttp

import (
	"context"
	"net/http"
)

// Operation is the unit of work a Strategy executes. Strategies may invoke it
// any number of times (retries) and must pass it a context derived from the
// one they received, so cancellation reaches the underlying call.
type Operation[T any] func(ctx context.Context) (T, error)

// Strategy wraps execution of an Operation with resilience behavior.
// A Strategy must be reentrant: once constructed it is treated as immutable
// and may be invoked by any number of concurrent dispatches.
//
// Example:
//
//	strategy := resilienthttp.NewRetryStrategy[*http.Response](
//	    resilienthttp.WithMaxAttempts(3),
//	    resilienthttp.WithExponentialBackoff(time.Second, 30*time.Second),
//	)
//	resp, err := strategy.Execute(ctx, func(ctx context.Context) (*http.Response, error) {
//	    return transport.RoundTrip(req.WithContext(ctx))
//	})
type Strategy[T any] interface {
	// Execute runs op under this strategy's resilience behavior and returns
	// the final outcome. Cancellation of ctx must stop any retrying or
	// waiting and surface as a cancellation, never as a success.
	Execute(ctx context.Context, op Operation[T]) (T, error)
}

// HTTPStrategy is the strategy shape the Dispatcher consumes.
type HTTPStrategy = Strategy[*http.Response]

// StrategyFunc adapts a plain function to the Strategy interface.
type StrategyFunc[T any] func(ctx context.Context, op Operation[T]) (T, error)

// Execute implements Strategy.
func (f StrategyFunc[T]) Execute(ctx context.Context, op Operation[T]) (T, error) {
	return f(ctx, op)
}

// Compose chains strategies into a single Strategy. The first strategy is the
// outermost layer: Compose(retry, breaker) retries around the breaker, which
// is the conventional layering (breaker state stays accurate while retry
// handles transient failures).
//
// Compose with no arguments returns a pass-through strategy.
func Compose[T any](strategies ...Strategy[T]) Strategy[T] {
	if len(strategies) == 1 {
		return strategies[0]
	}
	return StrategyFunc[T](func(ctx context.Context, op Operation[T]) (T, error) {
		composed := op
		for i := len(strategies) - 1; i >= 0; i-- {
			s, next := strategies[i], composed
			composed = func(c context.Context) (T, error) {
				return s.Execute(c, next)
			}
		}
		return composed(ctx)
	})
}

// NewTransientPipeline builds the common retry-around-circuit-breaker
// pipeline, with both layers gated on the default HTTP classifiers.
// The circuit breaker is the inner layer so its counts reflect individual
// attempts, and retry is the outer layer so transient failures are retried.
func NewTransientPipeline[T any](retryOpts []RetryOption, cbOpts []CircuitBreakerOption) Strategy[T] {
	return Compose[T](
		NewRetryStrategy[T](retryOpts...),
		NewCircuitBreakerStrategy[T](cbOpts...),
	)
}
