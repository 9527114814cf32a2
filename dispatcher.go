package resilienthttp

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Dispatcher is the request-pipeline stage that wraps an inner
// http.RoundTripper with a resilience strategy. It owns the ExecutionContext
// lifecycle for requests that arrive without one, resolves the applicable
// strategy, and delegates network execution to the inner transport.
//
// A Dispatcher is safe for concurrent use by any number of callers.
type Dispatcher struct {
	next     http.RoundTripper
	selector *strategySelector
	pool     *ContextPool
	logger   *slog.Logger

	dispatches    atomic.Int64
	ownedContexts atomic.Int64
	configErrors  atomic.Int64
}

// RoundTrip implements http.RoundTripper. It guarantees that an
// ExecutionContext is attached to the request for all downstream stages, and
// that a dispatcher-acquired context is released exactly once on every exit
// path: success, error, or cancellation.
func (d *Dispatcher) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	d.dispatches.Add(1)

	ec, ok := ExecutionContextFromRequest(req)
	if !ok {
		// No context attached by the caller: acquire one and own it for
		// the duration of this dispatch.
		ec = d.pool.Acquire(req.Context())
		req = req.WithContext(ec.Context())
		d.ownedContexts.Add(1)
		defer d.pool.Release(ec)
	}

	strategy, err := d.selector.selectStrategy(req)
	if err != nil {
		d.configErrors.Add(1)
		d.logger.Error("strategy resolution failed",
			"method", req.Method,
			"url", req.URL,
			"error", err)
		return nil, err
	}

	op := func(ctx context.Context) (*http.Response, error) {
		// The strategy may invoke the operation multiple times; mirror the
		// top-level request check on every invocation.
		if req == nil {
			return nil, ErrNilRequest
		}
		return d.next.RoundTrip(req.WithContext(ctx))
	}

	// The strategy decides the final outcome: it may retry, short-circuit,
	// substitute a fallback, or re-raise. The dispatcher never reclassifies.
	return strategy.Execute(ec.Context(), op)
}

// DispatcherStats is a snapshot of dispatcher activity.
type DispatcherStats struct {
	// Dispatches is the total number of requests dispatched.
	Dispatches int64

	// OwnedContexts is the number of dispatches for which the dispatcher
	// acquired (and released) an ExecutionContext of its own.
	OwnedContexts int64

	// ConfigErrors is the number of dispatches aborted by strategy
	// resolution failures.
	ConfigErrors int64
}

// Stats returns a thread-safe snapshot of dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Dispatches:    d.dispatches.Load(),
		OwnedContexts: d.ownedContexts.Load(),
		ConfigErrors:  d.configErrors.Load(),
	}
}

// Pool returns the context pool this dispatcher acquires from.
func (d *Dispatcher) Pool() *ContextPool {
	return d.pool
}
