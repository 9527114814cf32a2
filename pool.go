package resilienthttp

import (
	"context"
	"sync"
	"sync/atomic"
)

// ContextPool hands out ExecutionContexts for dispatches that arrive without
// one. Checked-out contexts are exclusively owned by the dispatch that
// acquired them; Release must be called exactly once per Acquire. Releasing
// a context that is still referenced elsewhere is a caller bug the pool
// cannot detect.
type ContextPool struct {
	pool     sync.Pool
	acquired atomic.Int64
	released atomic.Int64
}

// NewContextPool creates an empty pool. The zero value is not usable; always
// construct pools with this function.
func NewContextPool() *ContextPool {
	return &ContextPool{
		pool: sync.Pool{
			New: func() any { return newExecutionContext() },
		},
	}
}

// Acquire returns a clean ExecutionContext bound to parent's cancellation,
// reusing a pooled instance when one is available.
func (p *ContextPool) Acquire(parent context.Context) *ExecutionContext {
	ec := p.pool.Get().(*ExecutionContext)
	ec.bind(parent)
	p.acquired.Add(1)
	return ec
}

// Release clears the context's properties, unbinds its cancellation, and
// returns it to the pool. The caller must not use ec after Release.
func (p *ContextPool) Release(ec *ExecutionContext) {
	if ec == nil {
		return
	}
	ec.reset()
	p.released.Add(1)
	p.pool.Put(ec)
}

// PoolStats is a snapshot of pool activity.
type PoolStats struct {
	// Acquired is the total number of contexts handed out.
	Acquired int64

	// Released is the total number of contexts returned.
	Released int64
}

// Stats returns a snapshot of the pool's counters. Acquired minus Released
// is the number of contexts currently checked out.
func (p *ContextPool) Stats() PoolStats {
	return PoolStats{
		Acquired: p.acquired.Load(),
		Released: p.released.Load(),
	}
}
