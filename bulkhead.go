package resilienthttp

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/semaphore"
)

// ErrBulkheadFull is returned when a bulkhead rejects an operation instead
// of queueing it.
var ErrBulkheadFull = errors.New("resilienthttp: bulkhead at capacity")

// BulkheadStrategy caps the number of operations executing concurrently,
// isolating a slow downstream so it cannot absorb every caller. Excess
// operations either wait for a slot (honoring cancellation) or are rejected
// immediately, depending on configuration.
type BulkheadStrategy[T any] struct {
	sem    *semaphore.Weighted
	wait   bool
	logger *slog.Logger
}

// NewBulkheadStrategy creates a bulkhead admitting at most maxConcurrent
// operations at a time. maxConcurrent values below 1 are treated as 1.
func NewBulkheadStrategy[T any](maxConcurrent int64, opts ...BulkheadOption) *BulkheadStrategy[T] {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	config := &BulkheadConfig{Wait: true, Logger: slog.Default()}
	for _, opt := range opts {
		opt(config)
	}
	return &BulkheadStrategy[T]{
		sem:    semaphore.NewWeighted(maxConcurrent),
		wait:   config.Wait,
		logger: config.Logger,
	}
}

// Execute runs op once a concurrency slot is available. In waiting mode the
// wait is bounded by ctx; in fail-fast mode a full bulkhead returns
// ErrBulkheadFull without invoking op.
func (s *BulkheadStrategy[T]) Execute(ctx context.Context, op Operation[T]) (T, error) {
	var zero T

	if s.wait {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return zero, err
		}
	} else if !s.sem.TryAcquire(1) {
		s.logger.Debug("bulkhead full, rejecting operation")
		return zero, ErrBulkheadFull
	}
	defer s.sem.Release(1)

	return op(ctx)
}

// BulkheadConfig holds bulkhead configuration.
type BulkheadConfig struct {
	// Wait controls whether a full bulkhead queues callers (true) or
	// rejects them with ErrBulkheadFull (false).
	// Default: true
	Wait bool

	// Logger for bulkhead events. Default: slog.Default()
	Logger *slog.Logger
}

// BulkheadOption is a functional option for configuring bulkhead behavior.
type BulkheadOption func(*BulkheadConfig)

// WithBulkheadRejection makes a full bulkhead reject operations immediately
// instead of queueing them.
func WithBulkheadRejection() BulkheadOption {
	return func(c *BulkheadConfig) {
		c.Wait = false
	}
}

// WithBulkheadLogger sets a custom logger for bulkhead events.
func WithBulkheadLogger(logger *slog.Logger) BulkheadOption {
	return func(c *BulkheadConfig) {
		c.Logger = logger
	}
}
