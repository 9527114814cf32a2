package resilienthttp

import (
	"context"
	"errors"
	"log/slog"
)

// FallbackFunc produces a substitute result when the wrapped operation
// fails. It receives the error that triggered the fallback.
type FallbackFunc[T any] func(ctx context.Context, err error) (T, error)

// FallbackStrategy substitutes a fallback result when the wrapped operation
// fails. Cancellation is never swallowed: if the call's own context is done,
// the cancellation propagates and the fallback is not consulted.
type FallbackStrategy[T any] struct {
	fallback FallbackFunc[T]
	logger   *slog.Logger
}

// NewFallbackStrategy creates a fallback strategy around fn.
func NewFallbackStrategy[T any](fn FallbackFunc[T], opts ...FallbackOption) *FallbackStrategy[T] {
	config := &FallbackConfig{Logger: slog.Default()}
	for _, opt := range opts {
		opt(config)
	}
	return &FallbackStrategy[T]{
		fallback: fn,
		logger:   config.Logger,
	}
}

// Execute runs op and, on failure, substitutes the fallback result.
func (s *FallbackStrategy[T]) Execute(ctx context.Context, op Operation[T]) (T, error) {
	result, err := op(ctx)
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return result, err
	}

	if s.fallback == nil {
		return result, err
	}

	s.logger.Debug("operation failed, using fallback",
		"error", err)
	return s.fallback(ctx, err)
}

// FallbackConfig holds fallback strategy configuration.
type FallbackConfig struct {
	// Logger for fallback events. Default: slog.Default()
	Logger *slog.Logger
}

// FallbackOption is a functional option for configuring fallback behavior.
type FallbackOption func(*FallbackConfig)

// WithFallbackLogger sets a custom logger for fallback events.
func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(c *FallbackConfig) {
		c.Logger = logger
	}
}
