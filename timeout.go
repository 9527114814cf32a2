package resilienthttp

import (
	"context"
	"log/slog"
	"time"
)

// TimeoutStrategy bounds an operation with a deadline. The deadline is
// expressed purely as context cancellation: the operation receives a derived
// context that is cancelled once the timeout elapses, and whatever the
// operation returns under that cancellation is the outcome. The strategy
// never reclassifies a timeout as anything else.
type TimeoutStrategy[T any] struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewTimeoutStrategy creates a timeout strategy. A non-positive timeout
// makes the strategy a pass-through.
func NewTimeoutStrategy[T any](timeout time.Duration, opts ...TimeoutOption) *TimeoutStrategy[T] {
	config := &TimeoutConfig{Logger: slog.Default()}
	for _, opt := range opts {
		opt(config)
	}
	return &TimeoutStrategy[T]{
		timeout: timeout,
		logger:  config.Logger,
	}
}

// Execute runs op under the configured deadline.
func (s *TimeoutStrategy[T]) Execute(ctx context.Context, op Operation[T]) (T, error) {
	if s.timeout <= 0 {
		return op(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := op(timeoutCtx)
	if err != nil && timeoutCtx.Err() != nil && ctx.Err() == nil {
		s.logger.Debug("operation exceeded timeout",
			"timeout", s.timeout,
			"error", err)
	}
	return result, err
}

// TimeoutConfig holds timeout strategy configuration.
type TimeoutConfig struct {
	// Logger for timeout events. Default: slog.Default()
	Logger *slog.Logger
}

// TimeoutOption is a functional option for configuring timeout behavior.
type TimeoutOption func(*TimeoutConfig)

// WithTimeoutLogger sets a custom logger for timeout events.
func WithTimeoutLogger(logger *slog.Logger) TimeoutOption {
	return func(c *TimeoutConfig) {
		c.Logger = logger
	}
}
