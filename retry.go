package resilienthttp

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryStrategy executes an operation with configurable retry logic. It uses
// exponential, constant, or fibonacci backoff with jitter to prevent
// thundering herd problems, and consults an ErrorClassifier to decide which
// failures are worth retrying.
type RetryStrategy[T any] struct {
	config     *RetryConfig
	logger     *slog.Logger
	classifier ErrorClassifier
	stats      *retryStats
}

// retryStats tracks retry operation statistics.
type retryStats struct {
	mu              sync.RWMutex
	totalAttempts   int64
	totalRetries    int64
	totalSuccesses  int64
	totalFailures   int64
	lastAttemptTime time.Time
	lastError       error
}

// NewRetryStrategy creates a retry strategy with the provided options.
//
// Example:
//
//	strategy := resilienthttp.NewRetryStrategy[*http.Response](
//	    resilienthttp.WithMaxAttempts(5),
//	    resilienthttp.WithExponentialBackoff(time.Second, 30*time.Second),
//	)
func NewRetryStrategy[T any](opts ...RetryOption) *RetryStrategy[T] {
	config := DefaultRetryConfig()
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier()
	}

	return &RetryStrategy[T]{
		config:     config,
		logger:     config.Logger,
		classifier: config.ErrorClassifier,
		stats:      &retryStats{},
	}
}

// Execute runs op, retrying on retryable errors up to MaxAttempts times
// using the configured backoff. Cancellation of ctx stops retrying
// immediately and surfaces as the context's error.
func (s *RetryStrategy[T]) Execute(ctx context.Context, op Operation[T]) (T, error) {
	var zero T

	if s.config.MaxAttempts <= 0 {
		return zero, errors.New("max attempts must be positive")
	}

	// Check if the context is already done before attempting anything.
	select {
	case <-ctx.Done():
		s.logger.Warn("context already done before operation (expected condition)",
			"error", ctx.Err())
		return zero, ctx.Err()
	default:
	}

	var result T
	var attempts int

	backoff := s.getBackoffStrategy()

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		s.stats.mu.Lock()
		s.stats.totalAttempts++
		if attempts > 1 {
			s.stats.totalRetries++
		}
		s.stats.lastAttemptTime = time.Now()
		s.stats.mu.Unlock()

		// Re-check cancellation before each attempt.
		select {
		case <-ctx.Done():
			s.logger.Warn("context done before retry attempt (expected condition)",
				"attempt", attempts,
				"error", ctx.Err())
			return ctx.Err()
		default:
		}

		value, err := op(ctx)
		if err == nil {
			if attempts > 1 {
				s.logger.Info("operation succeeded after retry",
					"attempts", attempts)
			}
			result = value
			return nil
		}

		if !s.classifier.IsRetryable(err) {
			s.logger.Debug("non-retryable error, giving up",
				"error", err,
				"attempts", attempts)
			return err
		}

		s.logger.Debug("retrying operation after delay",
			"attempt", attempts,
			"error", err)

		return retry.RetryableError(err)
	})
	if err != nil {
		s.logger.Warn("operation failed after retries",
			"attempts", attempts,
			"error", err)
		s.stats.mu.Lock()
		s.stats.totalFailures++
		s.stats.lastError = err
		s.stats.mu.Unlock()
		return zero, err
	}

	s.stats.mu.Lock()
	s.stats.totalSuccesses++
	s.stats.mu.Unlock()

	return result, nil
}

// getBackoffStrategy returns the backoff for the configured strategy.
// Note: retry.Do() counts the initial attempt, so MaxAttempts-1 is passed to
// WithMaxRetries.
func (s *RetryStrategy[T]) getBackoffStrategy() retry.Backoff {
	maxAttempts := s.config.MaxAttempts
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	if maxAttempts > 1000 {
		maxAttempts = 1000
	}

	maxRetries := maxAttempts - 1
	if maxRetries < 0 {
		maxRetries = 0
	}

	switch s.config.Strategy {
	case BackoffConstant:
		return retry.WithMaxRetries(
			uint64(maxRetries), // #nosec G115 - bounds checked above
			retry.BackoffFunc(func() (time.Duration, bool) {
				// Jitter from crypto/rand to prevent thundering herd.
				jitterMax := int64(s.config.InitialDelay / 10)
				if jitterMax <= 0 {
					jitterMax = 1
				}
				jitterBig, err := rand.Int(rand.Reader, big.NewInt(jitterMax))
				if err != nil {
					return s.config.InitialDelay, false
				}
				jitter := time.Duration(jitterBig.Int64())
				return s.config.InitialDelay + jitter, false
			}),
		)

	case BackoffFibonacci:
		return retry.WithMaxRetries(
			uint64(maxRetries), // #nosec G115 - bounds checked above
			retry.WithCappedDuration(
				s.config.MaxDelay,
				retry.WithJitter(
					s.config.InitialDelay/10,
					retry.NewFibonacci(s.config.InitialDelay),
				),
			),
		)

	default:
		return retry.WithMaxRetries(
			uint64(maxRetries), // #nosec G115 - bounds checked above
			retry.WithCappedDuration(
				s.config.MaxDelay,
				retry.WithJitter(
					s.config.InitialDelay/10,
					s.newConfigurableExponential(),
				),
			),
		)
	}
}

// newConfigurableExponential creates an exponential backoff using the
// configured multiplier. Unlike retry.NewExponential which always doubles,
// this allows configurable growth rates: delay = initialDelay * multiplier^N.
func (s *RetryStrategy[T]) newConfigurableExponential() retry.Backoff {
	multiplier := s.config.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	// For multiplier of exactly 2.0, use the library implementation.
	if multiplier == 2.0 {
		return retry.NewExponential(s.config.InitialDelay)
	}

	attempt := uint64(0)
	return retry.BackoffFunc(func() (time.Duration, bool) {
		delay := float64(s.config.InitialDelay)
		for i := uint64(0); i < attempt; i++ {
			delay *= multiplier
			if delay > float64(1<<63-1) {
				attempt++
				return time.Duration(1<<63 - 1), false
			}
		}
		attempt++
		return time.Duration(delay), false
	})
}

// RetryStats holds statistics about retry operations.
type RetryStats struct {
	// TotalAttempts is the total number of attempts made (including initial
	// and retries).
	TotalAttempts int64

	// TotalRetries is the number of retry attempts (not including initial
	// attempts).
	TotalRetries int64

	// TotalSuccesses is the number of successful operations.
	TotalSuccesses int64

	// TotalFailures is the number of failed operations (after all retries
	// exhausted).
	TotalFailures int64

	// LastAttemptTime is the time of the last attempt.
	LastAttemptTime time.Time

	// LastError is the last error encountered (if any).
	LastError error
}

// GetRetryStats returns a thread-safe snapshot of retry statistics.
func (s *RetryStrategy[T]) GetRetryStats() RetryStats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	return RetryStats{
		TotalAttempts:   s.stats.totalAttempts,
		TotalRetries:    s.stats.totalRetries,
		TotalSuccesses:  s.stats.totalSuccesses,
		TotalFailures:   s.stats.totalFailures,
		LastAttemptTime: s.stats.lastAttemptTime,
		LastError:       s.stats.lastError,
	}
}
