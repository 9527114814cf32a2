package resilienthttp_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	resilienthttp "github.com/polarisle/resilienthttp"
)

var _ = Describe("Strategy composition", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	// recordingStrategy notes the order it executes in.
	newRecording := func(name string, order *[]string) resilienthttp.Strategy[string] {
		return resilienthttp.StrategyFunc[string](func(ctx context.Context, op resilienthttp.Operation[string]) (string, error) {
			*order = append(*order, name+":before")
			result, err := op(ctx)
			*order = append(*order, name+":after")
			return result, err
		})
	}

	Describe("Compose", func() {
		It("executes the first strategy as the outermost layer", func() {
			var order []string
			composed := resilienthttp.Compose(
				newRecording("outer", &order),
				newRecording("inner", &order),
			)

			result, err := composed.Execute(ctx, func(ctx context.Context) (string, error) {
				order = append(order, "op")
				return "done", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("done"))
			Expect(order).To(Equal([]string{"outer:before", "inner:before", "op", "inner:after", "outer:after"}))
		})

		It("passes the operation through when empty", func() {
			composed := resilienthttp.Compose[string]()
			result, err := composed.Execute(ctx, func(ctx context.Context) (string, error) {
				return "plain", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("plain"))
		})

		It("retries around an inner circuit breaker", func() {
			var calls atomic.Int32
			pipeline := resilienthttp.NewTransientPipeline[string](
				[]resilienthttp.RetryOption{
					resilienthttp.WithMaxAttempts(3),
					resilienthttp.WithConstantBackoff(10 * time.Millisecond),
					resilienthttp.WithRetryLogger(quietLogger()),
				},
				[]resilienthttp.CircuitBreakerOption{
					resilienthttp.WithCircuitBreakerLogger(quietLogger()),
				},
			)

			result, err := pipeline.Execute(ctx, func(ctx context.Context) (string, error) {
				if calls.Add(1) < 2 {
					return "", resilienthttp.NewStatusCodeError(503, errors.New("service unavailable"))
				}
				return "recovered", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("recovered"))
			Expect(calls.Load()).To(Equal(int32(2)))
		})
	})

	Describe("TimeoutStrategy", func() {
		It("cancels the operation's context at the deadline", func() {
			strategy := resilienthttp.NewTimeoutStrategy[string](
				20*time.Millisecond,
				resilienthttp.WithTimeoutLogger(quietLogger()),
			)

			_, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(time.Second):
					return "too late", nil
				}
			})
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})

		It("returns results that finish in time", func() {
			strategy := resilienthttp.NewTimeoutStrategy[string](time.Second)
			result, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
				return "fast", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("fast"))
		})

		It("passes through when the timeout is non-positive", func() {
			strategy := resilienthttp.NewTimeoutStrategy[string](0)
			result, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
				return "unbounded", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("unbounded"))
		})
	})

	Describe("FallbackStrategy", func() {
		It("substitutes the fallback result on failure", func() {
			strategy := resilienthttp.NewFallbackStrategy(
				func(ctx context.Context, err error) (string, error) {
					return "fallback", nil
				},
				resilienthttp.WithFallbackLogger(quietLogger()),
			)

			result, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
				return "", errors.New("boom")
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("fallback"))
		})

		It("does not consult the fallback on success", func() {
			var fallbacks atomic.Int32
			strategy := resilienthttp.NewFallbackStrategy(
				func(ctx context.Context, err error) (string, error) {
					fallbacks.Add(1)
					return "fallback", nil
				},
			)

			result, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
				return "primary", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("primary"))
			Expect(fallbacks.Load()).To(Equal(int32(0)))
		})

		It("never swallows cancellation", func() {
			cancelled, cancelNow := context.WithCancel(context.Background())
			cancelNow()

			var fallbacks atomic.Int32
			strategy := resilienthttp.NewFallbackStrategy(
				func(ctx context.Context, err error) (string, error) {
					fallbacks.Add(1)
					return "fallback", nil
				},
			)

			_, err := strategy.Execute(cancelled, func(ctx context.Context) (string, error) {
				return "", ctx.Err()
			})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(fallbacks.Load()).To(Equal(int32(0)))
		})
	})
})
