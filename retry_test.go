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

// mockErrorClassifier for testing
type mockErrorClassifier struct {
	isRetryableFunc func(err error) bool
}

func (m *mockErrorClassifier) IsRetryable(err error) bool {
	return m.isRetryableFunc(err)
}

var _ = Describe("RetryStrategy", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Execute", func() {
		Context("successful operation", func() {
			It("returns the result on the first attempt", func() {
				var calls atomic.Int32
				strategy := resilienthttp.NewRetryStrategy[string](
					resilienthttp.WithMaxAttempts(3),
					resilienthttp.WithConstantBackoff(10*time.Millisecond),
					resilienthttp.WithRetryLogger(quietLogger()),
				)

				result, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					calls.Add(1)
					return "success", nil
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result).To(Equal("success"))
				Expect(calls.Load()).To(Equal(int32(1)))

				stats := strategy.GetRetryStats()
				Expect(stats.TotalAttempts).To(Equal(int64(1)))
				Expect(stats.TotalRetries).To(Equal(int64(0)))
				Expect(stats.TotalSuccesses).To(Equal(int64(1)))
				Expect(stats.TotalFailures).To(Equal(int64(0)))
			})
		})

		Context("retryable errors", func() {
			It("retries and succeeds", func() {
				var calls atomic.Int32
				strategy := resilienthttp.NewRetryStrategy[string](
					resilienthttp.WithMaxAttempts(5),
					resilienthttp.WithConstantBackoff(10*time.Millisecond),
					resilienthttp.WithRetryLogger(quietLogger()),
				)

				result, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					if calls.Add(1) < 3 {
						return "", resilienthttp.NewStatusCodeError(503, errors.New("service unavailable"))
					}
					return "success", nil
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result).To(Equal("success"))
				Expect(calls.Load()).To(Equal(int32(3)))

				stats := strategy.GetRetryStats()
				Expect(stats.TotalAttempts).To(Equal(int64(3)))
				Expect(stats.TotalRetries).To(Equal(int64(2)))
				Expect(stats.TotalSuccesses).To(Equal(int64(1)))
			})

			It("fails after exhausting max attempts", func() {
				var calls atomic.Int32
				strategy := resilienthttp.NewRetryStrategy[string](
					resilienthttp.WithMaxAttempts(3),
					resilienthttp.WithConstantBackoff(10*time.Millisecond),
					resilienthttp.WithRetryLogger(quietLogger()),
				)

				_, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					calls.Add(1)
					return "", resilienthttp.NewStatusCodeError(503, errors.New("service unavailable"))
				})
				Expect(err).To(HaveOccurred())
				Expect(calls.Load()).To(Equal(int32(3)))

				stats := strategy.GetRetryStats()
				Expect(stats.TotalFailures).To(Equal(int64(1)))
				Expect(stats.LastError).To(HaveOccurred())
			})
		})

		Context("non-retryable errors", func() {
			It("gives up immediately", func() {
				var calls atomic.Int32
				strategy := resilienthttp.NewRetryStrategy[string](
					resilienthttp.WithMaxAttempts(5),
					resilienthttp.WithConstantBackoff(10*time.Millisecond),
					resilienthttp.WithRetryLogger(quietLogger()),
				)

				notFound := resilienthttp.NewStatusCodeError(404, errors.New("not found"))
				_, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					calls.Add(1)
					return "", notFound
				})
				Expect(errors.Is(err, notFound)).To(BeTrue())
				Expect(calls.Load()).To(Equal(int32(1)))
			})

			It("honors a custom classifier", func() {
				var calls atomic.Int32
				strategy := resilienthttp.NewRetryStrategy[string](
					resilienthttp.WithMaxAttempts(5),
					resilienthttp.WithConstantBackoff(10*time.Millisecond),
					resilienthttp.WithErrorClassifier(&mockErrorClassifier{
						isRetryableFunc: func(err error) bool { return false },
					}),
					resilienthttp.WithRetryLogger(quietLogger()),
				)

				_, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					calls.Add(1)
					return "", errors.New("nope")
				})
				Expect(err).To(HaveOccurred())
				Expect(calls.Load()).To(Equal(int32(1)))
			})
		})

		Context("cancellation", func() {
			It("returns immediately when the context is already done", func() {
				cancelled, cancelNow := context.WithCancel(context.Background())
				cancelNow()

				var calls atomic.Int32
				strategy := resilienthttp.NewRetryStrategy[string](
					resilienthttp.WithMaxAttempts(3),
					resilienthttp.WithRetryLogger(quietLogger()),
				)

				_, err := strategy.Execute(cancelled, func(ctx context.Context) (string, error) {
					calls.Add(1)
					return "ok", nil
				})
				Expect(errors.Is(err, context.Canceled)).To(BeTrue())
				Expect(calls.Load()).To(Equal(int32(0)))
			})

			It("stops retrying when cancelled mid-backoff", func() {
				cancellable, cancelNow := context.WithCancel(context.Background())
				defer cancelNow()

				var calls atomic.Int32
				strategy := resilienthttp.NewRetryStrategy[string](
					resilienthttp.WithMaxAttempts(10),
					resilienthttp.WithConstantBackoff(200*time.Millisecond),
					resilienthttp.WithRetryLogger(quietLogger()),
				)

				timer := time.AfterFunc(50*time.Millisecond, cancelNow)
				defer timer.Stop()

				_, err := strategy.Execute(cancellable, func(ctx context.Context) (string, error) {
					calls.Add(1)
					return "", resilienthttp.NewStatusCodeError(503, errors.New("service unavailable"))
				})
				Expect(errors.Is(err, context.Canceled)).To(BeTrue())
				Expect(calls.Load()).To(Equal(int32(1)))
			})
		})

		Context("configuration", func() {
			It("rejects a non-positive attempt budget", func() {
				strategy := resilienthttp.NewRetryStrategy[string](
					resilienthttp.WithMaxAttempts(0),
					resilienthttp.WithRetryLogger(quietLogger()),
				)
				_, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					return "ok", nil
				})
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
