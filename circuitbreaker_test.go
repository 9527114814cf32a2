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

var _ = Describe("CircuitBreakerStrategy", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	// tripsAfterTwo opens the circuit after two consecutive failures.
	tripsAfterTwo := resilienthttp.WithReadyToTrip(func(counts resilienthttp.CircuitBreakerCounts) bool {
		return counts.ConsecutiveFailures >= 2
	})

	Describe("Execute", func() {
		It("passes successful operations through", func() {
			strategy := resilienthttp.NewCircuitBreakerStrategy[string](
				resilienthttp.WithCircuitBreakerLogger(quietLogger()),
			)

			result, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
				return "success", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("success"))
			Expect(strategy.State()).To(Equal(resilienthttp.StateClosed))
		})

		It("opens after enough failures and rejects without invoking the operation", func() {
			strategy := resilienthttp.NewCircuitBreakerStrategy[string](
				tripsAfterTwo,
				resilienthttp.WithTimeout(time.Minute),
				resilienthttp.WithCircuitBreakerLogger(quietLogger()),
			)

			boom := resilienthttp.NewStatusCodeError(500, errors.New("server error"))
			var calls atomic.Int32
			fail := func(ctx context.Context) (string, error) {
				calls.Add(1)
				return "", boom
			}

			for range 2 {
				_, err := strategy.Execute(ctx, fail)
				Expect(err).To(HaveOccurred())
			}
			Expect(strategy.State()).To(Equal(resilienthttp.StateOpen))

			callsBefore := calls.Load()
			_, err := strategy.Execute(ctx, fail)
			Expect(err).To(HaveOccurred())
			Expect(calls.Load()).To(Equal(callsBefore), "open circuit must not invoke the operation")
		})

		It("does not count non-tripping errors as failures", func() {
			strategy := resilienthttp.NewCircuitBreakerStrategy[string](
				tripsAfterTwo,
				resilienthttp.WithCircuitBreakerLogger(quietLogger()),
			)

			notFound := resilienthttp.NewStatusCodeError(404, errors.New("not found"))
			for range 5 {
				_, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					return "", notFound
				})
				Expect(errors.Is(err, notFound)).To(BeTrue())
			}
			Expect(strategy.State()).To(Equal(resilienthttp.StateClosed))
		})

		It("recovers through half-open after the open timeout", func() {
			strategy := resilienthttp.NewCircuitBreakerStrategy[string](
				tripsAfterTwo,
				resilienthttp.WithTimeout(50*time.Millisecond),
				resilienthttp.WithCircuitBreakerLogger(quietLogger()),
			)

			boom := resilienthttp.NewStatusCodeError(500, errors.New("server error"))
			for range 2 {
				_, _ = strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					return "", boom
				})
			}
			Expect(strategy.State()).To(Equal(resilienthttp.StateOpen))

			Eventually(func() resilienthttp.CircuitBreakerState {
				return strategy.State()
			}).WithTimeout(time.Second).WithPolling(10 * time.Millisecond).
				Should(Equal(resilienthttp.StateHalfOpen))

			result, err := strategy.Execute(ctx, func(ctx context.Context) (string, error) {
				return "recovered", nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("recovered"))
		})

		It("reports state changes", func() {
			var transitions atomic.Int32
			strategy := resilienthttp.NewCircuitBreakerStrategy[string](
				tripsAfterTwo,
				resilienthttp.WithBreakerName("test-breaker"),
				resilienthttp.WithStateChangeHandler(func(name string, from, to resilienthttp.CircuitBreakerState) {
					transitions.Add(1)
					Expect(name).To(Equal("test-breaker"))
				}),
				resilienthttp.WithCircuitBreakerLogger(quietLogger()),
			)

			boom := resilienthttp.NewStatusCodeError(500, errors.New("server error"))
			for range 2 {
				_, _ = strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					return "", boom
				})
			}
			Expect(transitions.Load()).To(BeNumerically(">=", 1))
		})
	})

	Describe("GetHealth", func() {
		It("is healthy while closed and unhealthy while open", func() {
			strategy := resilienthttp.NewCircuitBreakerStrategy[string](
				tripsAfterTwo,
				resilienthttp.WithTimeout(time.Minute),
				resilienthttp.WithCircuitBreakerLogger(quietLogger()),
			)

			Expect(strategy.GetHealth().Healthy).To(BeTrue())
			Expect(strategy.GetHealth().Status).To(Equal("closed"))

			boom := resilienthttp.NewStatusCodeError(500, errors.New("server error"))
			for range 2 {
				_, _ = strategy.Execute(ctx, func(ctx context.Context) (string, error) {
					return "", boom
				})
			}

			health := strategy.GetHealth()
			Expect(health.Healthy).To(BeFalse())
			Expect(health.Status).To(Equal("open"))
			Expect(health.State).To(Equal("open"))
		})
	})
})
