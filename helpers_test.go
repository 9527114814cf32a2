package resilienthttp_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	resilienthttp "github.com/polarisle/resilienthttp"
)

// quietLogger keeps expected retry/breaker noise out of test output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// mockTransport implements http.RoundTripper for testing.
type mockTransport struct {
	roundTripFunc func(req *http.Request) (*http.Response, error)
	callCount     atomic.Int32
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.callCount.Add(1)
	return m.roundTripFunc(req)
}

func (m *mockTransport) getCallCount() int {
	return int(m.callCount.Load())
}

// newResponse builds a minimal response with a readable, closable body.
func newResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
	}
}

// passthroughStrategy executes the operation once with no added behavior.
type passthroughStrategy struct {
	executions atomic.Int32
}

func (s *passthroughStrategy) Execute(ctx context.Context, op resilienthttp.Operation[*http.Response]) (*http.Response, error) {
	s.executions.Add(1)
	return op(ctx)
}
