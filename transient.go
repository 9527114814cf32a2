package resilienthttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// TransientFaultStrategy is a retry strategy pre-populated with the
// transient-fault predicate: it retries transport failures and responses
// whose status is in the transient set (5xx, 408), and returns every other
// outcome unchanged.
//
// Responses consumed by a retry have their bodies drained and closed so the
// underlying connection can be reused. If every attempt yields a transient
// response, the final response is returned to the caller rather than an
// error the wire never produced.
type TransientFaultStrategy struct {
	retry *RetryStrategy[*http.Response]
}

// NewTransientFaultStrategy creates a TransientFaultStrategy. Retry options
// tune attempts and backoff; the transient classification itself is fixed.
func NewTransientFaultStrategy(opts ...RetryOption) *TransientFaultStrategy {
	return &TransientFaultStrategy{
		retry: NewRetryStrategy[*http.Response](opts...),
	}
}

// Execute implements Strategy[*http.Response].
func (s *TransientFaultStrategy) Execute(ctx context.Context, op Operation[*http.Response]) (*http.Response, error) {
	var last *http.Response

	resp, err := s.retry.Execute(ctx, func(c context.Context) (*http.Response, error) {
		r, e := op(c)
		if e != nil {
			return nil, e
		}
		if isTransientStatus(r.StatusCode) {
			// A superseded transient response will never reach the caller.
			if last != nil {
				drainAndClose(last)
			}
			last = r
			return nil, NewStatusCodeError(r.StatusCode, fmt.Errorf("transient status %d", r.StatusCode))
		}
		if last != nil {
			drainAndClose(last)
			last = nil
		}
		return r, nil
	})
	if err != nil {
		var sce *StatusCodeError
		if errors.As(err, &sce) && last != nil {
			// Attempts exhausted on a transient response: surface the final
			// response the server actually sent.
			return last, nil
		}
		if last != nil {
			drainAndClose(last)
		}
		return nil, err
	}
	return resp, nil
}

// GetRetryStats returns a snapshot of the underlying retry statistics.
func (s *TransientFaultStrategy) GetRetryStats() RetryStats {
	return s.retry.GetRetryStats()
}

// drainAndClose consumes and closes a response body so the transport can
// reuse the connection.
func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
