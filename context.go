package resilienthttp

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// executionContextKey is the context key under which an ExecutionContext is
// attached to a request's context.
type executionContextKey struct{}

// ExecutionContext is the mutable per-call state carrier threaded through a
// dispatch. It binds the call's cancellation signal and holds arbitrary
// string-keyed properties that strategies and nested handlers can share.
//
// An ExecutionContext is exclusively owned by the dispatch that acquired it
// until it is released; its property bag is therefore not locked. Contexts
// are pooled: acquire them from a ContextPool and release them exactly once,
// or attach a caller-owned context to the request up front and manage its
// lifetime yourself.
type ExecutionContext struct {
	ctx   context.Context
	props map[string]any
	id    string
}

func newExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		id:    uuid.NewString(),
		props: make(map[string]any),
	}
}

// ID returns the context's pool-tracking identity. It is assigned when the
// instance is first created and is stable across pooled reuse.
func (ec *ExecutionContext) ID() string {
	return ec.id
}

// Context returns the cancellation context this ExecutionContext is bound
// to. The returned context also carries the ExecutionContext itself, so
// FromContext works anywhere downstream of the dispatcher.
func (ec *ExecutionContext) Context() context.Context {
	if ec.ctx == nil {
		return context.Background()
	}
	return ec.ctx
}

// bind attaches ec to parent's cancellation and makes ec discoverable via
// FromContext on the derived context.
func (ec *ExecutionContext) bind(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	ec.ctx = context.WithValue(parent, executionContextKey{}, ec)
}

// reset clears all stored properties and unbinds cancellation, returning the
// instance to a clean state for pooled reuse.
func (ec *ExecutionContext) reset() {
	ec.ctx = nil
	clear(ec.props)
}

// Set stores a property on the context.
func (ec *ExecutionContext) Set(key string, value any) {
	ec.props[key] = value
}

// Get returns a property and whether it was present.
func (ec *ExecutionContext) Get(key string) (any, bool) {
	v, ok := ec.props[key]
	return v, ok
}

// Delete removes a property.
func (ec *ExecutionContext) Delete(key string) {
	delete(ec.props, key)
}

// Len returns the number of stored properties.
func (ec *ExecutionContext) Len() int {
	return len(ec.props)
}

// FromContext returns the ExecutionContext attached to ctx, if any.
func FromContext(ctx context.Context) (*ExecutionContext, bool) {
	if ctx == nil {
		return nil, false
	}
	ec, ok := ctx.Value(executionContextKey{}).(*ExecutionContext)
	return ec, ok
}

// ExecutionContextFromRequest returns the ExecutionContext attached to the
// request, if any. Any pipeline stage can use this to read shared per-call
// state without constructing a context of its own.
func ExecutionContextFromRequest(req *http.Request) (*ExecutionContext, bool) {
	if req == nil {
		return nil, false
	}
	return FromContext(req.Context())
}

// RequestWithExecutionContext returns a shallow copy of req with ec attached
// and bound to the request's existing context. Attach a context before
// calling the client to keep ownership of its lifecycle; the dispatcher
// never releases a context it did not acquire itself.
func RequestWithExecutionContext(req *http.Request, ec *ExecutionContext) *http.Request {
	if req == nil || ec == nil {
		return req
	}
	ec.bind(req.Context())
	return req.WithContext(ec.Context())
}
