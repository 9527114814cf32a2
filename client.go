package resilienthttp

import (
	"fmt"
	"log/slog"
	"net/http"
)

// DispatcherOption configures a Dispatcher at wiring time.
type DispatcherOption func(*dispatcherConfig)

type dispatcherConfig struct {
	fixed    HTTPStrategy
	selector SelectorFunc
	registry *Registry[*http.Response]
	keyFunc  KeyFunc
	factory  StrategyFactory
	fixedKey string
	hasKey   bool
	pool     *ContextPool
	logger   *slog.Logger
}

// WithStrategy wires a single fixed strategy used for every request.
func WithStrategy(s HTTPStrategy) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.fixed = s
	}
}

// WithStrategySelector wires a per-request selector callback. Returning a
// nil strategy fails the dispatch with a ConfigurationError before any
// network attempt. The callback may close over whatever dependencies it
// needs (registries, config, per-tenant state).
func WithStrategySelector(fn SelectorFunc) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.selector = fn
	}
}

// WithStrategyRegistry wires registry-keyed selection: keyFunc derives a key
// per request, misses build through factory exactly once per key, and later
// requests with the same key reuse the installed strategy. A nil keyFunc
// defaults to MethodHostKey.
func WithStrategyRegistry(reg *Registry[*http.Response], keyFunc KeyFunc, factory StrategyFactory) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.registry = reg
		c.keyFunc = keyFunc
		c.factory = factory
	}
}

// WithRegistryKey wires a fixed registry lookup resolved at construction
// time. If the key holds no strategy when the dispatcher is built, wiring
// fails immediately with a ConfigurationError naming the key; no request is
// ever sent.
func WithRegistryKey(reg *Registry[*http.Response], key string) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.registry = reg
		c.fixedKey = key
		c.hasKey = true
	}
}

// WithDispatchLogger sets the dispatcher's logger. Default: slog.Default().
func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.logger = logger
	}
}

// WithContextPool sets the pool the dispatcher acquires ExecutionContexts
// from, for callers that want to share one pool across dispatchers.
func WithContextPool(pool *ContextPool) DispatcherOption {
	return func(c *dispatcherConfig) {
		c.pool = pool
	}
}

// NewDispatcher wires a Dispatcher in front of next. Exactly one strategy
// source must be configured: WithStrategy, WithStrategySelector,
// WithStrategyRegistry, or WithRegistryKey. Conflicting or missing sources
// are configuration errors at wiring time, not runtime precedence rules.
func NewDispatcher(next http.RoundTripper, opts ...DispatcherOption) (*Dispatcher, error) {
	if next == nil {
		return nil, ErrNilTransport
	}

	config := &dispatcherConfig{}
	for _, opt := range opts {
		opt(config)
	}

	if config.logger == nil {
		config.logger = slog.Default()
	}
	if config.pool == nil {
		config.pool = NewContextPool()
	}

	sources := 0
	if config.fixed != nil {
		sources++
	}
	if config.selector != nil {
		sources++
	}
	if config.factory != nil {
		sources++
	}
	if config.hasKey {
		sources++
	}
	if sources == 0 {
		return nil, &ConfigurationError{Reason: "no strategy source configured"}
	}
	if sources > 1 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("%d strategy sources configured, want exactly one", sources)}
	}

	selector := &strategySelector{
		fixed:    config.fixed,
		selector: config.selector,
	}

	switch {
	case config.hasKey:
		if config.registry == nil {
			return nil, &ConfigurationError{Key: config.fixedKey, Reason: "nil strategy registry"}
		}
		// Resolve at wiring time so a missing key fails before any request.
		s, ok := config.registry.Get(config.fixedKey)
		if !ok {
			return nil, &ConfigurationError{Key: config.fixedKey, Reason: "no strategy registered for key"}
		}
		selector.fixed = s

	case config.factory != nil:
		if config.registry == nil {
			return nil, &ConfigurationError{Reason: "nil strategy registry"}
		}
		if config.keyFunc == nil {
			config.keyFunc = MethodHostKey
		}
		selector.registry = config.registry
		selector.keyFunc = config.keyFunc
		selector.factory = config.factory
	}

	return &Dispatcher{
		next:     next,
		selector: selector,
		pool:     config.pool,
		logger:   config.logger,
	}, nil
}

// WrapClient installs a Dispatcher in front of the client's existing
// transport (http.DefaultTransport when nil). The client is modified in
// place, mirroring how a pipeline stage is attached to a named client.
func WrapClient(client *http.Client, opts ...DispatcherOption) error {
	if client == nil {
		return &ConfigurationError{Reason: "nil http client"}
	}

	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	dispatcher, err := NewDispatcher(next, opts...)
	if err != nil {
		return err
	}

	client.Transport = dispatcher
	return nil
}
