package resilienthttp

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// BuilderFunc constructs a Strategy for lazy registry entries.
type BuilderFunc[T any] func() (Strategy[T], error)

// Registry is a concurrent named store of strategies. Entries are installed
// eagerly with TryAdd, or lazily: a deferred builder registered with
// TryAddBuilder (or passed to GetOrBuild) runs at most once per key, even
// under concurrent first lookups: losers of the build race wait for the
// winner's result rather than constructing a second strategy.
//
// Entries persist for the life of the registry; there is no eviction.
type Registry[T any] struct {
	mu         sync.RWMutex
	strategies map[string]Strategy[T]
	builders   map[string]BuilderFunc[T]
	group      singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		strategies: make(map[string]Strategy[T]),
		builders:   make(map[string]BuilderFunc[T]),
	}
}

// Get returns the strategy for key. If no strategy is installed but a
// deferred builder is registered, the builder runs (once) and its result is
// installed and returned. Get returns false on a miss with no builder, or if
// the builder failed.
func (r *Registry[T]) Get(key string) (Strategy[T], bool) {
	r.mu.RLock()
	s, ok := r.strategies[key]
	builder, hasBuilder := r.builders[key]
	r.mu.RUnlock()

	if ok {
		return s, true
	}
	if !hasBuilder {
		return nil, false
	}

	s, err := r.build(key, builder)
	if err != nil {
		return nil, false
	}
	return s, true
}

// GetOrBuild returns the strategy for key, building and installing it with
// builder on a miss. Concurrent calls for the same missing key share a
// single builder invocation and all observe the same installed strategy.
func (r *Registry[T]) GetOrBuild(key string, builder BuilderFunc[T]) (Strategy[T], error) {
	r.mu.RLock()
	s, ok := r.strategies[key]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}
	if builder == nil {
		return nil, &ConfigurationError{Key: key, Reason: "nil strategy builder"}
	}
	return r.build(key, builder)
}

// build runs builder under a per-key single flight, double-checking the
// cache inside the flight so an installed strategy is never rebuilt.
func (r *Registry[T]) build(key string, builder BuilderFunc[T]) (Strategy[T], error) {
	v, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		s, ok := r.strategies[key]
		r.mu.RUnlock()
		if ok {
			return s, nil
		}

		s, err := builder()
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, &ConfigurationError{Key: key, Reason: "strategy builder returned nil"}
		}

		r.mu.Lock()
		// A concurrent TryAdd may have won; keep the installed entry.
		if existing, ok := r.strategies[key]; ok {
			s = existing
		} else {
			r.strategies[key] = s
			delete(r.builders, key)
		}
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Strategy[T]), nil
}

// TryAdd installs a strategy eagerly. It returns false without modifying the
// registry if the key already holds a strategy.
func (r *Registry[T]) TryAdd(key string, s Strategy[T]) bool {
	if s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[key]; ok {
		return false
	}
	r.strategies[key] = s
	delete(r.builders, key)
	return true
}

// TryAddBuilder registers a deferred builder for key. The first lookup after
// registration runs the builder exactly once and caches the result. It
// returns false if the key already holds a strategy or a builder.
func (r *Registry[T]) TryAddBuilder(key string, builder BuilderFunc[T]) bool {
	if builder == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[key]; ok {
		return false
	}
	if _, ok := r.builders[key]; ok {
		return false
	}
	r.builders[key] = builder
	return true
}

// Keys returns a snapshot of the keys with an installed strategy.
func (r *Registry[T]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.strategies))
	for k := range r.strategies {
		keys = append(keys, k)
	}
	return keys
}
