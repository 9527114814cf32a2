package resilienthttp

import (
	"net/http"
)

// SelectorFunc resolves the strategy for a request. Returning a nil strategy
// is a configuration error: the dispatch fails before any network attempt.
type SelectorFunc func(req *http.Request) (HTTPStrategy, error)

// KeyFunc derives the registry key for a request, typically from its
// identifying attributes (method, host, path).
type KeyFunc func(req *http.Request) string

// StrategyFactory builds a strategy for a request whose key missed the
// registry. The request's own context carries any per-call state the factory
// needs. The factory runs at most once per key; later requests with the same
// key reuse the installed strategy.
type StrategyFactory func(req *http.Request, key string) (HTTPStrategy, error)

// MethodHostKey is the default KeyFunc: "METHOD host", e.g. "GET api.example.com".
func MethodHostKey(req *http.Request) string {
	host := ""
	if req.URL != nil {
		host = req.URL.Host
	}
	return req.Method + " " + host
}

// strategySelector resolves which strategy applies to a request. Exactly one
// selection mode is set, enforced by the dispatcher constructor.
type strategySelector struct {
	fixed    HTTPStrategy
	selector SelectorFunc
	registry *Registry[*http.Response]
	keyFunc  KeyFunc
	factory  StrategyFactory
}

// selectStrategy resolves the strategy for req. Failures are configuration
// errors and abort the dispatch before any network attempt.
func (s *strategySelector) selectStrategy(req *http.Request) (HTTPStrategy, error) {
	switch {
	case s.fixed != nil:
		return s.fixed, nil

	case s.selector != nil:
		strategy, err := s.selector(req)
		if err != nil {
			return nil, err
		}
		if strategy == nil {
			return nil, &ConfigurationError{
				Method: req.Method,
				Target: req.URL.String(),
				Reason: "strategy selector returned no strategy",
			}
		}
		return strategy, nil

	case s.registry != nil:
		key := s.keyFunc(req)
		return s.registry.GetOrBuild(key, func() (HTTPStrategy, error) {
			return s.factory(req, key)
		})

	default:
		return nil, &ConfigurationError{
			Method: req.Method,
			Target: req.URL.String(),
			Reason: "dispatcher has no strategy source configured",
		}
	}
}
