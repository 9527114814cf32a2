package resilienthttp

import (
	"errors"
	"fmt"
)

// ErrNilRequest is returned when a nil request reaches the dispatcher or its
// inner operation. It is a programming error, never retried.
var ErrNilRequest = errors.New("resilienthttp: nil request")

// ErrNilTransport is returned when a dispatcher is constructed without an
// inner transport.
var ErrNilTransport = errors.New("resilienthttp: nil inner transport")

// ConfigurationError reports a wiring or selection problem: a selector that
// returned no strategy, a registry lookup by fixed key that found nothing,
// or conflicting dispatcher options. It is fatal to the call (or to wiring)
// and is never retried.
type ConfigurationError struct {
	// Method and Target identify the offending request when the error arose
	// during per-request selection.
	Method string
	Target string

	// Key is the registry key involved, when the error arose from a
	// registry lookup.
	Key string

	// Reason describes what went wrong.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	switch {
	case e.Key != "" && e.Method == "":
		return fmt.Sprintf("resilienthttp: configuration error for key %q: %s", e.Key, e.Reason)
	case e.Method != "" || e.Target != "":
		return fmt.Sprintf("resilienthttp: configuration error for %s %s: %s", e.Method, e.Target, e.Reason)
	default:
		return fmt.Sprintf("resilienthttp: configuration error: %s", e.Reason)
	}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
