package llm

import (
	"errors"
	"fmt"
)

// ErrNoProvider is returned when no provider is registered for a kind.
var ErrNoProvider = errors.New("no provider registered")

// ProviderError wraps a transport failure or non-2xx reply from a backend.
type ProviderError struct {
	Provider   Kind
	Model      string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err carries a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
