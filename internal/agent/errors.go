package agent

import (
	"errors"
	"fmt"

	"github.com/ent0n29/talkmate/internal/reliability"
)

// ErrNotInitialized is returned when the agent is used before credentials are configured.
var ErrNotInitialized = errors.New("conversation agent not initialized")

// TransportError wraps a failed round trip to the generation endpoint.
type TransportError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s transport error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the request could succeed. Errors without a status
// (connection resets, timeouts) are treated as retryable.
func (e *TransportError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return reliability.IsRetryableHTTPStatus(e.StatusCode)
}

// IsRetryable classifies any error returned by SendMessage.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return false
}
