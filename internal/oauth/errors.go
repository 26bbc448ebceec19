package oauth

import (
	"errors"
	"fmt"
)

// Errors callers can test for with errors.Is
var (
	// ErrMissingClientConfig is returned when the bexio client id is not
	// configured. Surfaced as a 500; the server is misconfigured.
	ErrMissingClientConfig = errors.New("bexio client id not configured")

	// ErrExchangeFailed wraps a provider rejection of the code exchange.
	// Authorization codes are single-use, so the attempt is terminal.
	ErrExchangeFailed = errors.New("token_exchange_failed")
)

// RemoteError mirrors a non-2xx response from the provider's token or
// userinfo endpoint.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
}
