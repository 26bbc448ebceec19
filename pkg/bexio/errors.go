package bexio

import (
	"errors"
	"fmt"
)

// Errors callers can test for with errors.Is
var (
	// ErrNoCredential is returned when no credential has been stored yet.
	ErrNoCredential = errors.New("no credential stored")
	// ErrReauthRequired is returned when the refresh token was rejected and
	// the credential has been cleared. The user must re-authenticate.
	ErrReauthRequired = errors.New("re-authentication required")
)

// RemoteError carries a non-2xx response from the proxy or the provider.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote returned status %d: %s", e.Status, e.Body)
}

// IsRetryable reports whether the failure is transient: rate limiting or
// a server-side error. Client errors other than 429 are terminal.
func (e *RemoteError) IsRetryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// PartialUpdateError is returned when a delete-then-recreate update deleted
// the original entry but failed to create the replacement. The original
// entry is gone; callers must surface this, not retry blindly.
type PartialUpdateError struct {
	DeletedID int
	Cause     error
}

func (e *PartialUpdateError) Error() string {
	return fmt.Sprintf("time entry %d was deleted but recreate failed: %v", e.DeletedID, e.Cause)
}

func (e *PartialUpdateError) Unwrap() error { return e.Cause }
