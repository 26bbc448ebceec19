// Package session stores the server-side state of in-flight OAuth
// authorization attempts, keyed by session id. Sessions are short-lived:
// any entry older than the TTL is treated as absent and removed.
package session

import (
	"context"
	"errors"
	"time"
)

// TTL is the maximum age of a session. Expired sessions are deleted lazily
// on read and by the periodic cleanup.
const TTL = 10 * time.Minute

// ErrNotFound is returned when a session is absent or expired.
var ErrNotFound = errors.New("session not found")

// Status is the lifecycle state of an authorization attempt.
type Status string

// Session statuses. A session transitions pending -> completed (or error)
// exactly once.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Platform tags the client variant that initiated the flow.
type Platform string

// Supported platforms
const (
	PlatformWeb    Platform = "web"
	PlatformMobile Platform = "mobile"
)

// TokenSet is the token payload attached to a completed session.
type TokenSet struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresAt is epoch milliseconds.
	ExpiresAt int64  `json:"expiresAt"`
	TokenType string `json:"tokenType,omitempty"`
	Scope     string `json:"scope,omitempty"`
}

// Session is one authorization attempt. CodeVerifier is immutable after
// creation; only the callback handler mutates the rest.
type Session struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	CodeVerifier string    `json:"codeVerifier"`
	Platform     Platform  `json:"platform"`
	RedirectURI  string    `json:"redirectUri"`
	CreatedAt    time.Time `json:"createdAt"`

	// Set when the exchange completes.
	Tokens    *TokenSet `json:"tokens,omitempty"`
	UserEmail string    `json:"userEmail,omitempty"`
	CompanyID string    `json:"companyId,omitempty"`

	// Set when the flow fails.
	Error string `json:"error,omitempty"`
}

// Expired reports whether the session is older than the TTL.
func (s *Session) Expired() bool {
	return time.Since(s.CreatedAt) > TTL
}

// Store is the interface for session persistence backends. The in-memory
// backend serves single-instance deployments; the Redis backend serves
// multi-instance ones. Exactly one backend is active per process.
type Store interface {
	// Create registers a new session. The id must not already exist.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session, or ErrNotFound when absent or expired.
	// Expired sessions are deleted as a side effect.
	Get(ctx context.Context, id string) (*Session, error)

	// Update replaces a session's state. Last writer wins; there is one
	// writer (the callback handler) per session.
	Update(ctx context.Context, s *Session) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions.
	Cleanup(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
