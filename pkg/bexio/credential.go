// Package bexio provides a client for the tic-tac proxy server: credential
// management with proactive token refresh, and CRUD operations on contacts,
// projects, and time entries through the authenticated proxy.
package bexio

import "time"

// AuthType distinguishes the two supported authentication modes.
type AuthType string

// Supported authentication modes
const (
	AuthTypeAPIKey AuthType = "api"
	AuthTypeOAuth  AuthType = "oauth"
)

// Credential is the single authoritative authentication state of a client
// instance. Exactly one credential is active at a time; it is superseded
// (never mutated in place) on every refresh and destroyed on disconnect.
type Credential struct {
	AuthType     AuthType `json:"authType"`
	APIKey       string   `json:"apiKey,omitempty"`
	CompanyID    string   `json:"companyId"`
	AccessToken  string   `json:"accessToken,omitempty"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	UserEmail    string   `json:"userEmail,omitempty"`
	// ExpiresAt is epoch milliseconds; zero for API-key credentials.
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}

// IsOAuth reports whether the credential carries OAuth tokens.
func (c *Credential) IsOAuth() bool {
	return c != nil && c.AuthType == AuthTypeOAuth
}

// ExpiresWithin reports whether an OAuth credential expires within d.
// API-key credentials never expire.
func (c *Credential) ExpiresWithin(d time.Duration) bool {
	if !c.IsOAuth() {
		return false
	}
	if c.ExpiresAt == 0 {
		return true
	}
	expiry := time.UnixMilli(c.ExpiresAt)
	return time.Now().Add(d).After(expiry)
}

// TokenSet is the result of a completed code exchange or token refresh.
type TokenSet struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresAt is epoch milliseconds.
	ExpiresAt int64  `json:"expiresAt"`
	TokenType string `json:"tokenType,omitempty"`
	Scope     string `json:"scope,omitempty"`
}
