package bexio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshSkew is how long before expiry a token is refreshed proactively.
const refreshSkew = 5 * time.Minute

// refreshTimeout bounds a single refresh call; a timeout counts as a
// transient failure eligible for retry.
const refreshTimeout = 30 * time.Second

// CredentialStore persists the client credential across restarts.
type CredentialStore interface {
	Load() (*Credential, error)
	Save(cred *Credential) error
	Clear() error
}

// Refresher exchanges a refresh token for a new token set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)
}

// TokenManager owns the single authoritative credential and produces a
// currently valid bearer token for every authenticated call. At most one
// refresh is in flight at any moment; concurrent callers share its result.
type TokenManager struct {
	store     CredentialStore
	refresher Refresher
	policy    RetryPolicy

	mu   sync.RWMutex
	cred *Credential

	group singleflight.Group
}

// NewTokenManager creates a token manager backed by the given credential
// store and refresher. The stored credential, if any, is loaded lazily on
// first use.
func NewTokenManager(store CredentialStore, refresher Refresher) *TokenManager {
	return &TokenManager{
		store:     store,
		refresher: refresher,
		policy:    DefaultWritePolicy(),
	}
}

// Credential returns a copy of the current credential, or ErrNoCredential.
func (m *TokenManager) Credential() (*Credential, error) {
	cred, err := m.current()
	if err != nil {
		return nil, err
	}
	copy := *cred
	return &copy, nil
}

// SetCredential replaces the authoritative credential and persists it.
func (m *TokenManager) SetCredential(cred *Credential) error {
	if cred == nil {
		return fmt.Errorf("bexio: credential is nil")
	}
	if err := m.store.Save(cred); err != nil {
		return err
	}
	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()
	return nil
}

// Disconnect destroys the credential. Callers are responsible for clearing
// dependent cached data.
func (m *TokenManager) Disconnect() error {
	m.mu.Lock()
	m.cred = nil
	m.mu.Unlock()
	return m.store.Clear()
}

// EnsureValidToken returns a bearer token that is valid for at least the
// refresh skew. API-key credentials are returned as-is. An expiring OAuth
// credential triggers exactly one refresh call shared by all concurrent
// callers; a rejected refresh token clears the credential and returns
// ErrReauthRequired.
func (m *TokenManager) EnsureValidToken(ctx context.Context) (string, error) {
	cred, err := m.current()
	if err != nil {
		return "", err
	}

	if cred.AuthType == AuthTypeAPIKey {
		return cred.APIKey, nil
	}

	if !cred.ExpiresWithin(refreshSkew) {
		return cred.AccessToken, nil
	}

	// Single-flight: all callers that observe an expiring token share one
	// outstanding refresh. Concurrent refreshes would race the provider's
	// refresh-token rotation.
	token, err, _ := m.group.Do("refresh", func() (any, error) {
		return m.refresh(ctx, cred)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *TokenManager) current() (*Credential, error) {
	m.mu.RLock()
	cred := m.cred
	m.mu.RUnlock()
	if cred != nil {
		return cred, nil
	}

	loaded, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cred = loaded
	m.mu.Unlock()
	return loaded, nil
}

func (m *TokenManager) refresh(ctx context.Context, cred *Credential) (string, error) {
	if cred.RefreshToken == "" {
		m.clearOnAuthFailure()
		return "", ErrReauthRequired
	}

	var tokens *TokenSet
	err := m.policy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()

		result, err := m.refresher.Refresh(ctx, cred.RefreshToken)
		if err != nil {
			return err
		}
		tokens = result
		return nil
	})
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && !remote.IsRetryable() {
			// The provider rejected the refresh token outright.
			m.clearOnAuthFailure()
			return "", fmt.Errorf("%w: %v", ErrReauthRequired, err)
		}
		return "", err
	}

	refreshToken := tokens.RefreshToken
	if refreshToken == "" {
		// Provider omitted a new refresh token; the previous one stays valid.
		refreshToken = cred.RefreshToken
	}

	updated := &Credential{
		AuthType:     AuthTypeOAuth,
		CompanyID:    cred.CompanyID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: refreshToken,
		UserEmail:    cred.UserEmail,
		ExpiresAt:    tokens.ExpiresAt,
	}
	if err := m.SetCredential(updated); err != nil {
		return "", fmt.Errorf("bexio: persist refreshed credential: %w", err)
	}
	return updated.AccessToken, nil
}

func (m *TokenManager) clearOnAuthFailure() {
	m.mu.Lock()
	m.cred = nil
	m.mu.Unlock()
	_ = m.store.Clear()
}

// HTTPRefresher refreshes tokens through the tic-tac server's refresh
// endpoint.
type HTTPRefresher struct {
	// BaseURL is the tic-tac server base URL, without trailing slash.
	BaseURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Refresh exchanges the refresh token for a new token set.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/api/oauth/refresh", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed refreshResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("bexio: decode refresh response: %w", err)
	}

	return &TokenSet{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second).UnixMilli(),
	}, nil
}
