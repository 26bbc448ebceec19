package bexio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AuthFlow drives the polling variant of the authorization flow: initiate,
// hand the URL to a browser, then poll the session until the callback
// completes it.
type AuthFlow struct {
	// BaseURL is the tic-tac server base URL, without trailing slash.
	BaseURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// PollInterval defaults to 2 seconds.
	PollInterval time.Duration
}

// InitiateResult is the server's response to an authorization initiation.
type InitiateResult struct {
	AuthorizationURL string `json:"authorizationUrl"`
	CodeVerifier     string `json:"codeVerifier"`
	State            string `json:"state"`
	SessionID        string `json:"sessionId"`
}

// SessionResult is the polled session status.
type SessionResult struct {
	Status    string     `json:"status"`
	Platform  string     `json:"platform"`
	CreatedAt time.Time  `json:"createdAt"`
	Data      *TokenData `json:"data,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// TokenData is the completed-session payload.
type TokenData struct {
	TokenSet
	UserEmail string `json:"userEmail,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

func (f *AuthFlow) client() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

// Initiate registers a pending session and returns the authorization URL
// the user must visit.
func (f *AuthFlow) Initiate(ctx context.Context, redirectURI, platform string) (*InitiateResult, error) {
	body, err := json.Marshal(map[string]string{
		"redirectUri": redirectURI,
		"platform":    platform,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/api/oauth/initiate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Status: resp.StatusCode, Body: string(raw)}
	}

	var result InitiateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bexio: decode initiate response: %w", err)
	}
	return &result, nil
}

// PollSession polls the session status until it completes, errors, or ctx
// expires. A 404 means the session expired server-side and the flow must
// be restarted.
func (f *AuthFlow) PollSession(ctx context.Context, sessionID string) (*TokenData, error) {
	interval := f.PollInterval
	if interval == 0 {
		interval = 2 * time.Second
	}

	for {
		result, err := f.fetchSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case "completed":
			if result.Data == nil {
				return nil, fmt.Errorf("bexio: completed session carried no tokens")
			}
			return result.Data, nil
		case "error":
			return nil, fmt.Errorf("bexio: authorization failed: %s", result.Error)
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (f *AuthFlow) fetchSession(ctx context.Context, sessionID string) (*SessionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/api/oauth/session/"+sessionID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("bexio: session %s expired or unknown, restart authorization", sessionID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Status: resp.StatusCode, Body: string(raw)}
	}

	var result SessionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("bexio: decode session response: %w", err)
	}
	return &result, nil
}
