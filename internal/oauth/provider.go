// Package oauth implements the bexio OAuth 2.0 authorization code flow with
// PKCE: authorization URL construction, code exchange, token refresh, and
// best-effort profile lookup.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/config"
	"golang.org/x/oauth2"
)

// Scopes is the fixed scope set requested on every authorization. Tokens
// missing any of these produce degraded functionality, surfaced to the user
// as a warning rather than an error.
var Scopes = []string{
	"openid",
	"profile",
	"email",
	"offline_access",
	"contact_show",
	"project_show",
	"monitoring_show",
	"monitoring_edit",
}

// exchangeTimeout bounds provider calls (exchange, refresh, userinfo).
const exchangeTimeout = 30 * time.Second

// Provider talks to the bexio identity provider.
type Provider struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewProvider creates a provider from the application configuration. It
// fails when the client id is missing.
func NewProvider(cfg *config.Config) (*Provider, error) {
	if strings.TrimSpace(cfg.BexioClientID) == "" {
		return nil, ErrMissingClientConfig
	}
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: exchangeTimeout},
	}, nil
}

func (p *Provider) endpoint() oauth2.Endpoint {
	base := strings.TrimSuffix(p.cfg.BexioIDPBaseURL, "/")
	return oauth2.Endpoint{
		AuthURL:  base + "/auth",
		TokenURL: base + "/token",
	}
}

func (p *Provider) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.BexioClientID,
		ClientSecret: p.cfg.BexioClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint:     p.endpoint(),
	}
}

// AuthURL builds the authorization URL with the S256 challenge.
func (p *Provider) AuthURL(redirectURI, state, codeChallenge string) string {
	conf := p.oauthConfig(redirectURI)
	return conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades an authorization code plus verifier for tokens. The
// redirect URI must be the exact one used for authorization; the provider
// rejects any mismatch.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*oauth2.Token, error) {
	ctx = p.withHTTPClient(ctx)
	conf := p.oauthConfig(redirectURI)

	token, err := conf.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, p.classify(err)
	}
	return token, nil
}

// Refresh exchanges a refresh token for a new token pair. Stateless: no
// session is involved.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = p.withHTTPClient(ctx)
	conf := p.oauthConfig(p.cfg.RedirectURI())

	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, p.classify(err)
	}
	return token, nil
}

// UserProfile is the subset of the userinfo response the application uses.
type UserProfile struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
}

// FetchProfile looks up the authenticated user's profile. Callers treat a
// failure as non-fatal: the session completes without an email.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	url := strings.TrimSuffix(p.cfg.BexioIDPBaseURL, "/") + "/userinfo"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
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

	var profile UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	return &profile, nil
}

// withHTTPClient routes oauth2 calls through the provider's bounded client.
func (p *Provider) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// classify maps oauth2 retrieval failures onto the provider error type so
// handlers can mirror the provider's status and body.
func (p *Provider) classify(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		status := 0
		if retrieve.Response != nil {
			status = retrieve.Response.StatusCode
		}
		return &RemoteError{Status: status, Body: string(retrieve.Body)}
	}
	return err
}
