package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/jwtutil"
	"github.com/dhruv-db/tic-tac-sub000/internal/logger"
	"github.com/dhruv-db/tic-tac-sub000/internal/pkce"
	"github.com/dhruv-db/tic-tac-sub000/internal/session"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Service coordinates the authorization flow: it registers pending sessions,
// runs the code exchange on callback, and finalizes sessions with tokens.
type Service struct {
	provider *Provider
	sessions session.Store
}

// NewService creates the OAuth service.
func NewService(provider *Provider, sessions session.Store) *Service {
	return &Service{provider: provider, sessions: sessions}
}

// Sessions exposes the session store for the status endpoint.
func (s *Service) Sessions() session.Store {
	return s.sessions
}

// InitiateResult is returned to the client that starts an authorization.
type InitiateResult struct {
	AuthorizationURL string `json:"authorizationUrl"`
	CodeVerifier     string `json:"codeVerifier"`
	State            string `json:"state"`
	SessionID        string `json:"sessionId"`
}

// Initiate generates a PKCE pair, registers a pending session, and returns
// the fully constructed authorization URL.
func (s *Service) Initiate(ctx context.Context, redirectURI string, platform session.Platform) (*InitiateResult, error) {
	pair, err := pkce.Generate()
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	sess := &session.Session{
		ID:           sessionID,
		Status:       session.StatusPending,
		CodeVerifier: pair.Verifier,
		Platform:     platform,
		RedirectURI:  redirectURI,
		CreatedAt:    time.Now(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("oauth: register session: %w", err)
	}

	state := NewState(sessionID, pair.Verifier).Encode()
	authURL := s.provider.AuthURL(redirectURI, state, pair.Challenge)

	logger.Info("Authorization initiated", "sessionId", sessionID, "platform", platform)

	return &InitiateResult{
		AuthorizationURL: authURL,
		CodeVerifier:     pair.Verifier,
		State:            state,
		SessionID:        sessionID,
	}, nil
}

// CallbackResult describes a finalized authorization attempt.
type CallbackResult struct {
	SessionID string
	Platform  session.Platform
	UserEmail string
	CompanyID string
}

// HandleCallback validates the state, exchanges the code with the stored
// verifier, optionally fetches the user profile, and completes the session.
func (s *Service) HandleCallback(ctx context.Context, code, encodedState string) (*CallbackResult, error) {
	state, err := DecodeState(encodedState)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, state.SessionID)
	if err != nil {
		return nil, err
	}

	// Defense in depth only: the embedded tail is informational. The
	// exchange below uses the stored verifier, which is the real trust
	// boundary, so a mismatch is logged but does not abort.
	if !state.MatchesVerifier(sess.CodeVerifier) {
		logger.Warn("State verifier material does not match stored session",
			"sessionId", sess.ID)
	}

	token, err := s.provider.Exchange(ctx, code, sess.CodeVerifier, sess.RedirectURI)
	if err != nil {
		s.failSession(ctx, sess, ErrExchangeFailed.Error())
		var remote *RemoteError
		if errors.As(err, &remote) {
			logger.Error("Token exchange rejected", "sessionId", sess.ID, "status", remote.Status)
			return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	result := &CallbackResult{SessionID: sess.ID, Platform: sess.Platform}

	// Best effort: a profile failure leaves the email absent, nothing more.
	if profile, err := s.provider.FetchProfile(ctx, token.AccessToken); err != nil {
		logger.Warn("Profile fetch failed", "sessionId", sess.ID, "error", err)
	} else {
		result.UserEmail = profile.Email
	}

	// Claim extraction, not authentication: recover the tenant id when the
	// provider embeds it.
	if claims, err := jwtutil.ExtractClaims(token.AccessToken); err != nil {
		logger.Warn("Access token claims not extractable", "sessionId", sess.ID, "error", err)
	} else {
		result.CompanyID = claims.CompanyID
		if result.UserEmail == "" {
			result.UserEmail = claims.Email
		}
	}

	sess.Status = session.StatusCompleted
	sess.Tokens = tokenSet(token)
	sess.UserEmail = result.UserEmail
	sess.CompanyID = result.CompanyID
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("oauth: finalize session: %w", err)
	}

	logger.Info("Authorization completed", "sessionId", sess.ID, "companyId", result.CompanyID)
	return result, nil
}

// FailCallback marks a session failed when the provider redirected back
// with an error instead of a code.
func (s *Service) FailCallback(ctx context.Context, encodedState, reason string) (session.Platform, error) {
	state, err := DecodeState(encodedState)
	if err != nil {
		return "", err
	}
	sess, err := s.sessions.Get(ctx, state.SessionID)
	if err != nil {
		return "", err
	}
	s.failSession(ctx, sess, reason)
	return sess.Platform, nil
}

func (s *Service) failSession(ctx context.Context, sess *session.Session, reason string) {
	sess.Status = session.StatusError
	sess.Error = reason
	if err := s.sessions.Update(ctx, sess); err != nil {
		logger.Error("Failed to record session error", "sessionId", sess.ID, "error", err)
	}
}

// Exchange trades a code and caller-held verifier for tokens without a
// session, for clients that manage the verifier themselves.
func (s *Service) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (*session.TokenSet, error) {
	token, err := s.provider.Exchange(ctx, code, codeVerifier, redirectURI)
	if err != nil {
		return nil, err
	}
	return tokenSet(token), nil
}

// RefreshResult is the refresh endpoint payload.
type RefreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Refresh exchanges a refresh token for a new pair. The provider may omit
// the new refresh token, in which case the caller keeps the old one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	token, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	expiresIn := int64(time.Until(token.Expiry).Seconds())
	if token.Expiry.IsZero() {
		expiresIn = 3600
	}
	return &RefreshResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

func tokenSet(token *oauth2.Token) *session.TokenSet {
	scope, _ := token.Extra("scope").(string)
	return &session.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.UnixMilli(),
		TokenType:    token.TokenType,
		Scope:        scope,
	}
}
