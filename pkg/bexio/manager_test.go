package bexio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubStore struct {
	mu   sync.Mutex
	cred *Credential
}

func (s *stubStore) Load() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, ErrNoCredential
	}
	copy := *s.cred
	return &copy, nil
}

func (s *stubStore) Save(cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *cred
	s.cred = &copy
	return nil
}

func (s *stubStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}

type stubRefresher struct {
	calls  atomic.Int64
	delay  time.Duration
	result *TokenSet
	err    error
}

func (r *stubRefresher) Refresh(_ context.Context, _ string) (*TokenSet, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func expiredOAuthCredential() *Credential {
	return &Credential{
		AuthType:     AuthTypeOAuth,
		CompanyID:    "company-1",
		AccessToken:  "stale-access",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	}
}

func TestEnsureValidToken_APIKeyPassthrough(t *testing.T) {
	store := &stubStore{cred: &Credential{AuthType: AuthTypeAPIKey, APIKey: "key-123", CompanyID: "c"}}
	refresher := &stubRefresher{}
	m := NewTokenManager(store, refresher)

	token, err := m.EnsureValidToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureValidToken error: %v", err)
	}
	if token != "key-123" {
		t.Fatalf("expected api key, got %q", token)
	}
	if refresher.calls.Load() != 0 {
		t.Fatalf("api key credential must not trigger refresh")
	}
}

func TestEnsureValidToken_CachedWhileFresh(t *testing.T) {
	store := &stubStore{cred: &Credential{
		AuthType:     AuthTypeOAuth,
		AccessToken:  "fresh-access",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}}
	refresher := &stubRefresher{}
	m := NewTokenManager(store, refresher)

	token, err := m.EnsureValidToken(context.Background())
	if err != nil {
		t.Fatalf("EnsureValidToken error: %v", err)
	}
	if token != "fresh-access" {
		t.Fatalf("expected cached token, got %q", token)
	}
	if refresher.calls.Load() != 0 {
		t.Fatalf("fresh token must not trigger refresh")
	}
}

func TestEnsureValidToken_SingleFlight(t *testing.T) {
	store := &stubStore{cred: expiredOAuthCredential()}
	refresher := &stubRefresher{
		delay: 50 * time.Millisecond,
		result: &TokenSet{
			AccessToken:  "new-access",
			RefreshToken: "refresh-2",
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		},
	}
	m := NewTokenManager(store, refresher)

	const callers = 16
	tokens := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.EnsureValidToken(context.Background())
		}(i)
	}
	wg.Wait()

	if got := refresher.calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 refresh call, got %d", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error: %v", i, errs[i])
		}
		if tokens[i] != "new-access" {
			t.Fatalf("caller %d got %q, want new-access", i, tokens[i])
		}
	}

	// The refreshed credential must be persisted.
	stored, err := store.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if stored.AccessToken != "new-access" || stored.RefreshToken != "refresh-2" {
		t.Fatalf("refreshed credential not persisted: %+v", stored)
	}
}

func TestEnsureValidToken_RefreshTokenRotationOmitted(t *testing.T) {
	store := &stubStore{cred: expiredOAuthCredential()}
	refresher := &stubRefresher{
		result: &TokenSet{
			AccessToken: "new-access",
			// Provider omitted the refresh token: the previous one stays.
			ExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
		},
	}
	m := NewTokenManager(store, refresher)

	if _, err := m.EnsureValidToken(context.Background()); err != nil {
		t.Fatalf("EnsureValidToken error: %v", err)
	}
	stored, _ := store.Load()
	if stored.RefreshToken != "refresh-1" {
		t.Fatalf("expected previous refresh token retained, got %q", stored.RefreshToken)
	}
}

func TestEnsureValidToken_InvalidRefreshTokenClearsCredential(t *testing.T) {
	store := &stubStore{cred: expiredOAuthCredential()}
	refresher := &stubRefresher{err: &RemoteError{Status: 400, Body: "invalid_grant"}}
	m := NewTokenManager(store, refresher)

	_, err := m.EnsureValidToken(context.Background())
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected cleared credential, got %v", err)
	}
}

func TestEnsureValidToken_TransientFailureRetriesThenFails(t *testing.T) {
	store := &stubStore{cred: expiredOAuthCredential()}
	refresher := &stubRefresher{err: &RemoteError{Status: 503, Body: "unavailable"}}
	m := NewTokenManager(store, refresher)
	// Shrink the backoff so the test stays fast.
	m.policy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Retryable: IsTransient}

	_, err := m.EnsureValidToken(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if errors.Is(err, ErrReauthRequired) {
		t.Fatalf("transient failure must not force re-authentication: %v", err)
	}
	if got := refresher.calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	// The credential survives a transient outage.
	if _, err := store.Load(); err != nil {
		t.Fatalf("credential should be retained: %v", err)
	}
}

func TestDisconnectDestroysCredential(t *testing.T) {
	store := &stubStore{cred: expiredOAuthCredential()}
	m := NewTokenManager(store, &stubRefresher{})

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect error: %v", err)
	}
	if _, err := m.EnsureValidToken(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential after disconnect, got %v", err)
	}
}
