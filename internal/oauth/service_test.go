package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/config"
	"github.com/dhruv-db/tic-tac-sub000/internal/session"
)

// fakeIDP emulates the provider's token and userinfo endpoints. Codes are
// single-use, like the real provider.
type fakeIDP struct {
	mu        sync.Mutex
	usedCodes map[string]bool
	// verifier seen on the last exchange
	lastVerifier string
	lastRedirect string
	refreshCalls int
	server       *httptest.Server
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()
	idp := &fakeIDP{usedCodes: make(map[string]bool)}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", idp.handleToken)
	mux.HandleFunc("/userinfo", idp.handleUserinfo)
	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (f *fakeIDP) accessToken() string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, _ := json.Marshal(map[string]any{
		"sub":        "user-1",
		"email":      "claims@example.com",
		"company_id": "4711",
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func (f *fakeIDP) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Form.Get("grant_type") {
	case "authorization_code":
		code := r.Form.Get("code")
		if f.usedCodes[code] {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		f.usedCodes[code] = true
		f.lastVerifier = r.Form.Get("code_verifier")
		f.lastRedirect = r.Form.Get("redirect_uri")
	case "refresh_token":
		f.refreshCalls++
		if r.Form.Get("refresh_token") == "revoked" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  f.accessToken(),
		"refresh_token": "refresh-new",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"scope":         strings.Join(Scopes, " "),
	})
}

func (f *fakeIDP) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"email": "user@example.com"})
}

func newTestService(t *testing.T, idp *fakeIDP) (*Service, session.Store) {
	t.Helper()
	cfg := &config.Config{
		AppEnv:          config.EnvTest,
		PublicDomain:    "https://app.example.com",
		BexioClientID:   "client-1",
		BexioIDPBaseURL: idp.server.URL,
	}
	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	store := session.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewService(provider, store), store
}

func TestNewProviderRequiresClientID(t *testing.T) {
	_, err := NewProvider(&config.Config{BexioIDPBaseURL: "https://idp"})
	if !errors.Is(err, ErrMissingClientConfig) {
		t.Fatalf("expected ErrMissingClientConfig, got %v", err)
	}
}

func TestInitiateBuildsAuthorizationURL(t *testing.T) {
	idp := newFakeIDP(t)
	svc, store := newTestService(t, idp)

	result, err := svc.Initiate(context.Background(), "https://app/cb", session.PlatformWeb)
	if err != nil {
		t.Fatalf("Initiate error: %v", err)
	}

	parsed, err := url.Parse(result.AuthorizationURL)
	if err != nil {
		t.Fatalf("authorization URL unparsable: %v", err)
	}
	q := parsed.Query()
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
	if q.Get("client_id") != "client-1" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("code_challenge_method = %q", q.Get("code_challenge_method"))
	}
	if q.Get("code_challenge") == "" {
		t.Error("code_challenge missing")
	}
	if q.Get("redirect_uri") != "https://app/cb" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if !strings.Contains(q.Get("scope"), "monitoring_edit") {
		t.Errorf("scope = %q", q.Get("scope"))
	}

	// The state decodes to the registered session.
	state, err := DecodeState(result.State)
	if err != nil {
		t.Fatalf("DecodeState error: %v", err)
	}
	if state.SessionID != result.SessionID {
		t.Fatalf("state session %q != %q", state.SessionID, result.SessionID)
	}
	stored, err := store.Get(context.Background(), result.SessionID)
	if err != nil {
		t.Fatalf("session not registered: %v", err)
	}
	if stored.Status != session.StatusPending || stored.CodeVerifier != result.CodeVerifier {
		t.Fatalf("unexpected pending session: %+v", stored)
	}
}

func TestHandleCallbackCompletesSession(t *testing.T) {
	idp := newFakeIDP(t)
	svc, store := newTestService(t, idp)
	ctx := context.Background()

	init, err := svc.Initiate(ctx, "https://app/cb", session.PlatformMobile)
	if err != nil {
		t.Fatalf("Initiate error: %v", err)
	}

	result, err := svc.HandleCallback(ctx, "code-1", init.State)
	if err != nil {
		t.Fatalf("HandleCallback error: %v", err)
	}
	if result.Platform != session.PlatformMobile {
		t.Errorf("Platform = %q", result.Platform)
	}
	if result.UserEmail != "user@example.com" {
		t.Errorf("UserEmail = %q", result.UserEmail)
	}
	if result.CompanyID != "4711" {
		t.Errorf("CompanyID = %q", result.CompanyID)
	}

	// The exchange must use the stored verifier and redirect URI verbatim.
	if idp.lastVerifier != init.CodeVerifier {
		t.Errorf("exchange used verifier %q, want stored one", idp.lastVerifier)
	}
	if idp.lastRedirect != "https://app/cb" {
		t.Errorf("exchange used redirect %q", idp.lastRedirect)
	}

	sess, err := store.Get(ctx, init.SessionID)
	if err != nil {
		t.Fatalf("session gone: %v", err)
	}
	if sess.Status != session.StatusCompleted || sess.Tokens == nil {
		t.Fatalf("session not finalized: %+v", sess)
	}
	if sess.Tokens.ExpiresAt <= time.Now().UnixMilli() {
		t.Fatal("token expiry must be in the future")
	}
}

func TestHandleCallbackStateMismatchStillSucceeds(t *testing.T) {
	idp := newFakeIDP(t)
	svc, _ := newTestService(t, idp)
	ctx := context.Background()

	init, err := svc.Initiate(ctx, "https://app/cb", session.PlatformWeb)
	if err != nil {
		t.Fatalf("Initiate error: %v", err)
	}

	// Tamper with the embedded verifier tail. The stored verifier is still
	// the one used in the exchange, so the flow must succeed.
	tampered := State{SessionID: init.SessionID, VerifierTail: "bogus!!!"}.Encode()
	if _, err := svc.HandleCallback(ctx, "code-2", tampered); err != nil {
		t.Fatalf("mismatched state tail must not abort the exchange: %v", err)
	}
	if idp.lastVerifier != init.CodeVerifier {
		t.Fatalf("exchange used %q, want stored verifier", idp.lastVerifier)
	}
}

func TestHandleCallbackReusedCodeFails(t *testing.T) {
	idp := newFakeIDP(t)
	svc, store := newTestService(t, idp)
	ctx := context.Background()

	init, _ := svc.Initiate(ctx, "https://app/cb", session.PlatformWeb)
	if _, err := svc.HandleCallback(ctx, "code-3", init.State); err != nil {
		t.Fatalf("first exchange failed: %v", err)
	}

	// A second session replaying the same single-use code gets a terminal
	// token_exchange_failed, not a crash.
	init2, _ := svc.Initiate(ctx, "https://app/cb", session.PlatformWeb)
	_, err := svc.HandleCallback(ctx, "code-3", init2.State)
	if !errors.Is(err, ErrExchangeFailed) {
		t.Fatalf("expected ErrExchangeFailed, got %v", err)
	}
	sess, err := store.Get(ctx, init2.SessionID)
	if err != nil {
		t.Fatalf("session gone: %v", err)
	}
	if sess.Status != session.StatusError || sess.Error != ErrExchangeFailed.Error() {
		t.Fatalf("session not marked failed: %+v", sess)
	}
}

func TestHandleCallbackUnknownSession(t *testing.T) {
	idp := newFakeIDP(t)
	svc, _ := newTestService(t, idp)

	state := State{SessionID: "ghost", VerifierTail: "t"}.Encode()
	_, err := svc.HandleCallback(context.Background(), "code", state)
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected session.ErrNotFound, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	idp := newFakeIDP(t)
	svc, _ := newTestService(t, idp)

	result, err := svc.Refresh(context.Background(), "refresh-old")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken != "refresh-new" {
		t.Fatalf("unexpected refresh result: %+v", result)
	}
	if result.ExpiresIn <= 0 {
		t.Fatalf("ExpiresIn = %d", result.ExpiresIn)
	}
}

func TestRefreshRevokedTokenMirrorsProvider(t *testing.T) {
	idp := newFakeIDP(t)
	svc, _ := newTestService(t, idp)

	_, err := svc.Refresh(context.Background(), "revoked")
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Status != http.StatusBadRequest {
		t.Fatalf("Status = %d", remote.Status)
	}
	if !strings.Contains(remote.Body, "invalid_grant") {
		t.Fatalf("Body = %q", remote.Body)
	}
}
