// Package oauth contains the HTTP handlers for the OAuth authorization
// flow: initiation, provider callback, direct exchange, token refresh, and
// session status polling.
package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/config"
	"github.com/dhruv-db/tic-tac-sub000/internal/httputil"
	"github.com/dhruv-db/tic-tac-sub000/internal/logger"
	internaloauth "github.com/dhruv-db/tic-tac-sub000/internal/oauth"
	"github.com/dhruv-db/tic-tac-sub000/internal/session"
	"github.com/dhruv-db/tic-tac-sub000/internal/svrlib"
	"github.com/dhruv-db/tic-tac-sub000/internal/validation"
)

// completeScheme is the custom URI scheme the client apps register to
// receive the end of the authorization flow.
const completeScheme = "app://oauth-complete/"

type OAuthRouter struct {
	*svrlib.Router
	svc *internaloauth.Service
}

// RegisterRoutes registers all /api/oauth/* routes on the given mux, with the prefix handled by the caller.
func RegisterRoutes(mux *http.ServeMux, prefix string, cfg *config.Config, svc *internaloauth.Service) {
	router := &OAuthRouter{Router: svrlib.NewRouter(mux, prefix, cfg), svc: svc}
	mux.HandleFunc(prefix+"/initiate", router.InitiateHandler)
	mux.HandleFunc(prefix+"/callback", router.CallbackHandler)
	mux.HandleFunc(prefix+"/exchange", router.ExchangeHandler)
	mux.HandleFunc(prefix+"/refresh", router.RefreshHandler)
	mux.HandleFunc(prefix+"/session/", router.SessionStatusHandler)
}

type initiateRequest struct {
	RedirectURI string `json:"redirectUri"`
	Platform    string `json:"platform"`
}

// InitiateHandler handles POST /api/oauth/initiate requests
func (rt *OAuthRouter) InitiateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid JSON body", "error", err)
		return
	}

	v := validation.InitiateValidation{RedirectURI: req.RedirectURI, Platform: req.Platform}
	if err := v.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			httputil.WriteValidationError(w, verrs)
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	platform := session.Platform(req.Platform)
	if platform == "" {
		platform = session.PlatformWeb
	}

	result, err := rt.svc.Initiate(r.Context(), req.RedirectURI, platform)
	if err != nil {
		if errors.Is(err, internaloauth.ErrMissingClientConfig) {
			httputil.WriteError(w, http.StatusInternalServerError, "OAuth client not configured")
			return
		}
		httputil.WriteInternalError(w, err, "Failed to initiate authorization")
		return
	}

	httputil.WriteSuccess(w, result)
}

// CallbackHandler handles GET /api/oauth/callback requests from the provider
func (rt *OAuthRouter) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	encodedState := query.Get("state")

	// Provider signalled failure: bounce the error to the app.
	if errCode := query.Get("error"); errCode != "" {
		description := query.Get("error_description")
		logger.Warn("Provider returned authorization error", "error", errCode, "description", description)
		platform := session.PlatformWeb
		if encodedState != "" {
			if p, err := rt.svc.FailCallback(r.Context(), encodedState, errCode); err == nil {
				platform = p
			}
		}
		rt.writeCompletionPage(w, platform, fmt.Sprintf("%s?error=%s&description=%s",
			completeScheme, url.QueryEscape(errCode), url.QueryEscape(description)))
		return
	}

	code := query.Get("code")
	if code == "" || encodedState == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Missing code or state parameter")
		return
	}

	result, err := rt.svc.HandleCallback(r.Context(), code, encodedState)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "Session expired or unknown, restart authorization")
			return
		}
		logger.Error("Callback exchange failed", "error", err)
		rt.writeCompletionPage(w, session.PlatformWeb, fmt.Sprintf("%s?error=%s",
			completeScheme, url.QueryEscape("token_exchange_failed")))
		return
	}

	rt.writeCompletionPage(w, result.Platform, fmt.Sprintf("%s?sessionId=%s",
		completeScheme, url.QueryEscape(result.SessionID)))
}

// writeCompletionPage renders the platform-specific HTML that hands control
// back to the application: web redirects to the deep link, mobile closes the
// embedded browser and defers to session polling.
func (rt *OAuthRouter) writeCompletionPage(w http.ResponseWriter, platform session.Platform, target string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	escaped := html.EscapeString(target)
	switch platform {
	case session.PlatformMobile:
		fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><title>Sign-in complete</title></head>
<body>
<p>You can close this window and return to the app.</p>
<script>
  try { window.location.href = %q; } catch (e) {}
  setTimeout(function() { window.close(); }, 500);
</script>
</body></html>`, target)
	default:
		fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><title>Sign-in complete</title>
<meta http-equiv="refresh" content="0;url=%s"></head>
<body>
<p>Sign-in complete. Returning to the app&hellip;</p>
<script>window.location.href = %q;</script>
</body></html>`, escaped, target)
	}
}

type exchangeRequest struct {
	Code         string `json:"code"`
	CodeVerifier string `json:"codeVerifier"`
	RedirectURI  string `json:"redirectUri"`
}

// ExchangeHandler handles POST /api/oauth/exchange requests for clients
// that hold their own verifier
func (rt *OAuthRouter) ExchangeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid JSON body", "error", err)
		return
	}

	v := validation.ExchangeValidation{Code: req.Code, CodeVerifier: req.CodeVerifier, RedirectURI: req.RedirectURI}
	if err := v.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			httputil.WriteValidationError(w, verrs)
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tokens, err := rt.svc.Exchange(r.Context(), req.Code, req.CodeVerifier, req.RedirectURI)
	if err != nil {
		rt.writeProviderError(w, err, "Token exchange failed")
		return
	}

	httputil.WriteSuccess(w, tokens)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshHandler handles POST /api/oauth/refresh requests
func (rt *OAuthRouter) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid JSON body", "error", err)
		return
	}

	v := validation.RefreshValidation{RefreshToken: req.RefreshToken}
	if err := v.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			httputil.WriteValidationError(w, verrs)
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := rt.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		rt.writeProviderError(w, err, "Token refresh failed")
		return
	}

	httputil.WriteSuccess(w, result)
}

type sessionStatusResponse struct {
	Status    session.Status   `json:"status"`
	Platform  session.Platform `json:"platform"`
	CreatedAt time.Time        `json:"createdAt"`
	Data      *sessionData     `json:"data,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type sessionData struct {
	session.TokenSet
	UserEmail string `json:"userEmail,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

// SessionStatusHandler handles GET /api/oauth/session/{sessionId} requests
func (rt *OAuthRouter) SessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, rt.BaseRoute+"/session/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		httputil.WriteError(w, http.StatusBadRequest, "Missing session id")
		return
	}

	store := rt.svc.Sessions()
	sess, err := store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "Session not found or expired")
			return
		}
		httputil.WriteInternalError(w, err, "Failed to load session")
		return
	}

	resp := sessionStatusResponse{
		Status:    sess.Status,
		Platform:  sess.Platform,
		CreatedAt: sess.CreatedAt,
		Error:     sess.Error,
	}
	if sess.Status == session.StatusCompleted && sess.Tokens != nil {
		resp.Data = &sessionData{
			TokenSet:  *sess.Tokens,
			UserEmail: sess.UserEmail,
			CompanyID: sess.CompanyID,
		}
	}

	httputil.WriteSuccess(w, resp)

	// A completed session is single-read: delete it once reported so the
	// tokens cannot be fetched twice.
	if sess.Status == session.StatusCompleted {
		if err := store.Delete(r.Context(), sessionID); err != nil {
			logger.Error("Failed to delete completed session", "sessionId", sessionID, "error", err)
		}
	}
}

// writeProviderError mirrors a provider rejection's status and body, and
// falls back to 502 for network-level failures.
func (rt *OAuthRouter) writeProviderError(w http.ResponseWriter, err error, message string) {
	var remote *internaloauth.RemoteError
	if errors.As(err, &remote) && remote.Status != 0 {
		httputil.WriteError(w, remote.Status, fmt.Sprintf("%s: %s", message, remote.Body))
		return
	}
	httputil.WriteError(w, http.StatusBadGateway, message, "error", err)
}
