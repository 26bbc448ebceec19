// Package proxy forwards API calls from the client apps to the upstream
// business API, attaching the bearer token the client supplies.
package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dhruv-db/tic-tac-sub000/internal/config"
	"github.com/dhruv-db/tic-tac-sub000/internal/httputil"
	"github.com/dhruv-db/tic-tac-sub000/internal/logger"
	"github.com/dhruv-db/tic-tac-sub000/internal/svrlib"
	"github.com/dhruv-db/tic-tac-sub000/internal/validation"
)

const upstreamTimeout = 60 * time.Second

type ProxyRouter struct {
	*svrlib.Router
	client *http.Client
}

// RegisterRoutes registers the /api/proxy route on the given mux
func RegisterRoutes(mux *http.ServeMux, prefix string, cfg *config.Config) {
	router := &ProxyRouter{
		Router: svrlib.NewRouter(mux, prefix, cfg),
		client: &http.Client{Timeout: upstreamTimeout},
	}
	mux.HandleFunc(prefix, router.ProxyHandler)
}

type proxyRequest struct {
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	AccessToken string          `json:"accessToken"`
	CompanyID   string          `json:"companyId,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type proxyResponse struct {
	Data       json.RawMessage   `json:"data"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	Timestamp  string            `json:"timestamp"`
}

// ProxyHandler handles POST /api/proxy requests
func (rt *ProxyRouter) ProxyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req proxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid JSON body", "error", err)
		return
	}

	v := validation.ProxyValidation{Endpoint: req.Endpoint, Method: req.Method, AccessToken: req.AccessToken}
	if err := v.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			httputil.WriteValidationError(w, verrs)
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	upstreamURL := strings.TrimSuffix(rt.Config.BexioAPIBaseURL, "/") + "/" + strings.TrimPrefix(req.Endpoint, "/")

	var body io.Reader
	if len(req.Data) > 0 && req.Method != http.MethodGet && req.Method != http.MethodDelete {
		body = strings.NewReader(string(req.Data))
	}

	upstream, err := http.NewRequestWithContext(r.Context(), strings.ToUpper(req.Method), upstreamURL, body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid proxy target", "error", err)
		return
	}
	upstream.Header.Set("Authorization", "Bearer "+req.AccessToken)
	upstream.Header.Set("Accept", "application/json")
	if body != nil {
		upstream.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := rt.client.Do(upstream)
	if err != nil {
		logger.Error("Upstream request failed", "endpoint", req.Endpoint, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "Upstream request failed")
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "Failed to read upstream response", "error", err)
		return
	}

	logger.Debug("Proxied request",
		"endpoint", req.Endpoint,
		"method", req.Method,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	data := json.RawMessage(raw)
	if !json.Valid(raw) {
		// Upstream occasionally answers with plain text on errors; wrap it
		// so the envelope stays valid JSON.
		encoded, _ := json.Marshal(string(raw))
		data = encoded
	}

	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	httputil.WriteJSON(w, http.StatusOK, proxyResponse{
		Data:       data,
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Headers:    headers,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
