package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/services"
)

// AuthorizeURLResponse carries the provider consent URL for the dashboard
// to open in a popup.
type AuthorizeURLResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// CallbackRequest is the manual callback submission body.
type CallbackRequest struct {
	State string `json:"state"`
	Code  string `json:"code"`
}

// OAuthHandler drives the provider authorization flow.
type OAuthHandler struct {
	connections services.ConnectionService
	logger      *zap.Logger
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(connections services.ConnectionService, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{connections: connections, logger: logger}
}

// RegisterRoutes registers the authenticated OAuth routes on the given mux.
func (h *OAuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}/sources/{source}/authorize-url", h.AuthorizeURL)
	mux.HandleFunc("POST /api/oauth/{source}/callback", h.SubmitCallback)
}

// RegisterPublicRoutes registers the provider redirect endpoint. It must
// stay outside session authentication: the provider calls it directly.
func (h *OAuthHandler) RegisterPublicRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /oauth/{source}/callback", h.Callback)
}

// AuthorizeURL handles GET /api/projects/{pid}/sources/{source}/authorize-url
func (h *OAuthHandler) AuthorizeURL(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathProject(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_project", err.Error())
		return
	}
	source, err := pathSource(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_source", err.Error())
		return
	}

	authURL, err := h.connections.AuthorizationURL(projectID, source)
	if err != nil {
		h.logger.Error("Failed to build authorization URL",
			zap.String("source", source.String()),
			zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal_error", "Failed to build authorization URL")
		return
	}

	if err := WriteJSON(w, http.StatusOK, AuthorizeURLResponse{AuthorizationURL: authURL}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Callback handles GET /oauth/{source}/callback
// The provider redirects the user's popup here. The response is a tiny HTML
// page that notifies the dashboard window and closes itself, so the flow
// works without any shared session between popup and opener.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if upstreamErr := query.Get("error"); upstreamErr != "" {
		h.logger.Warn("Authorization denied upstream", zap.String("error", upstreamErr))
		h.renderResult(w, "error", "Authorization was denied: "+upstreamErr)
		return
	}

	state := query.Get("state")
	code := query.Get("code")
	if state == "" || code == "" {
		h.renderResult(w, "error", "Missing state or code parameter")
		return
	}

	conn, err := h.connections.CompleteAuthorization(r.Context(), state, code)
	if err != nil {
		h.logger.Warn("Authorization completion failed", zap.Error(err))
		h.renderResult(w, "error", "Authorization could not be completed")
		return
	}

	h.renderResult(w, "connected", string(conn.Source))
}

// SubmitCallback handles POST /api/oauth/{source}/callback
// Authenticated variant of the redirect callback for dashboards that relay
// the provider parameters themselves instead of letting the popup hit the
// public endpoint. Returns the created connection as JSON.
func (h *OAuthHandler) SubmitCallback(w http.ResponseWriter, r *http.Request) {
	source, err := pathSource(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_source", err.Error())
		return
	}

	var req CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.State == "" || req.Code == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "state and code are required")
		return
	}

	conn, err := h.connections.CompleteAuthorization(r.Context(), req.State, req.Code)
	if err != nil {
		h.logger.Warn("Manual callback submission failed",
			zap.String("source", source.String()),
			zap.Error(err))
		if werr := writeServiceError(w, err); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}
	if conn.Source != source {
		h.respondError(w, http.StatusBadRequest, "source_mismatch", "State was issued for a different source")
		return
	}

	if err := WriteJSON(w, http.StatusOK, conn); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// renderResult writes the popup-closing HTML. The opener receives a
// postMessage with the outcome before the window closes.
func (h *OAuthHandler) renderResult(w http.ResponseWriter, status, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html><body>
<p>%s</p>
<script>
if (window.opener) {
  window.opener.postMessage({type: "oauth_result", status: %q, detail: %q}, "*");
}
window.close();
</script>
</body></html>`, html.EscapeString(detail), status, detail)
}

func (h *OAuthHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
