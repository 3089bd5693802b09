package handlers

import (
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/config"
)

// HealthHandler serves liveness and service info endpoints.
type HealthHandler struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/ping", h.Ping)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests with service details.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{
		"service":  "staylens-engine",
		"version":  h.cfg.Version,
		"env":      h.cfg.Env,
		"hostname": hostname,
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
