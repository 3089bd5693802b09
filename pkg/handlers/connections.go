package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/middleware"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/services"
	"github.com/staylens-io/staylens-engine/pkg/sources"
)

// ConnectionsResponse lists a project's connections.
type ConnectionsResponse struct {
	Connections []*models.Connection `json:"connections"`
}

// ResourcesResponse lists the selectable upstream resources.
type ResourcesResponse struct {
	Resources []models.Resource `json:"resources"`
}

// SelectResourceRequest pins a connection to one upstream resource.
type SelectResourceRequest struct {
	ResourceID string `json:"resource_id"`
}

// ConnectionHandler serves connection lifecycle endpoints.
type ConnectionHandler struct {
	connections services.ConnectionService
	logger      *zap.Logger
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(connections services.ConnectionService, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, logger: logger}
}

// RegisterRoutes registers the connection handler's routes on the given mux.
func (h *ConnectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}/connections", h.List)
	mux.HandleFunc("GET /api/projects/{pid}/sources/{source}/resources", h.Resources)
	mux.HandleFunc("POST /api/projects/{pid}/sources/{source}/resource", h.SelectResource)
	mux.HandleFunc("DELETE /api/projects/{pid}/sources/{source}", h.Disconnect)
	mux.HandleFunc("GET /api/sources", h.Catalog)
}

// List handles GET /api/projects/{pid}/connections
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathProject(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_project", err.Error())
		return
	}

	connections, err := h.connections.List(r.Context(), projectID)
	if err != nil {
		h.logger.Error("Failed to list connections", zap.Error(err))
		h.writeMapped(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ConnectionsResponse{Connections: connections}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Resources handles GET /api/projects/{pid}/sources/{source}/resources
func (h *ConnectionHandler) Resources(w http.ResponseWriter, r *http.Request) {
	projectID, source, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	resources, err := h.connections.ListResources(r.Context(), projectID, source)
	if err != nil {
		h.logger.Warn("Failed to list resources",
			zap.String("source", source.String()),
			zap.Error(err))
		h.writeMapped(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ResourcesResponse{Resources: resources}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// SelectResource handles POST /api/projects/{pid}/sources/{source}/resource
func (h *ConnectionHandler) SelectResource(w http.ResponseWriter, r *http.Request) {
	projectID, source, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	var req SelectResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ResourceID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "resource_id is required")
		return
	}

	conn, err := h.connections.SelectResource(r.Context(), projectID, source, req.ResourceID)
	if err != nil {
		h.logger.Warn("Failed to select resource",
			zap.String("source", source.String()),
			zap.String("resource_id", req.ResourceID),
			zap.Error(err))
		h.writeMapped(w, err)
		return
	}

	// Audit trail: user id is empty when verification is disabled and no
	// session token was sent.
	userID, _ := middleware.UserID(r.Context())
	h.logger.Info("Resource selected",
		zap.String("project_id", projectID.String()),
		zap.String("source", source.String()),
		zap.String("resource_id", req.ResourceID),
		zap.String("user_id", userID))

	if err := WriteJSON(w, http.StatusOK, conn); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Disconnect handles DELETE /api/projects/{pid}/sources/{source}
func (h *ConnectionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	projectID, source, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	if err := h.connections.Disconnect(r.Context(), projectID, source); err != nil {
		h.logger.Warn("Failed to disconnect",
			zap.String("source", source.String()),
			zap.Error(err))
		h.writeMapped(w, err)
		return
	}

	userID, _ := middleware.UserID(r.Context())
	h.logger.Info("Source disconnected",
		zap.String("project_id", projectID.String()),
		zap.String("source", source.String()),
		zap.String("user_id", userID))

	w.WriteHeader(http.StatusNoContent)
}

// Catalog handles GET /api/sources - the static source capability list.
func (h *ConnectionHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	type sourceInfo struct {
		Source          models.SourceType `json:"source"`
		DisplayName     string            `json:"display_name"`
		Dimensions      []string          `json:"dimensions,omitempty"`
		SupportsReports bool              `json:"supports_reports"`
	}

	catalog := []sourceInfo{}
	for _, source := range models.AllSources() {
		d, ok := sources.Describe(source)
		if !ok {
			continue
		}
		catalog = append(catalog, sourceInfo{
			Source:          d.Source,
			DisplayName:     d.DisplayName,
			Dimensions:      d.Dimensions,
			SupportsReports: d.SupportsReports,
		})
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"sources": catalog}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *ConnectionHandler) pathParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, models.SourceType, bool) {
	pid, err := pathProject(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_project", err.Error())
		return uuid.Nil, "", false
	}
	source, err := pathSource(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_source", err.Error())
		return uuid.Nil, "", false
	}
	return pid, source, true
}

func (h *ConnectionHandler) writeMapped(w http.ResponseWriter, err error) {
	if werr := writeServiceError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}

func (h *ConnectionHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
