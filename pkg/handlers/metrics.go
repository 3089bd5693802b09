package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/services"
)

// OverviewResponse wraps the normalized overview record.
type OverviewResponse struct {
	Source   models.SourceType `json:"source"`
	Range    models.DateRange  `json:"range"`
	Overview *models.Overview  `json:"overview"`
}

// BreakdownResponse wraps the normalized breakdown rows.
type BreakdownResponse struct {
	Source    models.SourceType     `json:"source"`
	Range     models.DateRange      `json:"range"`
	Dimension string                `json:"dimension"`
	Rows      []models.BreakdownRow `json:"rows"`
}

// MetricsHandler serves normalized report endpoints.
type MetricsHandler struct {
	metrics services.MetricsService
	logger  *zap.Logger
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(metrics services.MetricsService, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, logger: logger}
}

// RegisterRoutes registers the metrics handler's routes on the given mux.
func (h *MetricsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects/{pid}/sources/{source}/overview", h.Overview)
	mux.HandleFunc("GET /api/projects/{pid}/sources/{source}/breakdown", h.Breakdown)
}

// Overview handles GET /api/projects/{pid}/sources/{source}/overview
// Query: start, end (YYYY-MM-DD, required); compare_start, compare_end
// (optional, both or neither).
func (h *MetricsHandler) Overview(w http.ResponseWriter, r *http.Request) {
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

	query := r.URL.Query()
	rng, err := models.ParseDateRange(query.Get("start"), query.Get("end"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_range", err.Error())
		return
	}

	var compare *models.DateRange
	if cs, ce := query.Get("compare_start"), query.Get("compare_end"); cs != "" || ce != "" {
		c, err := models.ParseDateRange(cs, ce)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid_compare_range", err.Error())
			return
		}
		compare = &c
	}

	overview, err := h.metrics.Overview(r.Context(), projectID, source, rng, compare)
	if err != nil {
		h.writeMapped(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, OverviewResponse{
		Source:   source,
		Range:    rng,
		Overview: overview,
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Breakdown handles GET /api/projects/{pid}/sources/{source}/breakdown
// Query: start, end (required); dimension (required); limit (optional).
func (h *MetricsHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
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

	query := r.URL.Query()
	rng, err := models.ParseDateRange(query.Get("start"), query.Get("end"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_range", err.Error())
		return
	}

	dimension := query.Get("dimension")
	if dimension == "" {
		h.respondError(w, http.StatusBadRequest, "missing_dimension", "dimension is required")
		return
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
	}

	rows, err := h.metrics.Breakdown(r.Context(), projectID, source, rng, dimension, limit)
	if err != nil {
		h.writeMapped(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, BreakdownResponse{
		Source:    source,
		Range:     rng,
		Dimension: dimension,
		Rows:      rows,
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *MetricsHandler) writeMapped(w http.ResponseWriter, err error) {
	if werr := writeServiceError(w, err); werr != nil {
		h.logger.Error("Failed to write error response", zap.Error(werr))
	}
}

func (h *MetricsHandler) respondError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
