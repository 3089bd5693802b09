package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/logging"
	"github.com/staylens-io/staylens-engine/pkg/models"
)

// pathProject parses the {pid} path segment.
func pathProject(r *http.Request) (uuid.UUID, error) {
	pid, err := uuid.Parse(r.PathValue("pid"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid project id: %w", err)
	}
	return pid, nil
}

// pathSource parses the {source} path segment.
func pathSource(r *http.Request) (models.SourceType, error) {
	source := models.SourceType(r.PathValue("source"))
	if !source.Valid() {
		return "", fmt.Errorf("unknown source %q", source)
	}
	return source, nil
}

// writeServiceError maps service-layer errors onto HTTP error responses.
func writeServiceError(w http.ResponseWriter, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrConnectionNotFound):
		return ErrorResponse(w, http.StatusNotFound, "not_connected", "No connection exists for this source")
	case errors.Is(err, apperrors.ErrResourceNotSelected):
		return ErrorResponse(w, http.StatusConflict, "resource_not_selected", "Connection is pending resource selection")
	case errors.Is(err, apperrors.ErrTokenRefreshFailed):
		return ErrorResponse(w, http.StatusUnauthorized, "reconnect_required", "Authorization expired, the source must be reconnected")
	case errors.Is(err, apperrors.ErrOAuthExchangeFailed):
		return ErrorResponse(w, http.StatusBadRequest, "oauth_exchange_failed", "Authorization could not be completed")
	case errors.Is(err, apperrors.ErrReportFetchFailed):
		var fetchErr *apperrors.ReportFetchError
		if errors.As(err, &fetchErr) {
			return ErrorResponse(w, http.StatusBadGateway, "upstream_error", logging.Sanitize(fetchErr.Error()))
		}
		return ErrorResponse(w, http.StatusBadGateway, "upstream_error", "Report fetch failed")
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
