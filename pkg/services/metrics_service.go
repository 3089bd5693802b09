package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
)

// MetricsService serves normalized reports for an active connection.
type MetricsService interface {
	// Overview returns the aggregate record for the range, with
	// previous-period deltas when compare is set.
	Overview(ctx context.Context, projectID uuid.UUID, source models.SourceType, rng models.DateRange, compare *models.DateRange) (*models.Overview, error)

	// Breakdown returns per-dimension rows, at most limit of them. A zero
	// limit means the source default.
	Breakdown(ctx context.Context, projectID uuid.UUID, source models.SourceType, rng models.DateRange, dimension string, limit int) ([]models.BreakdownRow, error)
}

type metricsService struct {
	tokens TokenManager
	srcs   SourceResolver
	logger *zap.Logger
}

// NewMetricsService creates a MetricsService.
func NewMetricsService(tokens TokenManager, srcs SourceResolver, logger *zap.Logger) MetricsService {
	return &metricsService{tokens: tokens, srcs: srcs, logger: logger}
}

func (s *metricsService) Overview(ctx context.Context, projectID uuid.UUID, source models.SourceType, rng models.DateRange, compare *models.DateRange) (*models.Overview, error) {
	fetcher, params, err := s.prepare(ctx, projectID, source, rng)
	if err != nil {
		return nil, err
	}
	params.Compare = compare

	overview, err := fetcher.FetchOverview(ctx, *params)
	if err != nil {
		s.logger.Warn("Overview fetch failed",
			zap.String("project_id", projectID.String()),
			zap.String("source", source.String()),
			zap.Error(err))
		return nil, err
	}
	return overview, nil
}

func (s *metricsService) Breakdown(ctx context.Context, projectID uuid.UUID, source models.SourceType, rng models.DateRange, dimension string, limit int) ([]models.BreakdownRow, error) {
	descriptor, ok := sources.Describe(source)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", source)
	}
	if !supportedDimension(descriptor, dimension) {
		return nil, apperrors.NewReportFetchError(source.String(),
			fmt.Errorf("unsupported dimension %q", dimension))
	}
	if limit <= 0 {
		limit = descriptor.DefaultLimit
	}

	fetcher, params, err := s.prepare(ctx, projectID, source, rng)
	if err != nil {
		return nil, err
	}
	params.Dimension = dimension
	params.Limit = limit

	rows, err := fetcher.FetchBreakdown(ctx, *params)
	if err != nil {
		s.logger.Warn("Breakdown fetch failed",
			zap.String("project_id", projectID.String()),
			zap.String("source", source.String()),
			zap.String("dimension", dimension),
			zap.Error(err))
		return nil, err
	}
	if rows == nil {
		rows = []models.BreakdownRow{}
	}
	return rows, nil
}

// prepare resolves the fetcher and assembles FetchParams with a live access
// token for an active, resource-bound connection.
func (s *metricsService) prepare(ctx context.Context, projectID uuid.UUID, source models.SourceType, rng models.DateRange) (sources.Fetcher, *sources.FetchParams, error) {
	descriptor, ok := sources.Describe(source)
	if !ok {
		return nil, nil, fmt.Errorf("unknown source %q", source)
	}
	if !descriptor.SupportsReports {
		return nil, nil, apperrors.NewReportFetchError(source.String(),
			fmt.Errorf("source has no report surface"))
	}
	fetcher, ok := s.srcs.Fetcher(source)
	if !ok {
		return nil, nil, fmt.Errorf("no fetcher for source %q", source)
	}

	conn, accessToken, err := s.tokens.AccessToken(ctx, projectID, source)
	if err != nil {
		return nil, nil, err
	}
	if !conn.ResourceSelected() {
		return nil, nil, apperrors.ErrResourceNotSelected
	}

	return fetcher, &sources.FetchParams{
		ResourceID:  conn.ExternalResourceID,
		AccessToken: accessToken,
		Metadata:    conn.Metadata,
		Range:       rng,
	}, nil
}

func supportedDimension(d sources.Descriptor, dimension string) bool {
	for _, dim := range d.Dimensions {
		if dim == dimension {
			return true
		}
	}
	return false
}

var _ MetricsService = (*metricsService)(nil)
