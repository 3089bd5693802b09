package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/staylens-io/staylens-engine/pkg/models"
)

// mockConnectionService is a configurable mock shared by the handler tests.
type mockConnectionService struct {
	authURL   string
	conn      *models.Connection
	resources []models.Resource
	list      []*models.Connection
	err       error

	completedState string
	completedCode  string
	selectedID     string
	disconnected   bool
}

func (m *mockConnectionService) AuthorizationURL(projectID uuid.UUID, source models.SourceType) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.authURL, nil
}

func (m *mockConnectionService) CompleteAuthorization(ctx context.Context, state, code string) (*models.Connection, error) {
	m.completedState = state
	m.completedCode = code
	if m.err != nil {
		return nil, m.err
	}
	return m.conn, nil
}

func (m *mockConnectionService) ListResources(ctx context.Context, projectID uuid.UUID, source models.SourceType) ([]models.Resource, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.resources, nil
}

func (m *mockConnectionService) SelectResource(ctx context.Context, projectID uuid.UUID, source models.SourceType, resourceID string) (*models.Connection, error) {
	m.selectedID = resourceID
	if m.err != nil {
		return nil, m.err
	}
	return m.conn, nil
}

func (m *mockConnectionService) Disconnect(ctx context.Context, projectID uuid.UUID, source models.SourceType) error {
	if m.err != nil {
		return m.err
	}
	m.disconnected = true
	return nil
}

func (m *mockConnectionService) List(ctx context.Context, projectID uuid.UUID) ([]*models.Connection, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.list, nil
}

// mockMetricsService returns canned reports.
type mockMetricsService struct {
	overview *models.Overview
	rows     []models.BreakdownRow
	err      error

	lastDimension string
	lastLimit     int
	lastCompare   *models.DateRange
}

func (m *mockMetricsService) Overview(ctx context.Context, projectID uuid.UUID, source models.SourceType, rng models.DateRange, compare *models.DateRange) (*models.Overview, error) {
	m.lastCompare = compare
	if m.err != nil {
		return nil, m.err
	}
	return m.overview, nil
}

func (m *mockMetricsService) Breakdown(ctx context.Context, projectID uuid.UUID, source models.SourceType, rng models.DateRange, dimension string, limit int) ([]models.BreakdownRow, error) {
	m.lastDimension = dimension
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}
