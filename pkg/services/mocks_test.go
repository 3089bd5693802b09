package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/oauth"
	"github.com/staylens-io/staylens-engine/pkg/sources"
)

// mockConnectionRepository is a configurable in-memory repository recording
// the calls the services make.
type mockConnectionRepository struct {
	mu sync.Mutex

	conn       *models.Connection
	encRefresh string
	encAccess  string
	getErr     error

	upserted        *models.Connection
	upsertedRefresh string
	upsertErr       error

	listResult []*models.Connection
	listErr    error

	setResourceID       string
	setResourceMetadata map[string]string
	setResourceErr      error

	updatedAccess  string
	updatedExpiry  time.Time
	updatedRefresh string
	updateCalls    int
	updateErr      error

	markedInvalid bool
	markErr       error

	calls []string
}

func (m *mockConnectionRepository) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockConnectionRepository) Upsert(ctx context.Context, conn *models.Connection, encRefreshToken string) error {
	m.record("Upsert")
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = conn
	m.upsertedRefresh = encRefreshToken
	conn.ID = uuid.New()
	return nil
}

func (m *mockConnectionRepository) GetBySource(ctx context.Context, projectID uuid.UUID, source models.SourceType) (*models.Connection, string, string, error) {
	m.record("GetBySource")
	if m.getErr != nil {
		return nil, "", "", m.getErr
	}
	return m.conn, m.encRefresh, m.encAccess, nil
}

func (m *mockConnectionRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Connection, error) {
	m.record("ListByProject")
	return m.listResult, m.listErr
}

func (m *mockConnectionRepository) SetResource(ctx context.Context, projectID uuid.UUID, source models.SourceType, resourceID string, metadata map[string]string) error {
	m.record("SetResource")
	if m.setResourceErr != nil {
		return m.setResourceErr
	}
	m.setResourceID = resourceID
	m.setResourceMetadata = metadata
	if m.conn != nil {
		m.conn.ExternalResourceID = resourceID
		m.conn.Status = models.ConnectionStatusActive
	}
	return nil
}

func (m *mockConnectionRepository) UpdateTokens(ctx context.Context, projectID uuid.UUID, source models.SourceType, encAccessToken string, expiry time.Time, encRefreshToken string) error {
	m.record("UpdateTokens")
	m.mu.Lock()
	m.updateCalls++
	m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updatedAccess = encAccessToken
	m.updatedExpiry = expiry
	m.updatedRefresh = encRefreshToken
	return nil
}

func (m *mockConnectionRepository) MarkInvalid(ctx context.Context, projectID uuid.UUID, source models.SourceType) error {
	m.record("MarkInvalid")
	if m.markErr != nil {
		return m.markErr
	}
	m.markedInvalid = true
	return nil
}

// mockProvider is a configurable OAuth adapter.
type mockProvider struct {
	mu sync.Mutex

	authURL string

	exchangeToken *oauth.Token
	exchangeErr   error
	exchangedCode string

	refreshToken   *oauth.Token
	refreshErr     error
	refreshCalls   int
	refreshedWith  string
	refreshDelay   time.Duration
	beforeRefresh  func()
}

func (m *mockProvider) AuthorizationURL(state string) string {
	return m.authURL + "?state=" + state
}

func (m *mockProvider) Exchange(ctx context.Context, code string) (*oauth.Token, error) {
	m.exchangedCode = code
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return m.exchangeToken, nil
}

func (m *mockProvider) Refresh(ctx context.Context, refreshToken string) (*oauth.Token, error) {
	if m.beforeRefresh != nil {
		m.beforeRefresh()
	}
	if m.refreshDelay > 0 {
		time.Sleep(m.refreshDelay)
	}
	m.mu.Lock()
	m.refreshCalls++
	m.refreshedWith = refreshToken
	m.mu.Unlock()
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return m.refreshToken, nil
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

// mockProviderResolver returns the same provider for every source.
type mockProviderResolver struct {
	provider oauth.Provider
	err      error
}

func (m *mockProviderResolver) Provider(source models.SourceType) (oauth.Provider, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.provider, nil
}

// mockFetcher records fetch params and returns canned results.
type mockFetcher struct {
	overview     *models.Overview
	overviewErr  error
	rows         []models.BreakdownRow
	rowsErr      error
	lastParams   sources.FetchParams
	overviewCall int
}

func (m *mockFetcher) FetchOverview(ctx context.Context, p sources.FetchParams) (*models.Overview, error) {
	m.lastParams = p
	m.overviewCall++
	return m.overview, m.overviewErr
}

func (m *mockFetcher) FetchBreakdown(ctx context.Context, p sources.FetchParams) ([]models.BreakdownRow, error) {
	m.lastParams = p
	return m.rows, m.rowsErr
}

// mockEnumerator returns a canned resource list.
type mockEnumerator struct {
	resources []models.Resource
	err       error
	lastToken string
}

func (m *mockEnumerator) ListResources(ctx context.Context, accessToken string) ([]models.Resource, error) {
	m.lastToken = accessToken
	return m.resources, m.err
}

// mockSourceResolver serves the same fetcher/enumerator for every source.
type mockSourceResolver struct {
	fetcher    sources.Fetcher
	enumerator sources.Enumerator
}

func (m *mockSourceResolver) Enumerator(source models.SourceType) (sources.Enumerator, bool) {
	if m.enumerator == nil {
		return nil, false
	}
	return m.enumerator, true
}

func (m *mockSourceResolver) Fetcher(source models.SourceType) (sources.Fetcher, bool) {
	if m.fetcher == nil {
		return nil, false
	}
	return m.fetcher, true
}

// mockTokenManager returns a canned connection and token.
type mockTokenManager struct {
	conn  *models.Connection
	token string
	err   error
}

func (m *mockTokenManager) AccessToken(ctx context.Context, projectID uuid.UUID, source models.SourceType) (*models.Connection, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.conn, m.token, nil
}
