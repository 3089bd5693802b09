package services

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/oauth"
	"github.com/staylens-io/staylens-engine/pkg/sources/ga"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

// Exercises the full report path with a real token manager and metrics
// service: an active connection whose access token expired an hour ago and
// whose refresh token is valid must trigger exactly one refresh and one
// report query, persist the new token, and return the normalized measures.
func TestOverview_ExpiredTokenEndToEnd(t *testing.T) {
	var queries atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries.Add(1)
		assert.Equal(t, "Bearer fresh-token", r.Header.Get("Authorization"),
			"report query must carry the refreshed token")
		w.Write([]byte(`{"rows":[{"metricValues":[
			{"value":"1200"},{"value":"800"},{"value":"3000"},{"value":"95.5"},{"value":"0.61"}
		]}]}`))
	}))
	defer srv.Close()

	up := upstream.NewClient(upstream.Options{RatePerSecond: 1000, RateBurst: 1000}, zap.NewNop())
	client := ga.NewClient(up, zap.NewNop()).WithBaseURLs(srv.URL, srv.URL)

	cipher := testCipher(t)
	projectID := uuid.New()
	expired := time.Now().Add(-time.Hour)
	repo := &mockConnectionRepository{
		conn:       activeConnection(projectID, &expired),
		encRefresh: encrypt(t, cipher, "stored-refresh"),
		encAccess:  encrypt(t, cipher, "stale-token"),
	}
	provider := &mockProvider{refreshToken: &oauth.Token{
		AccessToken: "fresh-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}

	tokens := NewTokenManager(repo, &mockProviderResolver{provider: provider}, cipher, zap.NewNop())
	metrics := NewMetricsService(tokens, &mockSourceResolver{fetcher: client}, zap.NewNop())

	overview, err := metrics.Overview(t.Context(), projectID, models.SourceGoogleAnalytics, metricsRange(t), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls(), "exactly one refresh")
	assert.Equal(t, "stored-refresh", provider.refreshedWith)
	assert.Equal(t, int32(1), queries.Load(), "exactly one report query")

	assert.Equal(t, 1200.0, overview.Measures[ga.MeasureSessions])
	assert.Equal(t, 800.0, overview.Measures[ga.MeasureUsers])
	assert.Equal(t, 3000.0, overview.Measures[ga.MeasurePageviews])
	assert.Equal(t, 0.61, overview.Measures[ga.MeasureEngagementRate])
	assert.Equal(t, models.Duration{Minutes: 1, Seconds: 35}, overview.Durations[ga.DurationAvgSession])

	require.Equal(t, 1, repo.updateCalls, "refreshed token persisted once")
	persisted, err := cipher.Decrypt(repo.updatedAccess)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", persisted)
	assert.Empty(t, repo.updatedRefresh, "non-rotated refresh token keeps the stored one")
}
