package facebookpage

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

func testUpstream() *upstream.Client {
	return upstream.NewClient(upstream.Options{RatePerSecond: 1000, RateBurst: 1000}, zap.NewNop())
}

func testRange(t *testing.T) models.DateRange {
	t.Helper()
	r, err := models.ParseDateRange("2026-08-01", "2026-08-07")
	require.NoError(t, err)
	return r
}

func TestFetchOverview_SumsDailySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/page-1/insights")
		assert.Equal(t, "day", r.URL.Query().Get("period"))
		assert.Equal(t, "Bearer page-scoped-tok", r.Header.Get("Authorization"))

		w.Write([]byte(`{"data":[
			{"name":"page_impressions","values":[{"value":100},{"value":250}]},
			{"name":"page_fan_adds","values":[{"value":3}]},
			{"name":"page_views_total","values":[{"value":999}]}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(testUpstream(), zap.NewNop()).WithBaseURL(srv.URL)

	overview, err := c.FetchOverview(t.Context(), sources.FetchParams{
		ResourceID:  "page-1",
		AccessToken: "user-tok",
		Metadata:    map[string]string{"page_access_token": "page-scoped-tok"},
		Range:       testRange(t),
	})
	require.NoError(t, err)
	assert.Equal(t, 350.0, overview.Measures[MeasureImpressions])
	assert.Equal(t, 3.0, overview.Measures[MeasureNewFans])
	assert.Equal(t, 0.0, overview.Measures[MeasureEngagements], "missing series zero-filled")
}

func TestFetchOverview_FallsBackToUserToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(testUpstream(), zap.NewNop()).WithBaseURL(srv.URL)

	_, err := c.FetchOverview(t.Context(), sources.FetchParams{
		ResourceID:  "page-1",
		AccessToken: "user-tok",
		Range:       testRange(t),
	})
	require.NoError(t, err)
}

func TestFetchBreakdown_Unsupported(t *testing.T) {
	c := NewClient(testUpstream(), zap.NewNop())

	_, err := c.FetchBreakdown(t.Context(), sources.FetchParams{
		Dimension: "post",
		Range:     testRange(t),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dimension")
}

func TestListResources_CapturesPageToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/me/accounts")
		w.Write([]byte(`{"data":[
			{"id":"page-1","name":"Harborview Resort","category":"Hotel","access_token":"page-scoped-tok"},
			{"name":"missing id"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(testUpstream(), zap.NewNop()).WithBaseURL(srv.URL)

	resources, err := c.ListResources(t.Context(), "user-tok")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "page-1", resources[0].ID)
	assert.Equal(t, "Harborview Resort", resources[0].DisplayName)
	assert.Equal(t, "page-scoped-tok", resources[0].Metadata["page_access_token"])
	assert.Equal(t, "Hotel", resources[0].Metadata["category"])
}
