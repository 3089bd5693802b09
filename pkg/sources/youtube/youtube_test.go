package youtube

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

func testClient(t *testing.T, analytics, data http.HandlerFunc) *Client {
	t.Helper()
	analyticsSrv := httptest.NewServer(analytics)
	t.Cleanup(analyticsSrv.Close)
	dataSrv := httptest.NewServer(data)
	t.Cleanup(dataSrv.Close)

	up := upstream.NewClient(upstream.Options{RatePerSecond: 1000, RateBurst: 1000}, zap.NewNop())
	return NewClient(up, zap.NewNop()).WithBaseURLs(analyticsSrv.URL, dataSrv.URL)
}

func testRange(t *testing.T) models.DateRange {
	t.Helper()
	r, err := models.ParseDateRange("2026-08-01", "2026-08-07")
	require.NoError(t, err)
	return r
}

func analyticsReport(headers []string, rows [][]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type header struct {
			Name string `json:"name"`
		}
		hs := make([]header, len(headers))
		for i, name := range headers {
			hs[i] = header{Name: name}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"columnHeaders": hs,
			"rows":          rows,
		})
	}
}

func TestFetchOverview(t *testing.T) {
	analytics := analyticsReport(
		[]string{"views", "estimatedMinutesWatched", "averageViewDuration", "subscribersGained"},
		[][]any{{12000, 900, 95, 42}},
	)
	c := testClient(t, analytics, nil)

	overview, err := c.FetchOverview(t.Context(), sources.FetchParams{
		ResourceID:  "UC123",
		AccessToken: "tok",
		Range:       testRange(t),
	})
	require.NoError(t, err)

	assert.Equal(t, 12000.0, overview.Measures[MeasureViews])
	assert.Equal(t, 900.0, overview.Measures[MeasureWatchTimeMinutes])
	assert.Equal(t, 42.0, overview.Measures[MeasureSubscribers])
	// 95 seconds normalizes to 1m35s.
	assert.Equal(t, models.Duration{Minutes: 1, Seconds: 35}, overview.Durations[DurationAvgView])
}

func TestFetchOverview_ZeroRowsZeroFilled(t *testing.T) {
	analytics := analyticsReport([]string{"views"}, nil)
	c := testClient(t, analytics, nil)

	overview, err := c.FetchOverview(t.Context(), sources.FetchParams{
		ResourceID:  "UC123",
		AccessToken: "tok",
		Range:       testRange(t),
	})
	require.NoError(t, err)

	assert.Zero(t, overview.Measures[MeasureViews])
	assert.Zero(t, overview.Measures[MeasureWatchTimeMinutes])
	assert.Zero(t, overview.Measures[MeasureSubscribers])
	assert.Equal(t, models.Duration{}, overview.Durations[DurationAvgView])
}

func TestFetchBreakdown_ClassifiesAndFilters(t *testing.T) {
	analytics := analyticsReport(
		[]string{"video", "views"},
		[][]any{{"v-long", 500}, {"v-short", 400}, {"v-mid", 300}},
	)
	data := func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("id"), "v-long")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id":             "v-long",
					"snippet":        map[string]any{"title": "Long form"},
					"contentDetails": map[string]any{"duration": "PT4M10S"},
					"statistics":     map[string]any{"viewCount": "500", "likeCount": "50"},
				},
				{
					"id":             "v-short",
					"snippet":        map[string]any{"title": "A short"},
					"contentDetails": map[string]any{"duration": "PT60S"},
					"statistics":     map[string]any{"viewCount": "400"},
				},
				{
					"id":             "v-mid",
					"snippet":        map[string]any{"title": "Just over"},
					"contentDetails": map[string]any{"duration": "PT61S"},
					"statistics":     map[string]any{"viewCount": "300"},
				},
			},
		})
	}
	c := testClient(t, analytics, data)

	rows, err := c.FetchBreakdown(t.Context(), sources.FetchParams{
		ResourceID:  "UC123",
		AccessToken: "tok",
		Range:       testRange(t),
		Dimension:   KindVideo,
	})
	require.NoError(t, err)

	// PT60S is a short, so only the two >60s videos survive, in rank order.
	require.Len(t, rows, 2)
	assert.Equal(t, "Long form", rows[0].Label)
	assert.Equal(t, "Just over", rows[1].Label)
	assert.Equal(t, 500.0, rows[0].Measures[MeasureViews])
	assert.Equal(t, 50.0, rows[0].Measures[MeasureLikes])
	assert.Equal(t, models.Duration{Minutes: 4, Seconds: 10}, rows[0].Durations[DurationVideoLength])
	assert.Equal(t, KindVideo, rows[0].Extra["kind"])
}

func TestFetchBreakdown_ShortsDimension(t *testing.T) {
	analytics := analyticsReport(
		[]string{"video", "views"},
		[][]any{{"v1", 500}, {"v2", 400}},
	)
	data := func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id":             "v1",
					"snippet":        map[string]any{"title": "Long"},
					"contentDetails": map[string]any{"duration": "PT2M"},
					"statistics":     map[string]any{"viewCount": "500"},
				},
				{
					"id":             "v2",
					"snippet":        map[string]any{"title": "Short"},
					"contentDetails": map[string]any{"duration": "PT30S"},
					"statistics":     map[string]any{"viewCount": "400"},
				},
			},
		})
	}
	c := testClient(t, analytics, data)

	rows, err := c.FetchBreakdown(t.Context(), sources.FetchParams{
		ResourceID:  "UC123",
		AccessToken: "tok",
		Range:       testRange(t),
		Dimension:   KindShort,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Short", rows[0].Label)
}

func TestFetchBreakdown_SkipsUnparseableDuration(t *testing.T) {
	analytics := analyticsReport(
		[]string{"video", "views"},
		[][]any{{"good", 500}, {"bad", 400}},
	)
	data := func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id":             "good",
					"snippet":        map[string]any{"title": "Good"},
					"contentDetails": map[string]any{"duration": "PT2M"},
					"statistics":     map[string]any{"viewCount": "500"},
				},
				{
					"id":             "bad",
					"snippet":        map[string]any{"title": "Bad"},
					"contentDetails": map[string]any{"duration": "garbage"},
					"statistics":     map[string]any{"viewCount": "400"},
				},
			},
		})
	}
	c := testClient(t, analytics, data)

	rows, err := c.FetchBreakdown(t.Context(), sources.FetchParams{
		ResourceID:  "UC123",
		AccessToken: "tok",
		Range:       testRange(t),
		Dimension:   KindVideo,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Good", rows[0].Label)
}

func TestFetchBreakdown_UnsupportedDimension(t *testing.T) {
	c := testClient(t, analyticsReport(nil, nil), nil)

	_, err := c.FetchBreakdown(t.Context(), sources.FetchParams{
		ResourceID:  "UC123",
		AccessToken: "tok",
		Range:       testRange(t),
		Dimension:   "playlist",
	})
	assert.ErrorIs(t, err, apperrors.ErrReportFetchFailed)
}

func TestFetchBreakdown_UpstreamFailureWrapped(t *testing.T) {
	analytics := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quotaExceeded"}`, http.StatusForbidden)
	}
	c := testClient(t, analytics, nil)

	_, err := c.FetchBreakdown(t.Context(), sources.FetchParams{
		ResourceID:  "UC123",
		AccessToken: "tok",
		Range:       testRange(t),
		Dimension:   KindVideo,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrReportFetchFailed)
	assert.True(t, strings.Contains(err.Error(), models.SourceYouTube.String()))
}

func TestListResources(t *testing.T) {
	data := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("mine"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"id":      "UC123",
					"snippet": map[string]any{"title": "Hotel Channel", "customUrl": "@hotel"},
				},
			},
		})
	}
	c := testClient(t, nil, data)

	resources, err := c.ListResources(t.Context(), "tok")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "UC123", resources[0].ID)
	assert.Equal(t, "Hotel Channel", resources[0].DisplayName)
	assert.Equal(t, "@hotel", resources[0].Metadata["custom_url"])
}
