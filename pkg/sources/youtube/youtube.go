// Package youtube integrates the YouTube Analytics and Data APIs. Report
// breakdowns follow the two-step shape shared by video platforms: a ranked
// video id list from the analytics API, then per-video detail enrichment in
// fixed-size batches against the data API.
package youtube

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

const (
	defaultAnalyticsBaseURL = "https://youtubeanalytics.googleapis.com/v2"
	defaultDataBaseURL      = "https://www.googleapis.com/youtube/v3"

	// videosBatchSize is the id cap of the videos.list endpoint.
	videosBatchSize = 50
	// maxCandidates bounds the ranked id list fetched from analytics.
	maxCandidates = 200
	// defaultTopVideos is the breakdown row bound when unspecified.
	defaultTopVideos = 50
)

// Normalized measure names.
const (
	MeasureViews            = "views"
	MeasureWatchTimeMinutes = "watch_time_minutes"
	MeasureSubscribers      = "subscribers_gained"
	MeasureLikes            = "likes"
	MeasureComments         = "comments"
	DurationAvgView         = "avg_view_duration"
	DurationVideoLength     = "length"
)

// Client calls the YouTube Analytics and Data APIs.
type Client struct {
	up               *upstream.Client
	analyticsBaseURL string
	dataBaseURL      string
	logger           *zap.Logger
}

// NewClient builds a YouTube client.
func NewClient(up *upstream.Client, logger *zap.Logger) *Client {
	return &Client{
		up:               up,
		analyticsBaseURL: defaultAnalyticsBaseURL,
		dataBaseURL:      defaultDataBaseURL,
		logger:           logger,
	}
}

// WithBaseURLs overrides endpoints, used by tests with a fake upstream.
func (c *Client) WithBaseURLs(analytics, data string) *Client {
	c.analyticsBaseURL = analytics
	c.dataBaseURL = data
	return c
}

// reportResponse is the analytics API tabular envelope.
type reportResponse struct {
	ColumnHeaders []struct {
		Name string `json:"name"`
	} `json:"columnHeaders"`
	Rows [][]any `json:"rows"`
}

// columnIndex maps header names to row positions.
func (r *reportResponse) columnIndex() map[string]int {
	idx := make(map[string]int, len(r.ColumnHeaders))
	for i, h := range r.ColumnHeaders {
		idx[h.Name] = i
	}
	return idx
}

func (c *Client) runReport(ctx context.Context, channelID, token string, r models.DateRange, params url.Values) (*reportResponse, error) {
	params.Set("ids", "channel=="+channelID)
	params.Set("startDate", r.StartString())
	params.Set("endDate", r.EndString())

	var resp reportResponse
	u := fmt.Sprintf("%s/reports?%s", c.analyticsBaseURL, params.Encode())
	if err := c.up.GetJSON(ctx, u, token, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchOverview returns channel totals for the range.
func (c *Client) FetchOverview(ctx context.Context, p sources.FetchParams) (*models.Overview, error) {
	current, avgView, err := c.channelTotals(ctx, p.ResourceID, p.AccessToken, p.Range)
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceYouTube.String(), err)
	}

	overview := &models.Overview{
		Measures: current,
		Durations: map[string]models.Duration{
			DurationAvgView: models.EncodeDuration(avgView),
		},
	}
	if p.Compare != nil {
		previous, _, err := c.channelTotals(ctx, p.ResourceID, p.AccessToken, *p.Compare)
		if err != nil {
			return nil, apperrors.NewReportFetchError(models.SourceYouTube.String(), err)
		}
		overview.DeltasPct = sources.Deltas(current, previous)
	}
	return overview, nil
}

func (c *Client) channelTotals(ctx context.Context, channelID, token string, r models.DateRange) (map[string]float64, float64, error) {
	params := url.Values{}
	params.Set("metrics", "views,estimatedMinutesWatched,averageViewDuration,subscribersGained")

	resp, err := c.runReport(ctx, channelID, token, r, params)
	if err != nil {
		return nil, 0, err
	}

	totals := map[string]float64{
		MeasureViews:            0,
		MeasureWatchTimeMinutes: 0,
		MeasureSubscribers:      0,
	}
	var avgView float64
	if len(resp.Rows) > 0 {
		idx := resp.columnIndex()
		row := resp.Rows[0]
		get := func(name string) float64 {
			i, ok := idx[name]
			if !ok || i >= len(row) {
				return 0
			}
			return sources.Coerce(row[i])
		}
		totals[MeasureViews] = get("views")
		totals[MeasureWatchTimeMinutes] = get("estimatedMinutesWatched")
		totals[MeasureSubscribers] = get("subscribersGained")
		avgView = get("averageViewDuration")
	}
	return totals, avgView, nil
}

// videoDetail is one enriched ranked candidate.
type videoDetail struct {
	id              string
	title           string
	kind            string
	durationSeconds int64
	views           float64
	likes           float64
	comments        float64
}

// FetchBreakdown returns the channel's top videos for the range, enriched
// with per-video detail. Dimension "video" keeps regular videos, "short"
// keeps shorts; classification happens before the filter.
func (c *Client) FetchBreakdown(ctx context.Context, p sources.FetchParams) ([]models.BreakdownRow, error) {
	if p.Dimension != KindVideo && p.Dimension != KindShort {
		return nil, apperrors.NewReportFetchError(models.SourceYouTube.String(),
			fmt.Errorf("unsupported dimension %q", p.Dimension))
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultTopVideos
	}

	ids, err := c.rankedVideoIDs(ctx, p.ResourceID, p.AccessToken, p.Range)
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceYouTube.String(), err)
	}

	details, err := sources.EnrichRanked(ctx, ids, videosBatchSize, limit,
		func(ctx context.Context, batch []string) (map[string]videoDetail, error) {
			return c.videoDetails(ctx, p.AccessToken, batch)
		}, c.logger)
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceYouTube.String(), err)
	}

	rows := make([]models.BreakdownRow, 0, len(details))
	for _, d := range details {
		if d.kind != p.Dimension {
			continue
		}
		rows = append(rows, models.BreakdownRow{
			Label: d.title,
			Measures: map[string]float64{
				MeasureViews:    d.views,
				MeasureLikes:    d.likes,
				MeasureComments: d.comments,
			},
			Durations: map[string]models.Duration{
				DurationVideoLength: models.EncodeDuration(float64(d.durationSeconds)),
			},
			Extra: map[string]string{
				"video_id": d.id,
				"kind":     d.kind,
			},
		})
	}
	return rows, nil
}

// rankedVideoIDs fetches the candidate video ids ordered by views.
func (c *Client) rankedVideoIDs(ctx context.Context, channelID, token string, r models.DateRange) ([]string, error) {
	params := url.Values{}
	params.Set("dimensions", "video")
	params.Set("metrics", "views")
	params.Set("sort", "-views")
	params.Set("maxResults", fmt.Sprintf("%d", maxCandidates))

	resp, err := c.runReport(ctx, channelID, token, r, params)
	if err != nil {
		return nil, err
	}

	idx := resp.columnIndex()
	videoCol, ok := idx["video"]
	if !ok {
		videoCol = 0
	}

	ids := make([]string, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if videoCol >= len(row) {
			continue
		}
		if id, ok := row[videoCol].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// videosListResponse is the data API videos.list envelope.
type videosListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics sources.Row `json:"statistics"`
	} `json:"items"`
}

// videoDetails enriches one batch of ids. A malformed item is skipped with a
// warning and simply absent from the result map - it never fails the batch.
func (c *Client) videoDetails(ctx context.Context, token string, ids []string) (map[string]videoDetail, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("id", strings.Join(ids, ","))
	params.Set("maxResults", fmt.Sprintf("%d", videosBatchSize))

	var resp videosListResponse
	u := fmt.Sprintf("%s/videos?%s", c.dataBaseURL, params.Encode())
	if err := c.up.GetJSON(ctx, u, token, &resp); err != nil {
		return nil, err
	}

	details := make(map[string]videoDetail, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID == "" {
			continue
		}
		seconds, err := parseISODuration(item.ContentDetails.Duration)
		if err != nil {
			c.logger.Warn("Skipping video with unparseable duration",
				zap.String("video_id", item.ID),
				zap.Error(err))
			continue
		}
		details[item.ID] = videoDetail{
			id:              item.ID,
			title:           item.Snippet.Title,
			kind:            classify(seconds),
			durationSeconds: seconds,
			views:           item.Statistics.Num("viewCount"),
			likes:           item.Statistics.Num("likeCount"),
			comments:        item.Statistics.Num("commentCount"),
		}
	}
	return details, nil
}

type channelsListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			CustomURL   string `json:"customUrl"`
			Description string `json:"description"`
		} `json:"snippet"`
		Statistics sources.Row `json:"statistics"`
	} `json:"items"`
}

// ListResources enumerates the channels owned by the identity.
func (c *Client) ListResources(ctx context.Context, accessToken string) ([]models.Resource, error) {
	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("mine", "true")

	var resp channelsListResponse
	u := fmt.Sprintf("%s/channels?%s", c.dataBaseURL, params.Encode())
	if err := c.up.GetJSON(ctx, u, accessToken, &resp); err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	resources := []models.Resource{}
	for _, item := range resp.Items {
		resources = append(resources, models.Resource{
			ID:          item.ID,
			DisplayName: item.Snippet.Title,
			Metadata: map[string]string{
				"custom_url": item.Snippet.CustomURL,
			},
		})
	}
	return resources, nil
}

var (
	_ sources.Fetcher    = (*Client)(nil)
	_ sources.Enumerator = (*Client)(nil)
)
