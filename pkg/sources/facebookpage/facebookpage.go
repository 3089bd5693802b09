// Package facebookpage integrates Facebook Page insights. Pages use a
// page-scoped access token distinct from the user token; it is captured at
// resource selection and stored as connection metadata.
package facebookpage

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// Normalized measure names.
const (
	MeasureImpressions = "impressions"
	MeasureEngagements = "engagements"
	MeasureNewFans     = "new_fans"
)

// pageMetrics maps upstream insight names onto normalized measures.
var pageMetrics = map[string]string{
	"page_impressions":      MeasureImpressions,
	"page_post_engagements": MeasureEngagements,
	"page_fan_adds":         MeasureNewFans,
}

// Client calls the Graph API page insights endpoints.
type Client struct {
	up      *upstream.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient builds a Facebook Page client.
func NewClient(up *upstream.Client, logger *zap.Logger) *Client {
	return &Client{up: up, baseURL: defaultBaseURL, logger: logger}
}

// WithBaseURL overrides the endpoint, used by tests with a fake upstream.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value any `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

// FetchOverview sums the page's daily insight values across the range.
func (c *Client) FetchOverview(ctx context.Context, p sources.FetchParams) (*models.Overview, error) {
	current, err := c.pageTotals(ctx, p.ResourceID, p.PageToken(), p.Range)
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceFacebookPage.String(), err)
	}

	overview := &models.Overview{Measures: current}
	if p.Compare != nil {
		previous, err := c.pageTotals(ctx, p.ResourceID, p.PageToken(), *p.Compare)
		if err != nil {
			return nil, apperrors.NewReportFetchError(models.SourceFacebookPage.String(), err)
		}
		overview.DeltasPct = sources.Deltas(current, previous)
	}
	return overview, nil
}

func (c *Client) pageTotals(ctx context.Context, pageID, token string, r models.DateRange) (map[string]float64, error) {
	params := url.Values{}
	params.Set("metric", "page_impressions,page_post_engagements,page_fan_adds")
	params.Set("period", "day")
	params.Set("since", r.StartString())
	params.Set("until", r.EndString())

	var resp insightsResponse
	u := fmt.Sprintf("%s/%s/insights?%s", c.baseURL, pageID, params.Encode())
	if err := c.up.GetJSON(ctx, u, token, &resp); err != nil {
		return nil, err
	}

	totals := map[string]float64{
		MeasureImpressions: 0,
		MeasureEngagements: 0,
		MeasureNewFans:     0,
	}
	for _, series := range resp.Data {
		measure, ok := pageMetrics[series.Name]
		if !ok {
			continue
		}
		for _, v := range series.Values {
			totals[measure] += sources.Coerce(v.Value)
		}
	}
	return totals, nil
}

// FetchBreakdown is not supported for pages; the page overview is the only
// report shape.
func (c *Client) FetchBreakdown(ctx context.Context, p sources.FetchParams) ([]models.BreakdownRow, error) {
	return nil, apperrors.NewReportFetchError(models.SourceFacebookPage.String(),
		fmt.Errorf("unsupported dimension %q", p.Dimension))
}

// ListResources enumerates the pages the identity manages. The page access
// token rides along as metadata so resource selection can persist it.
func (c *Client) ListResources(ctx context.Context, accessToken string) ([]models.Resource, error) {
	params := url.Values{}
	params.Set("fields", "id,name,category,access_token")
	params.Set("limit", "100")

	var resp struct {
		Data []sources.Row `json:"data"`
	}
	u := fmt.Sprintf("%s/me/accounts?%s", c.baseURL, params.Encode())
	if err := c.up.GetJSON(ctx, u, accessToken, &resp); err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	resources := []models.Resource{}
	for _, row := range resp.Data {
		id := row.Str("id", "")
		if id == "" {
			c.logger.Warn("Skipping page without id")
			continue
		}
		resources = append(resources, models.Resource{
			ID:          id,
			DisplayName: row.Str("name", "Page "+id),
			Metadata: map[string]string{
				"category":          row.Str("category", ""),
				"page_access_token": row.Str("access_token", ""),
			},
		})
	}
	return resources, nil
}

var (
	_ sources.Fetcher    = (*Client)(nil)
	_ sources.Enumerator = (*Client)(nil)
)
