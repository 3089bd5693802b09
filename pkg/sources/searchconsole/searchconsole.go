// Package searchconsole integrates the Google Search Console API.
package searchconsole

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

const (
	defaultBaseURL = "https://www.googleapis.com/webmasters/v3"

	maxRows = 100
)

// Normalized measure names.
const (
	MeasureClicks      = "clicks"
	MeasureImpressions = "impressions"
	MeasureCTR         = "ctr"      // ratio in [0,1]
	MeasurePosition    = "position" // average ranking position
)

// dimensions supported by the breakdown endpoint.
var breakdownDimensions = map[string]string{
	"query": "query",
	"page":  "page",
}

// Client calls the Search Console search analytics endpoints.
type Client struct {
	up      *upstream.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient builds a Search Console client.
func NewClient(up *upstream.Client, logger *zap.Logger) *Client {
	return &Client{up: up, baseURL: defaultBaseURL, logger: logger}
}

// WithBaseURL overrides the endpoint, used by tests with a fake upstream.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type queryRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions,omitempty"`
	RowLimit   int      `json:"rowLimit,omitempty"`
}

type queryResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
}

func (c *Client) query(ctx context.Context, siteURL, token string, req queryRequest) (*queryResponse, error) {
	u := fmt.Sprintf("%s/sites/%s/searchAnalytics/query", c.baseURL, url.PathEscape(siteURL))
	var resp queryResponse
	if err := c.up.PostJSON(ctx, u, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchOverview returns site-wide search totals for the range.
func (c *Client) FetchOverview(ctx context.Context, p sources.FetchParams) (*models.Overview, error) {
	current, err := c.siteTotals(ctx, p.ResourceID, p.AccessToken, p.Range)
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceSearchConsole.String(), err)
	}

	overview := &models.Overview{Measures: current}
	if p.Compare != nil {
		previous, err := c.siteTotals(ctx, p.ResourceID, p.AccessToken, *p.Compare)
		if err != nil {
			return nil, apperrors.NewReportFetchError(models.SourceSearchConsole.String(), err)
		}
		overview.DeltasPct = sources.Deltas(current, previous)
	}
	return overview, nil
}

func (c *Client) siteTotals(ctx context.Context, siteURL, token string, r models.DateRange) (map[string]float64, error) {
	resp, err := c.query(ctx, siteURL, token, queryRequest{
		StartDate: r.StartString(),
		EndDate:   r.EndString(),
	})
	if err != nil {
		return nil, err
	}

	totals := map[string]float64{
		MeasureClicks:      0,
		MeasureImpressions: 0,
		MeasureCTR:         0,
		MeasurePosition:    0,
	}
	// Without dimensions the API returns a single totals row.
	if len(resp.Rows) > 0 {
		row := resp.Rows[0]
		totals[MeasureClicks] = sources.Coerce(row.Clicks)
		totals[MeasureImpressions] = sources.Coerce(row.Impressions)
		totals[MeasureCTR] = sources.Coerce(row.CTR)
		totals[MeasurePosition] = sources.Coerce(row.Position)
	}
	return totals, nil
}

// FetchBreakdown returns top queries or pages, in the API's click-descending
// default order.
func (c *Client) FetchBreakdown(ctx context.Context, p sources.FetchParams) ([]models.BreakdownRow, error) {
	apiDimension, ok := breakdownDimensions[p.Dimension]
	if !ok {
		return nil, apperrors.NewReportFetchError(models.SourceSearchConsole.String(),
			fmt.Errorf("unsupported dimension %q", p.Dimension))
	}

	limit := p.Limit
	if limit <= 0 || limit > maxRows {
		limit = maxRows
	}

	resp, err := c.query(ctx, p.ResourceID, p.AccessToken, queryRequest{
		StartDate:  p.Range.StartString(),
		EndDate:    p.Range.EndString(),
		Dimensions: []string{apiDimension},
		RowLimit:   limit,
	})
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceSearchConsole.String(), err)
	}

	rows := make([]models.BreakdownRow, 0, len(resp.Rows))
	for _, raw := range resp.Rows {
		label := "(not set)"
		if len(raw.Keys) > 0 && raw.Keys[0] != "" {
			label = raw.Keys[0]
		}
		rows = append(rows, models.BreakdownRow{
			Label: label,
			Measures: map[string]float64{
				MeasureClicks:      sources.Coerce(raw.Clicks),
				MeasureImpressions: sources.Coerce(raw.Impressions),
				MeasureCTR:         sources.Coerce(raw.CTR),
				MeasurePosition:    sources.Coerce(raw.Position),
			},
		})
	}
	return rows, nil
}

type sitesResponse struct {
	SiteEntry []struct {
		SiteURL         string `json:"siteUrl"`
		PermissionLevel string `json:"permissionLevel"`
	} `json:"siteEntry"`
}

// ListResources enumerates verified sites, skipping ones the identity has no
// access to.
func (c *Client) ListResources(ctx context.Context, accessToken string) ([]models.Resource, error) {
	var resp sitesResponse
	if err := c.up.GetJSON(ctx, c.baseURL+"/sites", accessToken, &resp); err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	resources := []models.Resource{}
	for _, site := range resp.SiteEntry {
		if site.PermissionLevel == "siteUnverifiedUser" {
			continue
		}
		resources = append(resources, models.Resource{
			ID:          site.SiteURL,
			DisplayName: site.SiteURL,
			Metadata: map[string]string{
				"permission": site.PermissionLevel,
			},
		})
	}
	return resources, nil
}

var (
	_ sources.Fetcher    = (*Client)(nil)
	_ sources.Enumerator = (*Client)(nil)
)
