// Package ga integrates the Google Analytics Data API (GA4).
package ga

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

const (
	defaultDataBaseURL  = "https://analyticsdata.googleapis.com/v1beta"
	defaultAdminBaseURL = "https://analyticsadmin.googleapis.com/v1beta"

	// maxBreakdownRows caps how many dimension slices one breakdown returns.
	maxBreakdownRows = 100
)

// Overview measure names in the normalized schema.
const (
	MeasureSessions       = "sessions"
	MeasureUsers          = "users"
	MeasurePageviews      = "pageviews"
	MeasureEngagementRate = "engagement_rate" // ratio in [0,1]
	DurationAvgSession    = "avg_session_duration"
)

// breakdownDimensions maps normalized dimension names onto GA4 API names.
var breakdownDimensions = map[string]string{
	"channel": "sessionDefaultChannelGroup",
	"device":  "deviceCategory",
	"country": "country",
}

// Client calls the GA4 Data and Admin APIs.
type Client struct {
	up           *upstream.Client
	dataBaseURL  string
	adminBaseURL string
	logger       *zap.Logger
}

// NewClient builds a GA4 client on the shared upstream client.
func NewClient(up *upstream.Client, logger *zap.Logger) *Client {
	return &Client{
		up:           up,
		dataBaseURL:  defaultDataBaseURL,
		adminBaseURL: defaultAdminBaseURL,
		logger:       logger,
	}
}

// WithBaseURLs overrides endpoints, used by tests with a fake upstream.
func (c *Client) WithBaseURLs(data, admin string) *Client {
	c.dataBaseURL = data
	c.adminBaseURL = admin
	return c
}

// runReport request/response shapes, trimmed to the fields used.

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Dimensions []namedRef  `json:"dimensions,omitempty"`
	Metrics    []namedRef  `json:"metrics"`
	OrderBys   []orderBy   `json:"orderBys,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type namedRef struct {
	Name string `json:"name"`
}

type orderBy struct {
	Metric metricOrderBy `json:"metric"`
	Desc   bool          `json:"desc"`
}

type metricOrderBy struct {
	MetricName string `json:"metricName"`
}

type runReportResponse struct {
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
	RowCount int `json:"rowCount"`
}

var overviewMetrics = []namedRef{
	{Name: "sessions"},
	{Name: "totalUsers"},
	{Name: "screenPageViews"},
	{Name: "averageSessionDuration"},
	{Name: "engagementRate"},
}

// FetchOverview returns aggregate property totals for the range. An empty
// upstream result yields a zero-filled record.
func (c *Client) FetchOverview(ctx context.Context, p sources.FetchParams) (*models.Overview, error) {
	current, err := c.overviewTotals(ctx, p.ResourceID, p.AccessToken, p.Range)
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceGoogleAnalytics.String(), err)
	}

	overview := models.NewOverview(MeasureSessions, MeasureUsers, MeasurePageviews, MeasureEngagementRate)
	for name, v := range current.measures {
		overview.Measures[name] = v
	}
	overview.Durations = map[string]models.Duration{
		DurationAvgSession: models.EncodeDuration(current.avgSessionSeconds),
	}

	if p.Compare != nil {
		previous, err := c.overviewTotals(ctx, p.ResourceID, p.AccessToken, *p.Compare)
		if err != nil {
			return nil, apperrors.NewReportFetchError(models.SourceGoogleAnalytics.String(), err)
		}
		overview.DeltasPct = sources.Deltas(overview.Measures, previous.measures)
	}

	return overview, nil
}

type overviewTotals struct {
	measures          map[string]float64
	avgSessionSeconds float64
}

func (c *Client) overviewTotals(ctx context.Context, propertyID, token string, r models.DateRange) (*overviewTotals, error) {
	req := runReportRequest{
		DateRanges: []dateRange{{StartDate: r.StartString(), EndDate: r.EndString()}},
		Metrics:    overviewMetrics,
	}

	var resp runReportResponse
	url := fmt.Sprintf("%s/properties/%s:runReport", c.dataBaseURL, propertyID)
	if err := c.up.PostJSON(ctx, url, token, req, &resp); err != nil {
		return nil, err
	}

	totals := &overviewTotals{measures: map[string]float64{
		MeasureSessions:       0,
		MeasureUsers:          0,
		MeasurePageviews:      0,
		MeasureEngagementRate: 0,
	}}
	if len(resp.Rows) == 0 {
		return totals, nil
	}

	row := resp.Rows[0]
	get := func(i int) float64 {
		if i >= len(row.MetricValues) {
			return 0
		}
		return sources.Coerce(row.MetricValues[i].Value)
	}
	totals.measures[MeasureSessions] = get(0)
	totals.measures[MeasureUsers] = get(1)
	totals.measures[MeasurePageviews] = get(2)
	totals.avgSessionSeconds = get(3)
	totals.measures[MeasureEngagementRate] = get(4)
	return totals, nil
}

// FetchBreakdown returns per-dimension session rows ordered by sessions.
func (c *Client) FetchBreakdown(ctx context.Context, p sources.FetchParams) ([]models.BreakdownRow, error) {
	apiDimension, ok := breakdownDimensions[p.Dimension]
	if !ok {
		return nil, apperrors.NewReportFetchError(models.SourceGoogleAnalytics.String(),
			fmt.Errorf("unsupported dimension %q", p.Dimension))
	}

	limit := p.Limit
	if limit <= 0 || limit > maxBreakdownRows {
		limit = maxBreakdownRows
	}

	req := runReportRequest{
		DateRanges: []dateRange{{StartDate: p.Range.StartString(), EndDate: p.Range.EndString()}},
		Dimensions: []namedRef{{Name: apiDimension}},
		Metrics: []namedRef{
			{Name: "sessions"},
			{Name: "totalUsers"},
			{Name: "screenPageViews"},
		},
		OrderBys: []orderBy{{Metric: metricOrderBy{MetricName: "sessions"}, Desc: true}},
		Limit:    limit,
	}

	var resp runReportResponse
	url := fmt.Sprintf("%s/properties/%s:runReport", c.dataBaseURL, p.ResourceID)
	if err := c.up.PostJSON(ctx, url, p.AccessToken, req, &resp); err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceGoogleAnalytics.String(), err)
	}

	rows := make([]models.BreakdownRow, 0, len(resp.Rows))
	for _, raw := range resp.Rows {
		label := "(not set)"
		if len(raw.DimensionValues) > 0 && raw.DimensionValues[0].Value != "" {
			label = raw.DimensionValues[0].Value
		}
		get := func(i int) float64 {
			if i >= len(raw.MetricValues) {
				return 0
			}
			return sources.Coerce(raw.MetricValues[i].Value)
		}
		rows = append(rows, models.BreakdownRow{
			Label: label,
			Measures: map[string]float64{
				MeasureSessions:  get(0),
				MeasureUsers:     get(1),
				MeasurePageviews: get(2),
			},
		})
	}
	return rows, nil
}

// accountSummariesResponse lists the properties visible to the identity.
type accountSummariesResponse struct {
	AccountSummaries []struct {
		DisplayName       string `json:"displayName"`
		PropertySummaries []struct {
			Property     string `json:"property"` // "properties/123456"
			DisplayName  string `json:"displayName"`
			PropertyType string `json:"propertyType"`
		} `json:"propertySummaries"`
	} `json:"accountSummaries"`
	NextPageToken string `json:"nextPageToken"`
}

// ListResources enumerates GA4 properties across all visible accounts.
func (c *Client) ListResources(ctx context.Context, accessToken string) ([]models.Resource, error) {
	resources := []models.Resource{}
	pageToken := ""
	for {
		url := fmt.Sprintf("%s/accountSummaries?pageSize=200", c.adminBaseURL)
		if pageToken != "" {
			url += "&pageToken=" + pageToken
		}

		var resp accountSummariesResponse
		if err := c.up.GetJSON(ctx, url, accessToken, &resp); err != nil {
			return nil, fmt.Errorf("failed to list GA4 properties: %w", err)
		}

		for _, account := range resp.AccountSummaries {
			for _, prop := range account.PropertySummaries {
				resources = append(resources, models.Resource{
					// "properties/123456" -> keep the numeric id only.
					ID:          strings.TrimPrefix(prop.Property, "properties/"),
					DisplayName: prop.DisplayName,
					Metadata: map[string]string{
						"account": account.DisplayName,
					},
				})
			}
		}

		if resp.NextPageToken == "" {
			c.logger.Debug("Listed GA4 properties", zap.Int("count", len(resources)))
			return resources, nil
		}
		pageToken = resp.NextPageToken
	}
}

var (
	_ sources.Fetcher    = (*Client)(nil)
	_ sources.Enumerator = (*Client)(nil)
)
