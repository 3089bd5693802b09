// Package googleads integrates the Google Ads reporting API.
package googleads

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/apperrors"
	"github.com/staylens-io/staylens-engine/pkg/logging"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

const (
	defaultBaseURL = "https://googleads.googleapis.com/v16"

	maxKeywordRows = 100
)

// Normalized measure names.
const (
	MeasureImpressions = "impressions"
	MeasureClicks      = "clicks"
	MeasureCost        = "cost" // account currency units
	MeasureConversions = "conversions"
	MeasureCTR         = "ctr"     // ratio in [0,1], derived
	MeasureAvgCPC      = "avg_cpc" // account currency units, derived
)

// Client calls the Google Ads API. The developer token is an app-level
// credential required on every call in addition to the OAuth token.
type Client struct {
	up             *upstream.Client
	baseURL        string
	developerToken string
	logger         *zap.Logger
}

// NewClient builds a Google Ads client.
func NewClient(up *upstream.Client, developerToken string, logger *zap.Logger) *Client {
	return &Client{
		up:             up,
		baseURL:        defaultBaseURL,
		developerToken: developerToken,
		logger:         logger,
	}
}

// WithBaseURL overrides the endpoint, used by tests with a fake upstream.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Metrics          sources.Row `json:"metrics"`
	AdGroupCriterion struct {
		Keyword struct {
			Text string `json:"text"`
		} `json:"keyword"`
	} `json:"adGroupCriterion"`
	Customer sources.Row `json:"customer"`
}

func (c *Client) search(ctx context.Context, customerID, token, query string) (*searchResponse, error) {
	req := upstream.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/customers/%s/googleAds:search", c.baseURL, customerID),
		Token:  token,
		Headers: map[string]string{
			"developer-token": c.developerToken,
		},
		Body: searchRequest{Query: query},
	}
	var resp searchResponse
	if err := c.up.DoJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchOverview returns account totals for the range. Rows are summed since
// the API segments totals by any segment present in the report.
func (c *Client) FetchOverview(ctx context.Context, p sources.FetchParams) (*models.Overview, error) {
	current, err := c.accountTotals(ctx, p.ResourceID, p.AccessToken, p.Range)
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceGoogleAds.String(), err)
	}

	overview := &models.Overview{Measures: current}
	if p.Compare != nil {
		previous, err := c.accountTotals(ctx, p.ResourceID, p.AccessToken, *p.Compare)
		if err != nil {
			return nil, apperrors.NewReportFetchError(models.SourceGoogleAds.String(), err)
		}
		overview.DeltasPct = sources.Deltas(current, previous)
	}
	return overview, nil
}

func (c *Client) accountTotals(ctx context.Context, customerID, token string, r models.DateRange) (map[string]float64, error) {
	query := fmt.Sprintf(
		`SELECT metrics.impressions, metrics.clicks, metrics.cost_micros, metrics.conversions `+
			`FROM customer WHERE segments.date BETWEEN '%s' AND '%s'`,
		r.StartString(), r.EndString())

	resp, err := c.search(ctx, customerID, token, query)
	if err != nil {
		return nil, err
	}

	totals := map[string]float64{
		MeasureImpressions: 0,
		MeasureClicks:      0,
		MeasureCost:        0,
		MeasureConversions: 0,
		MeasureCTR:         0,
		MeasureAvgCPC:      0,
	}
	for _, res := range resp.Results {
		totals[MeasureImpressions] += res.Metrics.Num("impressions")
		totals[MeasureClicks] += res.Metrics.Num("clicks")
		totals[MeasureCost] += res.Metrics.Num("costMicros") / 1e6
		totals[MeasureConversions] += res.Metrics.Num("conversions")
	}
	totals[MeasureCTR] = sources.Ratio(totals[MeasureClicks], totals[MeasureImpressions])
	totals[MeasureAvgCPC] = sources.Ratio(totals[MeasureCost], totals[MeasureClicks])
	return totals, nil
}

// FetchBreakdown returns the top keywords by clicks.
func (c *Client) FetchBreakdown(ctx context.Context, p sources.FetchParams) ([]models.BreakdownRow, error) {
	if p.Dimension != "keyword" {
		return nil, apperrors.NewReportFetchError(models.SourceGoogleAds.String(),
			fmt.Errorf("unsupported dimension %q", p.Dimension))
	}

	limit := p.Limit
	if limit <= 0 || limit > maxKeywordRows {
		limit = maxKeywordRows
	}

	query := fmt.Sprintf(
		`SELECT ad_group_criterion.keyword.text, metrics.impressions, metrics.clicks, metrics.cost_micros `+
			`FROM keyword_view WHERE segments.date BETWEEN '%s' AND '%s' `+
			`ORDER BY metrics.clicks DESC LIMIT %d`,
		p.Range.StartString(), p.Range.EndString(), limit)

	resp, err := c.search(ctx, p.ResourceID, p.AccessToken, query)
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceGoogleAds.String(), err)
	}

	rows := make([]models.BreakdownRow, 0, len(resp.Results))
	for _, res := range resp.Results {
		label := res.AdGroupCriterion.Keyword.Text
		if label == "" {
			label = "(unknown keyword)"
		}
		impressions := res.Metrics.Num("impressions")
		clicks := res.Metrics.Num("clicks")
		rows = append(rows, models.BreakdownRow{
			Label: label,
			Measures: map[string]float64{
				MeasureImpressions: impressions,
				MeasureClicks:      clicks,
				MeasureCost:        res.Metrics.Num("costMicros") / 1e6,
				MeasureCTR:         sources.Ratio(clicks, impressions),
			},
		})
	}
	return rows, nil
}

type listAccessibleCustomersResponse struct {
	ResourceNames []string `json:"resourceNames"` // "customers/1234567890"
}

// ListResources enumerates accessible ad accounts. The per-account detail
// lookup (name, currency) is best-effort: a failure for one candidate keeps
// the account in the list with placeholder metadata instead of failing the
// whole enumeration.
func (c *Client) ListResources(ctx context.Context, accessToken string) ([]models.Resource, error) {
	req := upstream.Request{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/customers:listAccessibleCustomers", c.baseURL),
		Token:   accessToken,
		Headers: map[string]string{"developer-token": c.developerToken},
	}
	var resp listAccessibleCustomersResponse
	if err := c.up.DoJSON(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list accessible customers: %w", err)
	}

	resources := []models.Resource{}
	for _, name := range resp.ResourceNames {
		customerID := strings.TrimPrefix(name, "customers/")
		resource := models.Resource{
			ID:          customerID,
			DisplayName: "Account " + customerID,
			Metadata:    map[string]string{"currency": ""},
		}

		detail, err := c.search(ctx, customerID, accessToken,
			`SELECT customer.descriptive_name, customer.currency_code FROM customer`)
		if err != nil {
			c.logger.Warn("Failed to load customer detail, keeping placeholder",
				zap.String("customer_id", customerID),
				zap.String("error", logging.SanitizeError(err)))
			resources = append(resources, resource)
			continue
		}
		if len(detail.Results) > 0 {
			resource.DisplayName = detail.Results[0].Customer.Str("descriptiveName", resource.DisplayName)
			resource.Metadata["currency"] = detail.Results[0].Customer.Str("currencyCode", "")
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

var (
	_ sources.Fetcher    = (*Client)(nil)
	_ sources.Enumerator = (*Client)(nil)
)
