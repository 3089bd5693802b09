// Package metaads integrates the Meta Marketing API insights endpoints.
package metaads

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
	defaultBaseURL = "https://graph.facebook.com/v19.0"

	maxCampaignRows = 100
)

// Normalized measure names.
const (
	MeasureImpressions = "impressions"
	MeasureClicks      = "clicks"
	MeasureSpend       = "spend" // account currency units
	MeasureReach       = "reach"
	MeasureCPC         = "cpc" // account currency units, derived
	MeasureCTR         = "ctr" // ratio in [0,1], derived
)

// Client calls the Meta Graph API.
type Client struct {
	up      *upstream.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient builds a Meta Ads client.
func NewClient(up *upstream.Client, logger *zap.Logger) *Client {
	return &Client{up: up, baseURL: defaultBaseURL, logger: logger}
}

// WithBaseURL overrides the endpoint, used by tests with a fake upstream.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// listResponse is the generic Graph API list envelope.
type listResponse struct {
	Data []sources.Row `json:"data"`
}

func timeRangeParam(r models.DateRange) string {
	return fmt.Sprintf(`{"since":"%s","until":"%s"}`, r.StartString(), r.EndString())
}

// FetchOverview returns ad-account totals for the range.
func (c *Client) FetchOverview(ctx context.Context, p sources.FetchParams) (*models.Overview, error) {
	current, err := c.accountTotals(ctx, p.ResourceID, p.AccessToken, p.Range)
	if err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceMetaAds.String(), err)
	}

	overview := &models.Overview{Measures: current}
	if p.Compare != nil {
		previous, err := c.accountTotals(ctx, p.ResourceID, p.AccessToken, *p.Compare)
		if err != nil {
			return nil, apperrors.NewReportFetchError(models.SourceMetaAds.String(), err)
		}
		overview.DeltasPct = sources.Deltas(current, previous)
	}
	return overview, nil
}

func (c *Client) accountTotals(ctx context.Context, accountID, token string, r models.DateRange) (map[string]float64, error) {
	params := url.Values{}
	params.Set("fields", "impressions,clicks,spend,reach")
	params.Set("time_range", timeRangeParam(r))

	var resp listResponse
	u := fmt.Sprintf("%s/act_%s/insights?%s", c.baseURL, accountID, params.Encode())
	if err := c.up.GetJSON(ctx, u, token, &resp); err != nil {
		return nil, err
	}

	totals := map[string]float64{
		MeasureImpressions: 0,
		MeasureClicks:      0,
		MeasureSpend:       0,
		MeasureReach:       0,
		MeasureCPC:         0,
		MeasureCTR:         0,
	}
	// The account-level report returns at most one summary row; numeric
	// fields arrive as strings.
	for _, row := range resp.Data {
		totals[MeasureImpressions] += row.Num("impressions")
		totals[MeasureClicks] += row.Num("clicks")
		totals[MeasureSpend] += row.Num("spend")
		totals[MeasureReach] += row.Num("reach")
	}
	totals[MeasureCPC] = sources.Ratio(totals[MeasureSpend], totals[MeasureClicks])
	totals[MeasureCTR] = sources.Ratio(totals[MeasureClicks], totals[MeasureImpressions])
	return totals, nil
}

// FetchBreakdown returns the top campaigns by spend.
func (c *Client) FetchBreakdown(ctx context.Context, p sources.FetchParams) ([]models.BreakdownRow, error) {
	if p.Dimension != "campaign" {
		return nil, apperrors.NewReportFetchError(models.SourceMetaAds.String(),
			fmt.Errorf("unsupported dimension %q", p.Dimension))
	}

	limit := p.Limit
	if limit <= 0 || limit > maxCampaignRows {
		limit = maxCampaignRows
	}

	params := url.Values{}
	params.Set("level", "campaign")
	params.Set("fields", "campaign_name,impressions,clicks,spend")
	params.Set("time_range", timeRangeParam(p.Range))
	params.Set("sort", "spend_descending")
	params.Set("limit", fmt.Sprintf("%d", limit))

	var resp listResponse
	u := fmt.Sprintf("%s/act_%s/insights?%s", c.baseURL, p.ResourceID, params.Encode())
	if err := c.up.GetJSON(ctx, u, p.AccessToken, &resp); err != nil {
		return nil, apperrors.NewReportFetchError(models.SourceMetaAds.String(), err)
	}

	rows := make([]models.BreakdownRow, 0, len(resp.Data))
	for _, row := range resp.Data {
		impressions := row.Num("impressions")
		clicks := row.Num("clicks")
		rows = append(rows, models.BreakdownRow{
			Label: row.Str("campaign_name", "(unnamed campaign)"),
			Measures: map[string]float64{
				MeasureImpressions: impressions,
				MeasureClicks:      clicks,
				MeasureSpend:       row.Num("spend"),
				MeasureCTR:         sources.Ratio(clicks, impressions),
			},
		})
	}
	return rows, nil
}

// ListResources enumerates the ad accounts visible to the identity, with
// the account currency as metadata.
func (c *Client) ListResources(ctx context.Context, accessToken string) ([]models.Resource, error) {
	params := url.Values{}
	params.Set("fields", "account_id,name,currency")
	params.Set("limit", "100")

	var resp listResponse
	u := fmt.Sprintf("%s/me/adaccounts?%s", c.baseURL, params.Encode())
	if err := c.up.GetJSON(ctx, u, accessToken, &resp); err != nil {
		return nil, fmt.Errorf("failed to list ad accounts: %w", err)
	}

	resources := []models.Resource{}
	for _, row := range resp.Data {
		id := row.Str("account_id", "")
		if id == "" {
			c.logger.Warn("Skipping ad account without account_id")
			continue
		}
		resources = append(resources, models.Resource{
			ID:          id,
			DisplayName: row.Str("name", "Account "+id),
			Metadata: map[string]string{
				"currency": row.Str("currency", ""),
			},
		})
	}
	return resources, nil
}

var (
	_ sources.Fetcher    = (*Client)(nil)
	_ sources.Enumerator = (*Client)(nil)
)
