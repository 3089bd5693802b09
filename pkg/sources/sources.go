// Package sources defines the per-source integration surface: capability
// descriptors, the enumerator/fetcher interfaces, loose upstream row
// accessors and the shared ranked-batch enrichment used by fetchers.
package sources

import (
	"context"

	"github.com/staylens-io/staylens-engine/pkg/models"
)

// FetchParams carries everything a report fetch needs. Credentials are
// explicit arguments - fetchers hold no per-request state.
type FetchParams struct {
	// ResourceID is the selected upstream entity (property, customer,
	// account, site, channel, page).
	ResourceID string
	// AccessToken is the user-scoped OAuth access token.
	AccessToken string
	// Metadata is the connection's extra metadata. Page-scoped sources read
	// their page access token from here.
	Metadata map[string]string
	// Range is the requested reporting period.
	Range models.DateRange
	// Compare, when set, requests previous-period comparison percentages.
	Compare *models.DateRange
	// Dimension selects the breakdown for breakdown-style fetches.
	Dimension string
	// Limit bounds breakdown row counts. Zero means the source default.
	Limit int
}

// PageToken returns the page-scoped access token when one was stored on
// resource selection, falling back to the user token.
func (p FetchParams) PageToken() string {
	if tok, ok := p.Metadata["page_access_token"]; ok && tok != "" {
		return tok
	}
	return p.AccessToken
}

// Enumerator lists the selectable upstream resources reachable with a token.
// A user with zero accessible resources yields an empty list, not an error.
type Enumerator interface {
	ListResources(ctx context.Context, accessToken string) ([]models.Resource, error)
}

// Fetcher produces normalized metrics for a selected resource.
type Fetcher interface {
	// FetchOverview returns the aggregate record for the range. An empty
	// upstream result yields a structurally valid zero-filled record.
	FetchOverview(ctx context.Context, p FetchParams) (*models.Overview, error)

	// FetchBreakdown returns per-dimension rows. An empty upstream result
	// yields an empty list, never nil semantics at the HTTP boundary.
	FetchBreakdown(ctx context.Context, p FetchParams) ([]models.BreakdownRow, error)
}
