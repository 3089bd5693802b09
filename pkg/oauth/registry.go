package oauth

import (
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"github.com/staylens-io/staylens-engine/pkg/config"
	"github.com/staylens-io/staylens-engine/pkg/models"
)

// Per-source scope sets. Google sources share one OAuth app but request
// only the scopes the source needs.
var googleScopes = map[models.SourceType][]string{
	models.SourceGoogleAnalytics: {"https://www.googleapis.com/auth/analytics.readonly"},
	models.SourceGoogleAds:       {"https://www.googleapis.com/auth/adwords"},
	models.SourceSearchConsole:   {"https://www.googleapis.com/auth/webmasters.readonly"},
	models.SourceYouTube: {
		"https://www.googleapis.com/auth/youtube.readonly",
		"https://www.googleapis.com/auth/yt-analytics.readonly",
	},
	models.SourceGoogleSheets: {"https://www.googleapis.com/auth/drive.metadata.readonly"},
	models.SourceGoogleDrive:  {"https://www.googleapis.com/auth/drive.metadata.readonly"},
}

var metaScopes = map[models.SourceType][]string{
	models.SourceMetaAds:      {"ads_read", "business_management"},
	models.SourceFacebookPage: {"pages_read_engagement", "pages_show_list", "read_insights"},
}

// Registry resolves the OAuth provider adapter for a source.
type Registry struct {
	providers map[models.SourceType]Provider
}

// NewRegistry builds one provider per source from the configured OAuth apps.
func NewRegistry(cfg *config.Config) *Registry {
	providers := make(map[models.SourceType]Provider)

	for source, scopes := range googleScopes {
		providers[source] = newProvider(&oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.RedirectURL(source.String()),
			Scopes:       scopes,
		},
			// Google only issues a refresh token for offline access, and
			// only re-issues one when consent is re-prompted.
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		)
	}

	for source, scopes := range metaScopes {
		providers[source] = newProvider(&oauth2.Config{
			ClientID:     cfg.Meta.ClientID,
			ClientSecret: cfg.Meta.ClientSecret,
			Endpoint:     facebook.Endpoint,
			RedirectURL:  cfg.RedirectURL(source.String()),
			Scopes:       scopes,
		})
	}

	return &Registry{providers: providers}
}

// Provider returns the adapter for a source.
func (r *Registry) Provider(source models.SourceType) (Provider, error) {
	p, ok := r.providers[source]
	if !ok {
		return nil, fmt.Errorf("no oauth provider for source %q", source)
	}
	return p, nil
}
