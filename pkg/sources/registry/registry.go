// Package registry assembles the per-source clients behind the shared
// enumerator and fetcher interfaces.
package registry

import (
	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/config"
	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
	"github.com/staylens-io/staylens-engine/pkg/sources/drive"
	"github.com/staylens-io/staylens-engine/pkg/sources/facebookpage"
	"github.com/staylens-io/staylens-engine/pkg/sources/ga"
	"github.com/staylens-io/staylens-engine/pkg/sources/googleads"
	"github.com/staylens-io/staylens-engine/pkg/sources/metaads"
	"github.com/staylens-io/staylens-engine/pkg/sources/searchconsole"
	"github.com/staylens-io/staylens-engine/pkg/sources/sheets"
	"github.com/staylens-io/staylens-engine/pkg/sources/youtube"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

// Registry resolves a source to its enumerator and, where supported, its
// report fetcher.
type Registry struct {
	enumerators map[models.SourceType]sources.Enumerator
	fetchers    map[models.SourceType]sources.Fetcher
}

// New builds the full source catalog on a shared upstream client.
func New(up *upstream.Client, cfg *config.Config, logger *zap.Logger) *Registry {
	gaClient := ga.NewClient(up, logger.Named("ga"))
	adsClient := googleads.NewClient(up, cfg.Google.AdsDeveloperToken, logger.Named("googleads"))
	metaClient := metaads.NewClient(up, logger.Named("metaads"))
	pageClient := facebookpage.NewClient(up, logger.Named("facebookpage"))
	gscClient := searchconsole.NewClient(up, logger.Named("searchconsole"))
	ytClient := youtube.NewClient(up, logger.Named("youtube"))
	sheetsClient := sheets.NewClient(up, logger.Named("sheets"))
	driveClient := drive.NewClient(up, logger.Named("drive"))

	return &Registry{
		enumerators: map[models.SourceType]sources.Enumerator{
			models.SourceGoogleAnalytics: gaClient,
			models.SourceGoogleAds:       adsClient,
			models.SourceMetaAds:         metaClient,
			models.SourceFacebookPage:    pageClient,
			models.SourceSearchConsole:   gscClient,
			models.SourceYouTube:         ytClient,
			models.SourceGoogleSheets:    sheetsClient,
			models.SourceGoogleDrive:     driveClient,
		},
		fetchers: map[models.SourceType]sources.Fetcher{
			models.SourceGoogleAnalytics: gaClient,
			models.SourceGoogleAds:       adsClient,
			models.SourceMetaAds:         metaClient,
			models.SourceFacebookPage:    pageClient,
			models.SourceSearchConsole:   gscClient,
			models.SourceYouTube:         ytClient,
		},
	}
}

// Enumerator returns the resource enumerator for a source.
func (r *Registry) Enumerator(source models.SourceType) (sources.Enumerator, bool) {
	e, ok := r.enumerators[source]
	return e, ok
}

// Fetcher returns the report fetcher for a source. Connect-and-enumerate
// sources have none.
func (r *Registry) Fetcher(source models.SourceType) (sources.Fetcher, bool) {
	f, ok := r.fetchers[source]
	return f, ok
}
