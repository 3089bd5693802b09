package sources

import "github.com/staylens-io/staylens-engine/pkg/models"

// TimezonePolicy declares how a source interprets date-range boundaries.
type TimezonePolicy string

const (
	// TimezoneCalendar passes naive calendar dates straight through
	// (GA4, Search Console, YouTube style).
	TimezoneCalendar TimezonePolicy = "calendar"
	// TimezoneAccount means boundaries are evaluated in the upstream
	// account's configured timezone (ad platforms).
	TimezoneAccount TimezonePolicy = "account"
)

// Descriptor is the per-source capability record that parameterizes the
// shared token-fetch-normalize pipeline.
type Descriptor struct {
	Source      models.SourceType
	DisplayName string
	// BatchSize is the upstream maximum item count per detail-lookup call.
	// Zero means the source has no batched detail lookups.
	BatchSize int
	// DefaultLimit bounds breakdown result counts when the caller does not
	// specify one.
	DefaultLimit int
	// Dimensions lists the breakdown dimensions the source supports.
	Dimensions []string
	Timezone   TimezonePolicy
	// SupportsReports is false for connect-and-enumerate sources
	// (spreadsheets, file storage).
	SupportsReports bool
}

var catalog = map[models.SourceType]Descriptor{
	models.SourceGoogleAnalytics: {
		Source:          models.SourceGoogleAnalytics,
		DisplayName:     "Google Analytics",
		DefaultLimit:    25,
		Dimensions:      []string{"channel", "device", "country"},
		Timezone:        TimezoneCalendar,
		SupportsReports: true,
	},
	models.SourceGoogleAds: {
		Source:          models.SourceGoogleAds,
		DisplayName:     "Google Ads",
		DefaultLimit:    25,
		Dimensions:      []string{"keyword"},
		Timezone:        TimezoneAccount,
		SupportsReports: true,
	},
	models.SourceMetaAds: {
		Source:          models.SourceMetaAds,
		DisplayName:     "Meta Ads",
		DefaultLimit:    25,
		Dimensions:      []string{"campaign"},
		Timezone:        TimezoneAccount,
		SupportsReports: true,
	},
	models.SourceSearchConsole: {
		Source:          models.SourceSearchConsole,
		DisplayName:     "Search Console",
		DefaultLimit:    25,
		Dimensions:      []string{"query", "page"},
		Timezone:        TimezoneCalendar,
		SupportsReports: true,
	},
	models.SourceYouTube: {
		Source:          models.SourceYouTube,
		DisplayName:     "YouTube",
		BatchSize:       50, // videos.list id cap
		DefaultLimit:    50,
		Dimensions:      []string{"video", "short"},
		Timezone:        TimezoneCalendar,
		SupportsReports: true,
	},
	models.SourceFacebookPage: {
		Source:          models.SourceFacebookPage,
		DisplayName:     "Facebook Page",
		DefaultLimit:    25,
		Timezone:        TimezoneAccount,
		SupportsReports: true,
	},
	models.SourceGoogleSheets: {
		Source:      models.SourceGoogleSheets,
		DisplayName: "Google Sheets",
		Timezone:    TimezoneCalendar,
	},
	models.SourceGoogleDrive: {
		Source:      models.SourceGoogleDrive,
		DisplayName: "Google Drive",
		Timezone:    TimezoneCalendar,
	},
}

// Describe returns the capability descriptor for a source.
func Describe(source models.SourceType) (Descriptor, bool) {
	d, ok := catalog[source]
	return d, ok
}
