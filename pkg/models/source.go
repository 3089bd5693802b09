package models

// SourceType identifies one external data provider integration.
type SourceType string

const (
	SourceGoogleAnalytics SourceType = "google_analytics"
	SourceGoogleAds       SourceType = "google_ads"
	SourceMetaAds         SourceType = "meta_ads"
	SourceSearchConsole   SourceType = "search_console"
	SourceYouTube         SourceType = "youtube"
	SourceFacebookPage    SourceType = "facebook_page"
	SourceGoogleSheets    SourceType = "google_sheets"
	SourceGoogleDrive     SourceType = "google_drive"
)

// AllSources lists every supported source type in display order.
func AllSources() []SourceType {
	return []SourceType{
		SourceGoogleAnalytics,
		SourceGoogleAds,
		SourceMetaAds,
		SourceSearchConsole,
		SourceYouTube,
		SourceFacebookPage,
		SourceGoogleSheets,
		SourceGoogleDrive,
	}
}

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceGoogleAnalytics, SourceGoogleAds, SourceMetaAds, SourceSearchConsole,
		SourceYouTube, SourceFacebookPage, SourceGoogleSheets, SourceGoogleDrive:
		return true
	}
	return false
}

func (s SourceType) String() string { return string(s) }
