package models

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus describes where a connection is in its lifecycle.
type ConnectionStatus string

const (
	// ConnectionStatusPending means OAuth completed but no upstream resource
	// has been selected yet. The connection cannot serve report requests.
	ConnectionStatusPending ConnectionStatus = "pending_resource"
	// ConnectionStatusActive means the connection is fully configured.
	ConnectionStatusActive ConnectionStatus = "active"
	// ConnectionStatusInvalid means the refresh token was revoked or the user
	// disconnected the source. The user must re-authorize from scratch.
	ConnectionStatusInvalid ConnectionStatus = "invalid"
)

// Connection is the persisted OAuth credential plus selected upstream
// resource for one (project, source) pair. Token fields hold plaintext
// values in memory; the repository layer stores them encrypted.
type Connection struct {
	ID                 uuid.UUID         `json:"id"`
	ProjectID          uuid.UUID         `json:"project_id"`
	Source             SourceType        `json:"source"`
	ExternalResourceID string            `json:"external_resource_id"`
	RefreshToken       string            `json:"-"`
	AccessToken        string            `json:"-"`
	AccessTokenExpiry  *time.Time        `json:"access_token_expiry,omitempty"`
	Status             ConnectionStatus  `json:"status"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HasValidAccessToken reports whether the stored access token can be used
// without refreshing. Expiry must be strictly in the future.
func (c *Connection) HasValidAccessToken(now time.Time) bool {
	return c.AccessToken != "" && c.AccessTokenExpiry != nil && c.AccessTokenExpiry.After(now)
}

// ResourceSelected reports whether an upstream resource has been chosen.
func (c *Connection) ResourceSelected() bool {
	return c.ExternalResourceID != ""
}

// Resource is one selectable upstream entity (property, ad account,
// channel, page, spreadsheet) reachable with the connected identity.
type Resource struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
