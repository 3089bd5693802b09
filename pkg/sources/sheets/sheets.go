// Package sheets enumerates Google Sheets spreadsheets. Like drive, the
// connection has no report surface of its own.
package sheets

import (
	"context"

	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
	"github.com/staylens-io/staylens-engine/pkg/sources/drive"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

const (
	defaultBaseURL = "https://www.googleapis.com/drive/v3"

	spreadsheetQuery = "mimeType='application/vnd.google-apps.spreadsheet'"
)

// Client enumerates spreadsheets through the Drive files API.
type Client struct {
	up      *upstream.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient builds a Sheets client.
func NewClient(up *upstream.Client, logger *zap.Logger) *Client {
	return &Client{up: up, baseURL: defaultBaseURL, logger: logger}
}

// WithBaseURL overrides the endpoint, used by tests with a fake upstream.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// ListResources enumerates the identity's spreadsheets, newest first.
func (c *Client) ListResources(ctx context.Context, accessToken string) ([]models.Resource, error) {
	return drive.ListFiles(ctx, c.up, c.baseURL, accessToken, spreadsheetQuery)
}

var _ sources.Enumerator = (*Client)(nil)
