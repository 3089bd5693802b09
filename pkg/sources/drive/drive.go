// Package drive enumerates Google Drive files. Drive connections carry no
// report surface; the selected file feeds downstream content workflows.
package drive

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/staylens-io/staylens-engine/pkg/models"
	"github.com/staylens-io/staylens-engine/pkg/sources"
	"github.com/staylens-io/staylens-engine/pkg/upstream"
)

const (
	defaultBaseURL = "https://www.googleapis.com/drive/v3"

	pageSize = 100
	maxFiles = 500
)

// Client calls the Drive files API.
type Client struct {
	up      *upstream.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient builds a Drive client.
func NewClient(up *upstream.Client, logger *zap.Logger) *Client {
	return &Client{up: up, baseURL: defaultBaseURL, logger: logger}
}

// WithBaseURL overrides the endpoint, used by tests with a fake upstream.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type filesResponse struct {
	Files []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
	} `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// ListResources enumerates the identity's Drive files, newest first.
func (c *Client) ListResources(ctx context.Context, accessToken string) ([]models.Resource, error) {
	return ListFiles(ctx, c.up, c.baseURL, accessToken, "")
}

// ListFiles pages through files.list, optionally constrained by a query.
// Shared with the spreadsheet enumerator.
func ListFiles(ctx context.Context, up *upstream.Client, baseURL, accessToken, query string) ([]models.Resource, error) {
	resources := []models.Resource{}
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("pageSize", fmt.Sprintf("%d", pageSize))
		params.Set("fields", "nextPageToken,files(id,name,mimeType)")
		params.Set("orderBy", "modifiedTime desc")
		if query != "" {
			params.Set("q", query)
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp filesResponse
		u := fmt.Sprintf("%s/files?%s", baseURL, params.Encode())
		if err := up.GetJSON(ctx, u, accessToken, &resp); err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}

		for _, f := range resp.Files {
			resources = append(resources, models.Resource{
				ID:          f.ID,
				DisplayName: f.Name,
				Metadata: map[string]string{
					"mime_type": f.MimeType,
				},
			})
		}
		if resp.NextPageToken == "" || len(resources) >= maxFiles {
			break
		}
		pageToken = resp.NextPageToken
	}
	return resources, nil
}

var _ sources.Enumerator = (*Client)(nil)
