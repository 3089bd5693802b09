// Package upstream is the shared HTTP client for provider APIs: JSON
// encoding, bearer auth, per-client rate limiting, timeouts, and retry on
// transient failures. Access tokens are always explicit per-call arguments -
// the client itself carries no credential state.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/staylens-io/staylens-engine/pkg/logging"
	"github.com/staylens-io/staylens-engine/pkg/retry"
)

// maxErrorBodyBytes caps how much of an upstream error body is kept for
// diagnostics.
const maxErrorBodyBytes = 2048

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// IsAuth reports whether the response indicates an authorization problem
// with the presented token rather than a bad request or outage.
func (e *StatusError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// retryable reports whether the request can be safely re-issued.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client issues JSON requests against one provider API family.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	retry   *retry.Config
	logger  *zap.Logger
}

// Options configures a Client.
type Options struct {
	Timeout       time.Duration
	RatePerSecond float64
	RateBurst     int
	Retry         *retry.Config
}

// NewClient builds a rate-limited JSON client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RateBurst),
		retry:   opts.Retry,
		logger:  logger,
	}
}

// Request describes one upstream JSON call.
type Request struct {
	Method  string
	URL     string
	Token   string // bearer access token, empty to skip the header
	Headers map[string]string
	Body    any // JSON-encoded when non-nil
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url, token string, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodGet, URL: url, Token: token}, out)
}

// PostJSON issues a POST with a JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, url, token string, body, out any) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPost, URL: url, Token: token, Body: body}, out)
}

// DoJSON issues the request with rate limiting and retry on 429/5xx/network
// errors. Non-2xx responses surface as *StatusError.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	var body []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = data
	}

	return retry.Do(ctx, c.retry, func() (bool, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}

		err := c.doOnce(ctx, req, body, out)
		if err == nil {
			return false, nil
		}

		var serr *StatusError
		if errors.As(err, &serr) {
			if serr.retryable() {
				c.logger.Warn("Retrying upstream call",
					zap.String("url", logging.Sanitize(req.URL)),
					zap.Int("status", serr.StatusCode))
				return true, err
			}
			return false, err
		}
		if ctx.Err() != nil {
			return false, err
		}
		// Network-level failure, worth one more attempt.
		return true, err
	})
}

func (c *Client) doOnce(ctx context.Context, req Request, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       logging.Sanitize(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return nil
}
