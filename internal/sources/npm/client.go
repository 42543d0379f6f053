// Package npm adapts the npm registry download-stats API.
package npm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"agentbuilders.dev/internal/sources"
)

const (
	defaultBaseURL = "https://api.npmjs.org"

	// DefaultPeriod is the rolling window used when the caller does not
	// pick one. Valid values follow the npm point-endpoint vocabulary
	// (last-day, last-week, last-month).
	DefaultPeriod = "last-month"
)

// Client fetches download counts from the npm registry API.
// The endpoint requires no authentication.
type Client struct {
	baseURL string
	hc      *http.Client
}

// ClientOption applies a configuration to the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		hc:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pointResponse struct {
	Downloads *int64 `json:"downloads"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// FetchDownloadStats returns the download count for packageName over period.
// An empty period defaults to DefaultPeriod.
func (c *Client) FetchDownloadStats(
	ctx context.Context,
	packageName, period string,
) (*sources.DownloadStats, error) {
	if period == "" {
		period = DefaultPeriod
	}
	u := fmt.Sprintf("%s/downloads/point/%s/%s", c.baseURL, url.PathEscape(period), url.PathEscape(packageName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build npm request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("npm request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read npm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &sources.UpstreamError{Source: "npm", StatusCode: resp.StatusCode, Body: string(body)}
	}
	var pr pointResponse
	if err := json.Unmarshal(body, &pr); err != nil || pr.Downloads == nil {
		return nil, &sources.UpstreamError{Source: "npm", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &sources.DownloadStats{
		Downloads: *pr.Downloads,
		Period:    period,
		Start:     pr.Start,
		End:       pr.End,
	}, nil
}
