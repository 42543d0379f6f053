// Package pypi adapts the pypistats.org download-stats API.
package pypi

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
	defaultBaseURL = "https://pypistats.org"

	// DefaultPeriod follows the pypistats recent-endpoint vocabulary
	// (day, week, month).
	DefaultPeriod = "month"
)

// Client fetches download counts from pypistats.org.
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

// recentResponse nests counts under a period-keyed object.
type recentResponse struct {
	Data map[string]*int64 `json:"data"`
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
	u := fmt.Sprintf("%s/api/packages/%s/recent?period=%s", c.baseURL, url.PathEscape(packageName), url.QueryEscape(period))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build pypistats request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pypistats request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read pypistats response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &sources.UpstreamError{Source: "pypi", StatusCode: resp.StatusCode, Body: string(body)}
	}
	var rr recentResponse
	if err := json.Unmarshal(body, &rr); err != nil || rr.Data == nil || rr.Data[period] == nil {
		return nil, &sources.UpstreamError{Source: "pypi", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &sources.DownloadStats{
		Downloads: *rr.Data[period],
		Period:    period,
	}, nil
}
