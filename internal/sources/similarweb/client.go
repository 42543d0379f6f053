// Package similarweb adapts the Similarweb traffic API into a global-rank
// lookup. The provider requires a provisioned API key; a payload without
// rank data is a valid "rank unknown" success, not a failure.
package similarweb

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

const defaultBaseURL = "https://api.similarweb.com"

// Client fetches the global rank of a bare domain.
type Client struct {
	baseURL string
	apiKey  string
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

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		hc:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rankResponse struct {
	GlobalRank *int64 `json:"global_rank"`
}

// FetchGlobalRank returns the global rank for domain. A missing API key is a
// configuration error; a response without a global_rank field yields a nil
// rank.
func (c *Client) FetchGlobalRank(ctx context.Context, domain string) (*sources.RankResult, error) {
	if c.apiKey == "" {
		return nil, &sources.ConfigurationError{Name: "SIMILARWEB_API_KEY"}
	}
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("main_domain_only", "false")
	q.Set("granularity", "monthly")
	u := fmt.Sprintf("%s/v1/website/%s/traffic-and-engagement/visits?%s", c.baseURL, url.PathEscape(domain), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build similarweb request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("similarweb request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read similarweb response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &sources.UpstreamError{Source: "similarweb", StatusCode: resp.StatusCode, Body: string(body)}
	}
	var rr rankResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, &sources.UpstreamError{Source: "similarweb", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &sources.RankResult{Domain: domain, Rank: rr.GlobalRank}, nil
}
