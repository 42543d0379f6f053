// Package github adapts the repository-host API into normalized repository
// metrics: star count, most-recent commit time on the default branch, forks,
// open issues, description and primary language.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"golang.org/x/time/rate"
	"k8s.io/utils/ptr"

	"agentbuilders.dev/internal/sources"
)

// NewLimiter returns a rate limiter tuned for authenticated or unauthenticated
// GitHub API usage.
func NewLimiter(authenticated bool) *rate.Limiter {
	if authenticated {
		return rate.NewLimiter(rate.Every(time.Hour/5000), 10)
	}
	return rate.NewLimiter(rate.Every(time.Hour/60), 1)
}

// Client wraps the GitHub API client with rate limiting.
type Client struct {
	c *github.Client
	l *rate.Limiter
}

// ClientOptions configures the GitHub client.
type ClientOptions struct {
	token   string
	limiter *rate.Limiter
	baseURL string
}

// ClientOption applies a configuration to ClientOptions.
type ClientOption func(*ClientOptions)

// WithToken sets the personal access token for authenticated requests.
// A token raises rate limits but is not required for correctness.
func WithToken(token string) ClientOption {
	return func(o *ClientOptions) { o.token = token }
}

// WithLimiter sets the rate limiter used for API calls.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(o *ClientOptions) { o.limiter = l }
}

// WithBaseURL points the client at an API-compatible endpoint.
func WithBaseURL(raw string) ClientOption {
	return func(o *ClientOptions) { o.baseURL = raw }
}

// NewClient constructs a GitHub Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	var o ClientOptions
	for _, opt := range opts {
		opt(&o)
	}
	authenticated := o.token != ""
	if o.limiter == nil {
		o.limiter = NewLimiter(authenticated)
	}
	gh := github.NewClient(nil)
	if authenticated {
		slog.Info("Using authenticated GitHub client")
		gh = gh.WithAuthToken(o.token)
	} else {
		slog.Warn("Using unauthenticated GitHub client (rate limited)")
	}
	if o.baseURL != "" {
		if u, err := url.Parse(strings.TrimSuffix(o.baseURL, "/") + "/"); err == nil {
			gh.BaseURL = u
		}
	}
	return &Client{c: gh, l: o.limiter}
}

// FetchRepositoryMetrics fetches repository metadata and the most recent
// commit on the default branch for an "owner/repo" path. Both calls must
// succeed; a missing commit history yields a nil LastCommitUnix, not an error.
func (c *Client) FetchRepositoryMetrics(
	ctx context.Context,
	repoPath string,
) (*sources.RepositoryMetrics, error) {
	owner, name, err := splitRepoPath(repoPath)
	if err != nil {
		return nil, err
	}
	if err := c.l.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	repo, resp, err := c.c.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, upstreamError(resp, err)
	}
	if err := c.l.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	commits, resp, err := c.c.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		SHA:         repo.GetDefaultBranch(),
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, upstreamError(resp, err)
	}
	m := &sources.RepositoryMetrics{
		Stars:           int64(repo.GetStargazersCount()),
		Forks:           int64(repo.GetForksCount()),
		OpenIssues:      int64(repo.GetOpenIssuesCount()),
		Description:     repo.GetDescription(),
		PrimaryLanguage: repo.GetLanguage(),
	}
	if len(commits) > 0 {
		if committer := commits[0].GetCommit().GetCommitter(); committer != nil {
			m.LastCommitUnix = ptr.To(committer.GetDate().Unix())
		}
	}
	return m, nil
}

func splitRepoPath(repoPath string) (owner, name string, err error) {
	parts := strings.Split(strings.Trim(repoPath, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository path %q: want owner/repo", repoPath)
	}
	return parts[0], parts[1], nil
}

func upstreamError(resp *github.Response, err error) error {
	ue := &sources.UpstreamError{Source: "github"}
	if resp != nil {
		ue.StatusCode = resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		ue.Body = ghErr.Message
	} else {
		ue.Body = err.Error()
	}
	return ue
}
