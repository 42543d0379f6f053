// Package sources defines the boundary contracts shared by all external
// metric providers: normalized payload types and the error taxonomy the
// refresh orchestrator relies on. Adapters perform a single attempt and
// never retry; retry policy belongs to the caller.
package sources

import "fmt"

// RepositoryMetrics is the normalized payload of the repository-host adapter.
type RepositoryMetrics struct {
	Stars           int64
	LastCommitUnix  *int64 // nil when the repository has no commits
	Forks           int64
	OpenIssues      int64
	Description     string
	PrimaryLanguage string
}

// DownloadStats is the normalized payload of a package-registry adapter.
type DownloadStats struct {
	Downloads int64
	Period    string
	Start     string
	End       string
}

// RankResult is the normalized payload of the web-rank adapter.
// A nil Rank means the provider has no rank data for the domain,
// which is a valid success outcome.
type RankResult struct {
	Domain string
	Rank   *int64
}

// UpstreamError reports a non-success status or malformed body from an
// external provider. It carries enough context for diagnostics.
type UpstreamError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream returned %d: %s", e.Source, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: malformed upstream response: %s", e.Source, e.Body)
}

// ConfigurationError reports a required credential that was not provisioned.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Name)
}
