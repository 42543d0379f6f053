package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"agentbuilders.dev/internal/sources"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(
		WithBaseURL(srv.URL),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
}

func TestFetchRepositoryMetrics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/langchain-ai/langchain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"stargazers_count": 95000,
			"forks_count": 15000,
			"open_issues_count": 420,
			"description": "Build context-aware reasoning applications",
			"language": "Python",
			"default_branch": "master"
		}`))
	})
	mux.HandleFunc("/repos/langchain-ai/langchain/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "master", r.URL.Query().Get("sha"))
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"sha":"abc123","commit":{"committer":{"name":"dev","date":"2026-08-20T09:30:00Z"}}}]`))
	})

	c := newTestClient(t, mux)
	m, err := c.FetchRepositoryMetrics(context.Background(), "langchain-ai/langchain")
	require.NoError(t, err)
	assert.Equal(t, int64(95000), m.Stars)
	assert.Equal(t, int64(15000), m.Forks)
	assert.Equal(t, int64(420), m.OpenIssues)
	assert.Equal(t, "Python", m.PrimaryLanguage)
	require.NotNil(t, m.LastCommitUnix)
	want := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC).Unix()
	assert.Equal(t, want, *m.LastCommitUnix)
}

func TestFetchRepositoryMetricsEmptyHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stargazers_count": 3, "default_branch": "main"}`))
	})
	mux.HandleFunc("/repos/acme/empty/commits", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	c := newTestClient(t, mux)
	m, err := c.FetchRepositoryMetrics(context.Background(), "acme/empty")
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.Stars)
	assert.Nil(t, m.LastCommitUnix)
}

func TestFetchRepositoryMetricsNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))

	_, err := c.FetchRepositoryMetrics(context.Background(), "acme/gone")
	var ue *sources.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "github", ue.Source)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
}

func TestSplitRepoPath(t *testing.T) {
	tests := []struct {
		path      string
		owner     string
		name      string
		wantError bool
	}{
		{path: "langchain-ai/langchain", owner: "langchain-ai", name: "langchain"},
		{path: "/microsoft/autogen/", owner: "microsoft", name: "autogen"},
		{path: "just-a-name", wantError: true},
		{path: "too/many/parts", wantError: true},
		{path: "", wantError: true},
		{path: "/", wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			owner, name, err := splitRepoPath(tt.path)
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.name, name)
		})
	}
}
