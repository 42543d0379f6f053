package similarweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentbuilders.dev/internal/sources"
)

func TestFetchGlobalRank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/website/langchain.com/traffic-and-engagement/visits", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "monthly", r.URL.Query().Get("granularity"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"global_rank":16000,"visits":[{"date":"2026-07-01","visits":1234567}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	res, err := c.FetchGlobalRank(context.Background(), "langchain.com")
	require.NoError(t, err)
	assert.Equal(t, "langchain.com", res.Domain)
	require.NotNil(t, res.Rank)
	assert.Equal(t, int64(16000), *res.Rank)
}

func TestFetchGlobalRankWithoutRankField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"visits":[]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	res, err := c.FetchGlobalRank(context.Background(), "tiny-domain.example")
	require.NoError(t, err)
	assert.Nil(t, res.Rank)
}

func TestFetchGlobalRankMissingKey(t *testing.T) {
	c := NewClient("")
	_, err := c.FetchGlobalRank(context.Background(), "langchain.com")
	var ce *sources.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "SIMILARWEB_API_KEY", ce.Name)
}

func TestFetchGlobalRankUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"meta":{"error_message":"user capacity exceeded"}}`))
	}))
	defer srv.Close()

	c := NewClient("revoked-key", WithBaseURL(srv.URL))
	_, err := c.FetchGlobalRank(context.Background(), "langchain.com")
	var ue *sources.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "similarweb", ue.Source)
	assert.Equal(t, http.StatusUnauthorized, ue.StatusCode)
}
