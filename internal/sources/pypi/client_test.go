package pypi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentbuilders.dev/internal/sources"
)

func TestFetchDownloadStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/packages/llama-index/recent", r.URL.Path)
		assert.Equal(t, "month", r.URL.Query().Get("period"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"last_day":1200,"last_week":9000,"last_month":61000,"month":61000},"package":"llama-index","type":"recent_downloads"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	stats, err := c.FetchDownloadStats(context.Background(), "llama-index", "")
	require.NoError(t, err)
	assert.Equal(t, int64(61000), stats.Downloads)
	assert.Equal(t, DefaultPeriod, stats.Period)
}

func TestFetchDownloadStatsErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{
			name:       "unknown package",
			status:     http.StatusNotFound,
			body:       `{"error":"package not found"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing period in data",
			status:     http.StatusOK,
			body:       `{"data":{"last_week":9000}}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed body",
			status:     http.StatusOK,
			body:       `<!doctype html>`,
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(WithBaseURL(srv.URL))
			_, err := c.FetchDownloadStats(context.Background(), "langchain", "month")
			var ue *sources.UpstreamError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, "pypi", ue.Source)
			assert.Equal(t, tt.wantStatus, ue.StatusCode)
		})
	}
}
