package npm

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
		assert.Equal(t, "/downloads/point/last-month/langchain", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"downloads":48213,"start":"2026-07-29","end":"2026-08-28","package":"langchain"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	stats, err := c.FetchDownloadStats(context.Background(), "langchain", "")
	require.NoError(t, err)
	assert.Equal(t, int64(48213), stats.Downloads)
	assert.Equal(t, DefaultPeriod, stats.Period)
	assert.Equal(t, "2026-07-29", stats.Start)
	assert.Equal(t, "2026-08-28", stats.End)
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
			body:       `{"error":"package no-such-package not found"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing downloads field",
			status:     http.StatusOK,
			body:       `{"start":"2026-07-29","end":"2026-08-28"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed body",
			status:     http.StatusOK,
			body:       `not json`,
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
			_, err := c.FetchDownloadStats(context.Background(), "no-such-package", "last-month")
			var ue *sources.UpstreamError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, "npm", ue.Source)
			assert.Equal(t, tt.wantStatus, ue.StatusCode)
		})
	}
}
