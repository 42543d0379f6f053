package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"agentbuilders.dev/internal/catalog"
	"agentbuilders.dev/internal/config"
	"agentbuilders.dev/internal/database"
)

type stubStore struct {
	frameworks []*database.Framework
	categories []*database.Category
	resources  []*database.Resource
	settings   map[string]*database.UserSettings
}

func (s *stubStore) ListFrameworks(_ context.Context, args database.ListFrameworksArgs) ([]*database.Framework, error) {
	var out []*database.Framework
	for _, f := range s.frameworks {
		if args.CategoryID != nil && f.CategoryID != *args.CategoryID {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *stubStore) TopFrameworksByTrending(ctx context.Context, limit int) ([]*database.Framework, error) {
	out, _ := s.ListFrameworks(ctx, database.ListFrameworksArgs{})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubStore) GetFramework(_ context.Context, id int64) (*database.Framework, error) {
	for _, f := range s.frameworks {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListCategories(context.Context) ([]*database.Category, error) {
	return s.categories, nil
}

func (s *stubStore) GetCategory(_ context.Context, id int64) (*database.Category, error) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (s *stubStore) LatestSnapshot(context.Context, int64) (*database.Snapshot, error) {
	return nil, nil
}

func (s *stubStore) GetResource(_ context.Context, id int64) (*database.Resource, error) {
	for _, r := range s.resources {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListResources(_ context.Context, frameworkID *int64) ([]*database.Resource, error) {
	var out []*database.Resource
	for _, r := range s.resources {
		if frameworkID != nil && r.FrameworkID != *frameworkID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubStore) ListResourcesByType(context.Context, string, int64, int64, int) ([]*database.Resource, error) {
	return nil, nil
}

func (s *stubStore) GetUserSettings(_ context.Context, subject string) (*database.UserSettings, error) {
	return s.settings[subject], nil
}

func (s *stubStore) UpsertUserSettings(_ context.Context, subject, theme string, favorites []int64) (*database.UserSettings, error) {
	if s.settings == nil {
		s.settings = map[string]*database.UserSettings{}
	}
	us := &database.UserSettings{Subject: subject, Theme: theme, FavoriteFrameworkIDs: favorites}
	s.settings[subject] = us
	return us, nil
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(context.Context) error { return p.err }

func testServer(t *testing.T, store *stubStore, pinger *stubPinger) http.Handler {
	t.Helper()
	cfg := config.New()
	if pinger == nil {
		pinger = &stubPinger{}
	}
	return New(cfg, pinger, catalog.NewService(store)).http.Handler
}

func defaultStore() *stubStore {
	return &stubStore{
		frameworks: []*database.Framework{
			{ID: 1, Name: "LangGraph", CategoryID: 1, Tags: []string{"python"}, TrendingScore: ptr.To(72.5)},
			{ID: 2, Name: "Mastra", CategoryID: 2, Tags: []string{"typescript"}},
		},
		categories: []*database.Category{
			{ID: 1, Name: "Orchestration"},
			{ID: 2, Name: "TypeScript-first"},
		},
		resources: []*database.Resource{
			{ID: 10, FrameworkID: 1, Title: "LangGraph docs", URL: "https://example.com", Type: "Documentation"},
		},
	}
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListFrameworksEndpoint(t *testing.T) {
	h := testServer(t, defaultStore(), nil)

	rec := doRequest(t, h, http.MethodGet, "/api/frameworks?sortBy=name&sortDirection=asc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Frameworks []struct {
			Name string `json:"name"`
		} `json:"frameworks"`
		Total   int  `json:"total"`
		HasMore bool `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.False(t, body.HasMore)
	require.Len(t, body.Frameworks, 2)
	assert.Equal(t, "LangGraph", body.Frameworks[0].Name)
}

func TestListFrameworksEndpointValidation(t *testing.T) {
	h := testServer(t, defaultStore(), nil)

	tests := []struct {
		name   string
		target string
	}{
		{name: "unknown sort field", target: "/api/frameworks?sortBy=downloads"},
		{name: "malformed limit", target: "/api/frameworks?limit=abc"},
		{name: "malformed category", target: "/api/frameworks?category=xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodGet, tt.target, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetFrameworkEndpoint(t *testing.T) {
	h := testServer(t, defaultStore(), nil)

	rec := doRequest(t, h, http.MethodGet, "/api/frameworks/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Framework struct {
			Name          string   `json:"name"`
			TrendingScore *float64 `json:"trendingScore"`
		} `json:"framework"`
		Category struct {
			Name string `json:"name"`
		} `json:"category"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "LangGraph", body.Framework.Name)
	require.NotNil(t, body.Framework.TrendingScore)
	assert.Equal(t, 72.5, *body.Framework.TrendingScore)
	assert.Equal(t, "Orchestration", body.Category.Name)

	rec = doRequest(t, h, http.MethodGet, "/api/frameworks/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsEndpointsRequireSubject(t *testing.T) {
	h := testServer(t, defaultStore(), nil)

	rec := doRequest(t, h, http.MethodGet, "/api/me/settings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/me/settings", "", map[string]string{
		"X-Auth-Subject": "auth0|abc",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Theme string `json:"theme"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "system", body.Theme)
}

func TestSettingsUpdateEndpoint(t *testing.T) {
	h := testServer(t, defaultStore(), nil)
	header := map[string]string{"X-Auth-Subject": "auth0|abc"}

	rec := doRequest(t, h, http.MethodPut, "/api/me/settings",
		`{"theme":"dark","favoriteFrameworkIds":[1,2]}`, header)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Theme                string  `json:"theme"`
		FavoriteFrameworkIDs []int64 `json:"favoriteFrameworkIds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dark", body.Theme)
	assert.Equal(t, []int64{1, 2}, body.FavoriteFrameworkIDs)

	rec = doRequest(t, h, http.MethodPut, "/api/me/settings", `{"theme":"sepia"}`, header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/me/settings", `{bad json`, header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	h := testServer(t, defaultStore(), nil)
	rec := doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = testServer(t, defaultStore(), &stubPinger{err: errors.New("down")})
	rec = doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListResourcesEndpoint(t *testing.T) {
	h := testServer(t, defaultStore(), nil)
	rec := doRequest(t, h, http.MethodGet, "/api/resources?frameworkId=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Resources []struct {
			Title         string `json:"title"`
			FrameworkName string `json:"frameworkName"`
		} `json:"resources"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Resources, 1)
	assert.Equal(t, "LangGraph docs", body.Resources[0].Title)
	assert.Equal(t, "LangGraph", body.Resources[0].FrameworkName)
}
