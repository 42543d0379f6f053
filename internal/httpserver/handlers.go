package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"agentbuilders.dev/internal/catalog"
	"agentbuilders.dev/internal/database"
)

type handler struct {
	db            Pinger
	catalog       *catalog.Service
	subjectHeader string
}

type frameworkDTO struct {
	ID                    int64    `json:"id"`
	Name                  string   `json:"name"`
	Description           string   `json:"description"`
	WebsiteURL            string   `json:"websiteUrl"`
	RepoURL               string   `json:"repoUrl"`
	RepoPath              string   `json:"repoPath"`
	CategoryID            int64    `json:"categoryId"`
	LogoURL               *string  `json:"logoUrl,omitempty"`
	Tags                  []string `json:"tags"`
	TrendingScore         *float64 `json:"trendingScore,omitempty"`
	LastCommitTimestamp   *int64   `json:"lastCommitTimestamp,omitempty"`
	CurrentStars          *int64   `json:"currentStars,omitempty"`
	CurrentPypiDownloads  *int64   `json:"currentPypiDownloads,omitempty"`
	CurrentNpmDownloads   *int64   `json:"currentNpmDownloads,omitempty"`
	CurrentSimilarwebRank *int64   `json:"currentSimilarwebRank,omitempty"`
}

func frameworkToDTO(f *database.Framework) *frameworkDTO {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return &frameworkDTO{
		ID:                    f.ID,
		Name:                  f.Name,
		Description:           f.Description,
		WebsiteURL:            f.WebsiteURL,
		RepoURL:               f.RepoURL,
		RepoPath:              f.RepoPath,
		CategoryID:            f.CategoryID,
		LogoURL:               f.LogoURL,
		Tags:                  tags,
		TrendingScore:         f.TrendingScore,
		LastCommitTimestamp:   f.LastCommitUnix,
		CurrentStars:          f.CurrentStars,
		CurrentPypiDownloads:  f.CurrentPyPIDownloads,
		CurrentNpmDownloads:   f.CurrentNpmDownloads,
		CurrentSimilarwebRank: f.CurrentSimilarwebRank,
	}
}

func frameworksToDTO(fs []*database.Framework) []*frameworkDTO {
	out := make([]*frameworkDTO, 0, len(fs))
	for _, f := range fs {
		out = append(out, frameworkToDTO(f))
	}
	return out
}

type categoryDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func categoryToDTO(c *database.Category) *categoryDTO {
	return &categoryDTO{ID: c.ID, Name: c.Name, Description: c.Description}
}

type resourceDTO struct {
	ID            int64  `json:"id"`
	FrameworkID   int64  `json:"frameworkId"`
	FrameworkName string `json:"frameworkName,omitempty"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Type          string `json:"type"`
}

func resourceToDTO(r *database.Resource) *resourceDTO {
	return &resourceDTO{
		ID:          r.ID,
		FrameworkID: r.FrameworkID,
		Title:       r.Title,
		URL:         r.URL,
		Type:        r.Type,
	}
}

type snapshotDTO struct {
	ID             int64  `json:"id"`
	CapturedAt     int64  `json:"capturedAt"`
	GitHubStars    *int64 `json:"githubStars,omitempty"`
	PypiDownloads  *int64 `json:"pypiDownloads,omitempty"`
	NpmDownloads   *int64 `json:"npmDownloads,omitempty"`
	SimilarwebRank *int64 `json:"similarwebRank,omitempty"`
	LastCommitUnix *int64 `json:"lastCommitTimestamp,omitempty"`
}

type settingsDTO struct {
	Subject              string  `json:"subject"`
	Theme                string  `json:"theme"`
	FavoriteFrameworkIDs []int64 `json:"favoriteFrameworkIds"`
}

func settingsToDTO(us *database.UserSettings) *settingsDTO {
	favorites := us.FavoriteFrameworkIDs
	if favorites == nil {
		favorites = []int64{}
	}
	return &settingsDTO{Subject: us.Subject, Theme: us.Theme, FavoriteFrameworkIDs: favorites}
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "database unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryInt parses an optional integer query parameter, reporting a
// ValidationError on malformed input.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &catalog.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &catalog.ValidationError{Field: "id", Reason: "must be an integer"}
	}
	return id, nil
}

func (h *handler) listFrameworks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := catalog.ListOptions{
		Search:        q.Get("search"),
		SortBy:        q.Get("sortBy"),
		SortDirection: q.Get("sortDirection"),
	}
	if raw := q.Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, &catalog.ValidationError{Field: "category", Reason: "must be an integer"})
			return
		}
		opts.CategoryID = &id
	}
	if raw := q.Get("tags"); raw != "" {
		opts.Tags = strings.Split(raw, ",")
	}
	var err error
	if opts.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if opts.Skip, err = queryInt(r, "skip", 0); err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.catalog.ListFrameworks(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"frameworks": frameworksToDTO(page.Frameworks),
		"total":      page.Total,
		"hasMore":    page.HasMore,
	})
}

func (h *handler) trendingFrameworks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	frameworks, err := h.catalog.TrendingFrameworks(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"frameworks": frameworksToDTO(frameworks)})
}

func (h *handler) getFramework(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	detail, err := h.catalog.GetFramework(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body := map[string]any{"framework": frameworkToDTO(detail.Framework)}
	if detail.Category != nil {
		body["category"] = categoryToDTO(detail.Category)
	}
	if detail.Snapshot != nil {
		s := detail.Snapshot
		body["latestSnapshot"] = &snapshotDTO{
			ID:             s.ID,
			CapturedAt:     s.CapturedAt,
			GitHubStars:    s.GitHubStars,
			PypiDownloads:  s.PyPIDownloads,
			NpmDownloads:   s.NpmDownloads,
			SimilarwebRank: s.SimilarwebRank,
			LastCommitUnix: s.LastCommitUnix,
		}
	}
	resources := make([]*resourceDTO, 0, len(detail.Resources))
	for _, res := range detail.Resources {
		resources = append(resources, resourceToDTO(res))
	}
	body["resources"] = resources
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]*categoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryToDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (h *handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryToDTO(c))
}

func (h *handler) listResources(w http.ResponseWriter, r *http.Request) {
	opts := catalog.ResourceListOptions{Type: r.URL.Query().Get("type")}
	if raw := r.URL.Query().Get("frameworkId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, &catalog.ValidationError{Field: "frameworkId", Reason: "must be an integer"})
			return
		}
		opts.FrameworkID = &id
	}
	var err error
	if opts.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if opts.Skip, err = queryInt(r, "skip", 0); err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.catalog.ListResources(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]*resourceDTO, 0, len(page.Resources))
	for _, item := range page.Resources {
		dto := resourceToDTO(item.Resource)
		dto.FrameworkName = item.FrameworkName
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resources": out,
		"total":     page.Total,
		"hasMore":   page.HasMore,
	})
}

func (h *handler) getResource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.catalog.GetResource(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resourceToDTO(res))
}

func (h *handler) relatedResources(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	related, err := h.catalog.RelatedResources(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]*resourceDTO, 0, len(related))
	for _, res := range related {
		out = append(out, resourceToDTO(res))
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": out})
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	us, err := h.catalog.GetSettings(r.Context(), subjectFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsToDTO(us))
}

type settingsUpdateRequest struct {
	Theme                *string  `json:"theme"`
	FavoriteFrameworkIDs *[]int64 `json:"favoriteFrameworkIds"`
}

func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &catalog.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}
	us, err := h.catalog.UpdateSettings(r.Context(), subjectFromContext(r.Context()), catalog.SettingsUpdate{
		Theme:                req.Theme,
		FavoriteFrameworkIDs: req.FavoriteFrameworkIDs,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsToDTO(us))
}
