// Package catalog is the read-side composition layer over the framework
// directory. Index-backed paths (category filter, metric sorts) are pushed
// into SQL; tag and search filters and the non-indexed sorts run in memory
// as explicit predicates and comparators so the two performance profiles
// stay visible at the interface.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"agentbuilders.dev/internal/database"
)

// Sort fields accepted by ListFrameworks.
const (
	SortByTrendingScore = "trendingScore"
	SortByStars         = "currentStars"
	SortByName          = "name"
	SortByLastCommit    = "lastCommitTimestamp"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Store is the persistence surface the catalog reads from.
type Store interface {
	ListFrameworks(ctx context.Context, args database.ListFrameworksArgs) ([]*database.Framework, error)
	TopFrameworksByTrending(ctx context.Context, limit int) ([]*database.Framework, error)
	GetFramework(ctx context.Context, id int64) (*database.Framework, error)
	ListCategories(ctx context.Context) ([]*database.Category, error)
	GetCategory(ctx context.Context, id int64) (*database.Category, error)
	LatestSnapshot(ctx context.Context, frameworkID int64) (*database.Snapshot, error)
	GetResource(ctx context.Context, id int64) (*database.Resource, error)
	ListResources(ctx context.Context, frameworkID *int64) ([]*database.Resource, error)
	ListResourcesByType(ctx context.Context, typ string, excludeResourceID, excludeFrameworkID int64, limit int) ([]*database.Resource, error)
	GetUserSettings(ctx context.Context, subject string) (*database.UserSettings, error)
	UpsertUserSettings(ctx context.Context, subject, theme string, favoriteFrameworkIDs []int64) (*database.UserSettings, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service { return &Service{store: store} }

// ListOptions are the caller-facing filter/sort/paginate knobs.
type ListOptions struct {
	CategoryID    *int64
	Tags          []string
	Search        string
	SortBy        string
	SortDirection string
	Limit         int
	Skip          int
}

// Page is one page of frameworks plus the pagination bookkeeping the
// frontend needs.
type Page struct {
	Frameworks []*database.Framework
	Total      int
	HasMore    bool
}

// indexedSortColumns maps caller sort fields to the metric columns the
// database can order on directly. Name and lastCommit stay in memory.
var indexedSortColumns = map[string]string{
	SortByTrendingScore: "trending_score",
	SortByStars:         "current_stars",
}

// ListFrameworks applies the category filter and indexed sorts in SQL, the
// tag/search predicates and remaining sorts in memory, then paginates.
func (s *Service) ListFrameworks(ctx context.Context, opts ListOptions) (*Page, error) {
	tracer := otel.Tracer("agentbuilders/catalog")
	ctx, span := tracer.Start(ctx, "Catalog.ListFrameworks")
	span.SetAttributes(
		attribute.String("sort_by", opts.SortBy),
		attribute.Int("limit", opts.Limit),
		attribute.Int("skip", opts.Skip),
	)
	defer span.End()

	if err := normalizeListOptions(&opts); err != nil {
		return nil, err
	}

	args := database.ListFrameworksArgs{CategoryID: opts.CategoryID}
	if col, ok := indexedSortColumns[opts.SortBy]; ok {
		args.OrderBy = col
		args.Desc = opts.SortDirection == "desc"
	}
	frameworks, err := s.store.ListFrameworks(ctx, args)
	if err != nil {
		return nil, err
	}

	frameworks = filterFrameworks(frameworks, tagPredicate(opts.Tags), searchPredicate(opts.Search))
	if args.OrderBy == "" {
		sortFrameworks(frameworks, opts.SortBy, opts.SortDirection == "desc")
	}

	total := len(frameworks)
	page := paginate(frameworks, opts.Skip, opts.Limit)
	slog.DebugContext(ctx, "frameworks listed",
		"total", total, "returned", len(page), "sort_by", opts.SortBy)
	return &Page{
		Frameworks: page,
		Total:      total,
		HasMore:    opts.Skip+opts.Limit < total,
	}, nil
}

func normalizeListOptions(opts *ListOptions) error {
	switch opts.SortBy {
	case "":
		opts.SortBy = SortByTrendingScore
	case SortByTrendingScore, SortByStars, SortByName, SortByLastCommit:
	default:
		return &ValidationError{Field: "sortBy", Reason: "unknown sort field " + opts.SortBy}
	}
	switch opts.SortDirection {
	case "":
		opts.SortDirection = "desc"
	case "asc", "desc":
	default:
		return &ValidationError{Field: "sortDirection", Reason: "must be asc or desc"}
	}
	if opts.Limit < 0 || opts.Skip < 0 {
		return &ValidationError{Field: "pagination", Reason: "limit and skip must be non-negative"}
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Limit > MaxLimit {
		opts.Limit = MaxLimit
	}
	return nil
}

type frameworkPredicate func(*database.Framework) bool

// tagPredicate matches frameworks carrying every requested tag,
// case-insensitively. An empty request matches everything.
func tagPredicate(tags []string) frameworkPredicate {
	if len(tags) == 0 {
		return nil
	}
	wanted := make([]string, len(tags))
	for i, t := range tags {
		wanted[i] = strings.ToLower(strings.TrimSpace(t))
	}
	return func(f *database.Framework) bool {
		have := make(map[string]bool, len(f.Tags))
		for _, t := range f.Tags {
			have[strings.ToLower(t)] = true
		}
		for _, w := range wanted {
			if w != "" && !have[w] {
				return false
			}
		}
		return true
	}
}

// searchPredicate matches a case-insensitive substring of the name or
// description.
func searchPredicate(q string) frameworkPredicate {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	return func(f *database.Framework) bool {
		return strings.Contains(strings.ToLower(f.Name), q) ||
			strings.Contains(strings.ToLower(f.Description), q)
	}
}

func filterFrameworks(in []*database.Framework, preds ...frameworkPredicate) []*database.Framework {
	out := in[:0]
	for _, f := range in {
		keep := true
		for _, p := range preds {
			if p != nil && !p(f) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, f)
		}
	}
	return out
}

// sortFrameworks orders by one of the in-memory comparators. Nil metric
// values sort last in either direction.
func sortFrameworks(fs []*database.Framework, sortBy string, desc bool) {
	var less func(a, b *database.Framework) bool
	switch sortBy {
	case SortByName:
		less = func(a, b *database.Framework) bool {
			if desc {
				a, b = b, a
			}
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case SortByLastCommit:
		less = func(a, b *database.Framework) bool {
			if a.LastCommitUnix == nil {
				return false
			}
			if b.LastCommitUnix == nil {
				return true
			}
			if desc {
				return *a.LastCommitUnix > *b.LastCommitUnix
			}
			return *a.LastCommitUnix < *b.LastCommitUnix
		}
	default:
		return
	}
	sort.SliceStable(fs, func(i, j int) bool { return less(fs[i], fs[j]) })
}

func paginate(fs []*database.Framework, skip, limit int) []*database.Framework {
	if skip >= len(fs) {
		return nil
	}
	end := skip + limit
	if end > len(fs) {
		end = len(fs)
	}
	return fs[skip:end]
}

// TrendingFrameworks returns the top frameworks by trending score.
func (s *Service) TrendingFrameworks(ctx context.Context, limit int) ([]*database.Framework, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return s.store.TopFrameworksByTrending(ctx, limit)
}

// FrameworkDetail joins a framework with its category, latest snapshot and
// resources for the detail page.
type FrameworkDetail struct {
	Framework *database.Framework
	Category  *database.Category
	Snapshot  *database.Snapshot
	Resources []*database.Resource
}

func (s *Service) GetFramework(ctx context.Context, id int64) (*FrameworkDetail, error) {
	tracer := otel.Tracer("agentbuilders/catalog")
	ctx, span := tracer.Start(ctx, "Catalog.GetFramework")
	span.SetAttributes(attribute.Int64("framework_id", id))
	defer span.End()

	f, err := s.store.GetFramework(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, &NotFoundError{Kind: "framework", ID: id}
	}
	category, err := s.store.GetCategory(ctx, f.CategoryID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.store.LatestSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	resources, err := s.store.ListResources(ctx, &id)
	if err != nil {
		return nil, err
	}
	return &FrameworkDetail{
		Framework: f,
		Category:  category,
		Snapshot:  snapshot,
		Resources: resources,
	}, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]*database.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*database.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &NotFoundError{Kind: "category", ID: id}
	}
	return c, nil
}
