package database

import (
	"strings"
	"time"
)

type Category struct {
	ID          int64
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Framework struct {
	ID                    int64
	Name                  string
	Description           string
	WebsiteURL            string
	RepoURL               string
	RepoPath              string
	CategoryID            int64
	LogoURL               *string
	Tags                  []string
	TrendingScore         *float64
	LastCommitUnix        *int64
	CurrentStars          *int64
	CurrentPyPIDownloads  *int64
	CurrentNpmDownloads   *int64
	CurrentSimilarwebRank *int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Snapshot struct {
	ID             int64
	FrameworkID    int64
	CapturedAt     int64
	GitHubStars    *int64
	PyPIDownloads  *int64
	NpmDownloads   *int64
	SimilarwebRank *int64
	LastCommitUnix *int64
}

type Resource struct {
	ID          int64
	FrameworkID int64
	Title       string
	URL         string
	Type        string
}

type UserSettings struct {
	ID                   int64
	Subject              string
	Theme                string
	FavoriteFrameworkIDs []int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type InsertFrameworkArgs struct {
	Name                  string
	Description           string
	WebsiteURL            string
	RepoURL               string
	RepoPath              string
	CategoryID            int64
	LogoURL               *string
	Tags                  []string
	TrendingScore         *float64
	LastCommitUnix        *int64
	CurrentStars          *int64
	CurrentPyPIDownloads  *int64
	CurrentNpmDownloads   *int64
	CurrentSimilarwebRank *int64
}

// FrameworkMetricsPatch carries the denormalized metric fields a refresh pass
// wants to overwrite. Nil fields are left untouched.
type FrameworkMetricsPatch struct {
	CurrentStars          *int64
	LastCommitUnix        *int64
	CurrentPyPIDownloads  *int64
	CurrentNpmDownloads   *int64
	CurrentSimilarwebRank *int64
}

// SnapshotPatch carries the metric fields one adapter observed. Nil fields
// are preserved when merging into an existing same-day snapshot.
type SnapshotPatch struct {
	GitHubStars    *int64
	PyPIDownloads  *int64
	NpmDownloads   *int64
	SimilarwebRank *int64
	LastCommitUnix *int64
}

type ListFrameworksArgs struct {
	// CategoryID restricts the scan to one category (indexed path).
	CategoryID *int64
	// OrderBy is an index-backed sort column; empty means no SQL ordering.
	// Callers sort non-indexed fields in memory.
	OrderBy string
	Desc    bool
}

type InsertResourceArgs struct {
	FrameworkID int64
	Title       string
	URL         string
	Type        string
}

const frameworkColumns = "id, name, description, website_url, repo_url, repo_path, category_id, logo_url, tags, " +
	"trending_score, last_commit_ts, current_stars, current_pypi_downloads, current_npm_downloads, current_similarweb_rank, " +
	"created_at, updated_at"

var InsertCategoryQuery = strings.Join([]string{
	"INSERT INTO categories (name, description)",
	"VALUES ($1, $2)",
	"ON CONFLICT (name)",
	"DO UPDATE SET description = COALESCE(EXCLUDED.description, categories.description), updated_at = NOW()",
	"RETURNING id",
}, " ")

var ListCategoriesQuery = strings.Join([]string{
	"SELECT id, name, description, created_at, updated_at",
	"FROM categories ORDER BY name",
}, " ")

var CategoryByIDQuery = strings.Join([]string{
	"SELECT id, name, description, created_at, updated_at",
	"FROM categories WHERE id = $1",
}, " ")

var CategoryByNameQuery = strings.Join([]string{
	"SELECT id, name, description, created_at, updated_at",
	"FROM categories WHERE name = $1",
}, " ")

var InsertFrameworkQuery = strings.Join([]string{
	"INSERT INTO frameworks",
	"(name, description, website_url, repo_url, repo_path, category_id, logo_url, tags,",
	"trending_score, last_commit_ts, current_stars, current_pypi_downloads, current_npm_downloads, current_similarweb_rank)",
	"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
	"RETURNING id",
}, " ")

var FrameworkByIDQuery = "SELECT " + frameworkColumns + " FROM frameworks WHERE id = $1"

var FrameworkByRepoPathQuery = "SELECT " + frameworkColumns + " FROM frameworks WHERE repo_path = $1"

var CountFrameworksQuery = "SELECT COUNT(*) FROM frameworks"

var UpdateFrameworkMetricsQuery = strings.Join([]string{
	"UPDATE frameworks SET",
	"current_stars = COALESCE($2, current_stars),",
	"last_commit_ts = COALESCE($3, last_commit_ts),",
	"current_pypi_downloads = COALESCE($4, current_pypi_downloads),",
	"current_npm_downloads = COALESCE($5, current_npm_downloads),",
	"current_similarweb_rank = COALESCE($6, current_similarweb_rank),",
	"updated_at = NOW()",
	"WHERE id = $1",
}, " ")

var UpdateTrendingScoreQuery = strings.Join([]string{
	"UPDATE frameworks SET trending_score = $2, updated_at = NOW()",
	"WHERE id = $1",
}, " ")

var snapshotColumns = "id, framework_id, captured_at, github_stars, pypi_downloads, npm_downloads, similarweb_rank, last_commit_ts"

var SnapshotSinceQuery = strings.Join([]string{
	"SELECT " + snapshotColumns,
	"FROM metrics_snapshots",
	"WHERE framework_id = $1 AND captured_at >= $2",
	"ORDER BY captured_at DESC LIMIT 1",
}, " ")

var LatestSnapshotQuery = strings.Join([]string{
	"SELECT " + snapshotColumns,
	"FROM metrics_snapshots",
	"WHERE framework_id = $1",
	"ORDER BY captured_at DESC LIMIT 1",
}, " ")

var SnapshotBeforeQuery = strings.Join([]string{
	"SELECT " + snapshotColumns,
	"FROM metrics_snapshots",
	"WHERE framework_id = $1 AND captured_at <= $2",
	"ORDER BY captured_at DESC LIMIT 1",
}, " ")

var InsertSnapshotQuery = strings.Join([]string{
	"INSERT INTO metrics_snapshots",
	"(framework_id, captured_at, github_stars, pypi_downloads, npm_downloads, similarweb_rank, last_commit_ts)",
	"VALUES ($1, $2, $3, $4, $5, $6, $7)",
	"RETURNING id",
}, " ")

var MergeSnapshotQuery = strings.Join([]string{
	"UPDATE metrics_snapshots SET",
	"github_stars = COALESCE($2, github_stars),",
	"pypi_downloads = COALESCE($3, pypi_downloads),",
	"npm_downloads = COALESCE($4, npm_downloads),",
	"similarweb_rank = COALESCE($5, similarweb_rank),",
	"last_commit_ts = COALESCE($6, last_commit_ts)",
	"WHERE id = $1",
	"RETURNING " + snapshotColumns,
}, " ")

var InsertResourceQuery = strings.Join([]string{
	"INSERT INTO resources (framework_id, title, url, type)",
	"VALUES ($1, $2, $3, $4)",
	"RETURNING id",
}, " ")

var ResourceByIDQuery = "SELECT id, framework_id, title, url, type FROM resources WHERE id = $1"

var ResourcesByFrameworkQuery = strings.Join([]string{
	"SELECT id, framework_id, title, url, type FROM resources",
	"WHERE framework_id = $1 ORDER BY id",
}, " ")

var ListResourcesQuery = "SELECT id, framework_id, title, url, type FROM resources ORDER BY id"

var ResourcesByTypeQuery = strings.Join([]string{
	"SELECT id, framework_id, title, url, type FROM resources",
	"WHERE type = $1 AND id <> $2 AND framework_id <> $3",
	"ORDER BY id LIMIT $4",
}, " ")

var UserSettingsBySubjectQuery = strings.Join([]string{
	"SELECT id, subject, theme, favorite_framework_ids, created_at, updated_at",
	"FROM user_settings WHERE subject = $1",
}, " ")

var UpsertUserSettingsQuery = strings.Join([]string{
	"INSERT INTO user_settings (subject, theme, favorite_framework_ids)",
	"VALUES ($1, $2, $3)",
	"ON CONFLICT (subject)",
	"DO UPDATE SET theme = EXCLUDED.theme, favorite_framework_ids = EXCLUDED.favorite_framework_ids, updated_at = NOW()",
	"RETURNING id, subject, theme, favorite_framework_ids, created_at, updated_at",
}, " ")

// indexedOrderColumns are the only columns ListFrameworks will order by in
// SQL. Anything else is the caller's in-memory comparator.
var indexedOrderColumns = map[string]bool{
	"trending_score": true,
	"current_stars":  true,
}

// RenderListFrameworksQuery builds SQL and args for the index-backed
// framework scan. Unknown order columns are ignored rather than interpolated.
func RenderListFrameworksQuery(args ListFrameworksArgs) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT " + frameworkColumns + " FROM frameworks")
	qargs := make([]any, 0, 1)
	if args.CategoryID != nil {
		sb.WriteString(" WHERE category_id = $1")
		qargs = append(qargs, *args.CategoryID)
	}
	if indexedOrderColumns[args.OrderBy] {
		sb.WriteString(" ORDER BY " + args.OrderBy)
		if args.Desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
		sb.WriteString(" NULLS LAST")
	}
	return sb.String(), qargs
}

// RenderTopTrendingQuery builds SQL for the top-trending shortcut.
func RenderTopTrendingQuery() string {
	return "SELECT " + frameworkColumns + " FROM frameworks ORDER BY trending_score DESC NULLS LAST LIMIT $1"
}
