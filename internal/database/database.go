// Package database is the persistence layer over Postgres. It owns the row
// types, the daily-snapshot coalescing rules and the denormalized metric
// patches the refresh pipeline writes.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"agentbuilders.dev/internal/config"
	dbpgx "agentbuilders.dev/internal/database/pgx"
)

type Database struct {
	pg *pgxpool.Pool
}

// NewForConfig constructs a Database using the provided config.
func NewForConfig(cfg *config.Config) (*Database, error) {
	pg, err := dbpgx.NewClientForConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(pg), nil
}

// NewClient constructs a Database using the provided pgx pool.
func NewClient(pg *pgxpool.Pool) *Database { return &Database{pg: pg} }

// Ping verifies the database connection is available.
func (db *Database) Ping(ctx context.Context) error {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.Ping")
	defer span.End()
	if db.pg == nil {
		return fmt.Errorf("database connection not available")
	}
	return db.pg.Ping(ctx)
}

func (db *Database) Close() error {
	if db.pg == nil {
		return nil
	}
	db.pg.Close()
	return nil
}

// InsertCategory inserts a category, updating the description on name
// conflict, and returns its id.
func (db *Database) InsertCategory(ctx context.Context, name string, description *string) (int64, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.InsertCategory")
	span.SetAttributes(attribute.String("name", name))
	defer span.End()
	if db.pg == nil {
		return 0, fmt.Errorf("database connection not available")
	}
	var id int64
	if err := db.pg.QueryRow(ctx, InsertCategoryQuery, name, description).Scan(&id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("insert category failed: %w", err)
	}
	return id, nil
}

func (db *Database) ListCategories(ctx context.Context) ([]*Category, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.ListCategories")
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	rows, err := db.pg.Query(ctx, ListCategoriesQuery)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list categories failed: %w", err)
	}
	defer rows.Close()
	var out []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// GetCategory returns the category with the given id, or nil when absent.
func (db *Database) GetCategory(ctx context.Context, id int64) (*Category, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.GetCategory")
	span.SetAttributes(attribute.Int64("category_id", id))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	var c Category
	err := db.pg.QueryRow(ctx, CategoryByIDQuery, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get category failed: %w", err)
	}
	return &c, nil
}

// GetCategoryByName returns the category with the given name, or nil when absent.
func (db *Database) GetCategoryByName(ctx context.Context, name string) (*Category, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.GetCategoryByName")
	span.SetAttributes(attribute.String("name", name))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	var c Category
	err := db.pg.QueryRow(ctx, CategoryByNameQuery, name).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get category by name failed: %w", err)
	}
	return &c, nil
}

// InsertFramework inserts a framework row and returns its id.
func (db *Database) InsertFramework(ctx context.Context, args *InsertFrameworkArgs) (int64, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.InsertFramework")
	span.SetAttributes(attribute.String("name", args.Name))
	defer span.End()
	if db.pg == nil {
		return 0, fmt.Errorf("database connection not available")
	}
	var id int64
	err := db.pg.QueryRow(ctx, InsertFrameworkQuery,
		args.Name, args.Description, args.WebsiteURL, args.RepoURL, args.RepoPath,
		args.CategoryID, args.LogoURL, args.Tags,
		args.TrendingScore, args.LastCommitUnix, args.CurrentStars,
		args.CurrentPyPIDownloads, args.CurrentNpmDownloads, args.CurrentSimilarwebRank,
	).Scan(&id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("insert framework failed: %w", err)
	}
	slog.DebugContext(ctx, "framework inserted", "id", id, "name", args.Name)
	return id, nil
}

func scanFramework(row pgx.Row) (*Framework, error) {
	var f Framework
	err := row.Scan(
		&f.ID, &f.Name, &f.Description, &f.WebsiteURL, &f.RepoURL, &f.RepoPath,
		&f.CategoryID, &f.LogoURL, &f.Tags,
		&f.TrendingScore, &f.LastCommitUnix, &f.CurrentStars,
		&f.CurrentPyPIDownloads, &f.CurrentNpmDownloads, &f.CurrentSimilarwebRank,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFramework returns the framework with the given id, or nil when absent.
func (db *Database) GetFramework(ctx context.Context, id int64) (*Framework, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.GetFramework")
	span.SetAttributes(attribute.Int64("framework_id", id))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	f, err := scanFramework(db.pg.QueryRow(ctx, FrameworkByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get framework failed: %w", err)
	}
	return f, nil
}

// GetFrameworkByRepoPath resolves a framework through its repository path.
// Used by ingestion; returns nil when absent.
func (db *Database) GetFrameworkByRepoPath(ctx context.Context, repoPath string) (*Framework, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.GetFrameworkByRepoPath")
	span.SetAttributes(attribute.String("repo_path", repoPath))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	f, err := scanFramework(db.pg.QueryRow(ctx, FrameworkByRepoPathQuery, repoPath))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get framework by repo path failed: %w", err)
	}
	return f, nil
}

// ListFrameworks runs the index-backed scan: optional category filter plus
// optional ordering on an indexed metric column. Tag/search filters and
// non-indexed sorts are the catalog layer's job.
func (db *Database) ListFrameworks(ctx context.Context, args ListFrameworksArgs) ([]*Framework, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.ListFrameworks")
	span.SetAttributes(
		attribute.Bool("category_filter", args.CategoryID != nil),
		attribute.String("order_by", args.OrderBy),
	)
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	query, qargs := RenderListFrameworksQuery(args)
	slog.DebugContext(ctx, "list frameworks query", "sql", query, "args_len", len(qargs))
	rows, err := db.pg.Query(ctx, query, qargs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list frameworks failed: %w", err)
	}
	defer rows.Close()
	var out []*Framework
	for rows.Next() {
		f, err := scanFramework(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// TopFrameworksByTrending returns the highest-scoring frameworks.
func (db *Database) TopFrameworksByTrending(ctx context.Context, limit int) ([]*Framework, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.TopFrameworksByTrending")
	span.SetAttributes(attribute.Int("limit", limit))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	rows, err := db.pg.Query(ctx, RenderTopTrendingQuery(), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("top trending query failed: %w", err)
	}
	defer rows.Close()
	var out []*Framework
	for rows.Next() {
		f, err := scanFramework(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountFrameworks returns the total number of cataloged frameworks.
func (db *Database) CountFrameworks(ctx context.Context) (int64, error) {
	if db.pg == nil {
		return 0, fmt.Errorf("database connection not available")
	}
	var n int64
	if err := db.pg.QueryRow(ctx, CountFrameworksQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count frameworks failed: %w", err)
	}
	return n, nil
}

// UpdateFrameworkMetrics patches the denormalized metric fields; nil fields
// keep their stored value.
func (db *Database) UpdateFrameworkMetrics(ctx context.Context, id int64, patch FrameworkMetricsPatch) error {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.UpdateFrameworkMetrics")
	span.SetAttributes(attribute.Int64("framework_id", id))
	defer span.End()
	if db.pg == nil {
		return fmt.Errorf("database connection not available")
	}
	tag, err := db.pg.Exec(ctx, UpdateFrameworkMetricsQuery, id,
		patch.CurrentStars, patch.LastCommitUnix,
		patch.CurrentPyPIDownloads, patch.CurrentNpmDownloads, patch.CurrentSimilarwebRank)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update framework metrics failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update framework metrics: no framework with id %d", id)
	}
	return nil
}

// UpdateTrendingScore patches the denormalized trending score.
func (db *Database) UpdateTrendingScore(ctx context.Context, id int64, score float64) error {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.UpdateTrendingScore")
	span.SetAttributes(attribute.Int64("framework_id", id), attribute.Float64("score", score))
	defer span.End()
	if db.pg == nil {
		return fmt.Errorf("database connection not available")
	}
	if _, err := db.pg.Exec(ctx, UpdateTrendingScoreQuery, id, score); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update trending score failed: %w", err)
	}
	return nil
}

// dayStartUTC returns the unix second of the UTC midnight preceding ts.
// UTC is used consistently for ingestion and comparison so snapshots never
// split across a local-time day boundary.
func dayStartUTC(ts int64) int64 {
	t := time.Unix(ts, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	err := row.Scan(
		&s.ID, &s.FrameworkID, &s.CapturedAt,
		&s.GitHubStars, &s.PyPIDownloads, &s.NpmDownloads, &s.SimilarwebRank, &s.LastCommitUnix,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertDailySnapshot coalesces metric observations into one snapshot per
// framework per UTC calendar day. An existing same-day snapshot is merged
// field-wise (incoming non-nil wins, untouched fields preserved); otherwise
// a new snapshot is inserted at capturedAt.
func (db *Database) UpsertDailySnapshot(
	ctx context.Context,
	frameworkID int64,
	capturedAt int64,
	patch SnapshotPatch,
) (*Snapshot, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.UpsertDailySnapshot")
	span.SetAttributes(attribute.Int64("framework_id", frameworkID))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	existing, err := scanSnapshot(db.pg.QueryRow(ctx, SnapshotSinceQuery, frameworkID, dayStartUTC(capturedAt)))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query same-day snapshot failed: %w", err)
	}
	if existing != nil {
		merged, err := scanSnapshot(db.pg.QueryRow(ctx, MergeSnapshotQuery, existing.ID,
			patch.GitHubStars, patch.PyPIDownloads, patch.NpmDownloads, patch.SimilarwebRank, patch.LastCommitUnix))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("merge snapshot failed: %w", err)
		}
		slog.DebugContext(ctx, "same-day snapshot merged", "framework_id", frameworkID, "snapshot_id", merged.ID)
		return merged, nil
	}
	var id int64
	err = db.pg.QueryRow(ctx, InsertSnapshotQuery, frameworkID, capturedAt,
		patch.GitHubStars, patch.PyPIDownloads, patch.NpmDownloads, patch.SimilarwebRank, patch.LastCommitUnix).Scan(&id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("insert snapshot failed: %w", err)
	}
	slog.DebugContext(ctx, "snapshot inserted", "framework_id", frameworkID, "snapshot_id", id)
	return &Snapshot{
		ID:             id,
		FrameworkID:    frameworkID,
		CapturedAt:     capturedAt,
		GitHubStars:    patch.GitHubStars,
		PyPIDownloads:  patch.PyPIDownloads,
		NpmDownloads:   patch.NpmDownloads,
		SimilarwebRank: patch.SimilarwebRank,
		LastCommitUnix: patch.LastCommitUnix,
	}, nil
}

// LatestSnapshot returns the snapshot with the greatest timestamp for the
// framework, or nil when it has none.
func (db *Database) LatestSnapshot(ctx context.Context, frameworkID int64) (*Snapshot, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.LatestSnapshot")
	span.SetAttributes(attribute.Int64("framework_id", frameworkID))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	s, err := scanSnapshot(db.pg.QueryRow(ctx, LatestSnapshotQuery, frameworkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("latest snapshot failed: %w", err)
	}
	return s, nil
}

// SnapshotBefore returns the latest snapshot with timestamp at or before
// cutoff, or nil when none exists.
func (db *Database) SnapshotBefore(ctx context.Context, frameworkID, cutoff int64) (*Snapshot, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.SnapshotBefore")
	span.SetAttributes(attribute.Int64("framework_id", frameworkID), attribute.Int64("cutoff", cutoff))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	s, err := scanSnapshot(db.pg.QueryRow(ctx, SnapshotBeforeQuery, frameworkID, cutoff))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("snapshot before failed: %w", err)
	}
	return s, nil
}

// InsertResource inserts a resource row and returns its id.
func (db *Database) InsertResource(ctx context.Context, args *InsertResourceArgs) (int64, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.InsertResource")
	span.SetAttributes(attribute.Int64("framework_id", args.FrameworkID))
	defer span.End()
	if db.pg == nil {
		return 0, fmt.Errorf("database connection not available")
	}
	var id int64
	err := db.pg.QueryRow(ctx, InsertResourceQuery, args.FrameworkID, args.Title, args.URL, args.Type).Scan(&id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("insert resource failed: %w", err)
	}
	return id, nil
}

// GetResource returns the resource with the given id, or nil when absent.
func (db *Database) GetResource(ctx context.Context, id int64) (*Resource, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.GetResource")
	span.SetAttributes(attribute.Int64("resource_id", id))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	var r Resource
	err := db.pg.QueryRow(ctx, ResourceByIDQuery, id).Scan(&r.ID, &r.FrameworkID, &r.Title, &r.URL, &r.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get resource failed: %w", err)
	}
	return &r, nil
}

// ListResources returns every resource, or only those of one framework when
// frameworkID is non-nil.
func (db *Database) ListResources(ctx context.Context, frameworkID *int64) ([]*Resource, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.ListResources")
	span.SetAttributes(attribute.Bool("framework_filter", frameworkID != nil))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	var rows pgx.Rows
	var err error
	if frameworkID != nil {
		rows, err = db.pg.Query(ctx, ResourcesByFrameworkQuery, *frameworkID)
	} else {
		rows, err = db.pg.Query(ctx, ListResourcesQuery)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list resources failed: %w", err)
	}
	defer rows.Close()
	var out []*Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.ID, &r.FrameworkID, &r.Title, &r.URL, &r.Type); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListResourcesByType returns up to limit resources of one type, excluding a
// resource and the framework it belongs to. Used by the related-resources
// fallback.
func (db *Database) ListResourcesByType(
	ctx context.Context,
	typ string,
	excludeResourceID, excludeFrameworkID int64,
	limit int,
) ([]*Resource, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.ListResourcesByType")
	span.SetAttributes(attribute.String("type", typ), attribute.Int("limit", limit))
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	rows, err := db.pg.Query(ctx, ResourcesByTypeQuery, typ, excludeResourceID, excludeFrameworkID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list resources by type failed: %w", err)
	}
	defer rows.Close()
	var out []*Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.ID, &r.FrameworkID, &r.Title, &r.URL, &r.Type); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// GetUserSettings returns the settings row for a subject, or nil when the
// subject has never saved settings.
func (db *Database) GetUserSettings(ctx context.Context, subject string) (*UserSettings, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.GetUserSettings")
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	var us UserSettings
	err := db.pg.QueryRow(ctx, UserSettingsBySubjectQuery, subject).
		Scan(&us.ID, &us.Subject, &us.Theme, &us.FavoriteFrameworkIDs, &us.CreatedAt, &us.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get user settings failed: %w", err)
	}
	return &us, nil
}

// UpsertUserSettings creates the settings row on first write and patches it
// in place afterwards.
func (db *Database) UpsertUserSettings(
	ctx context.Context,
	subject, theme string,
	favoriteFrameworkIDs []int64,
) (*UserSettings, error) {
	tracer := otel.Tracer("agentbuilders/database")
	ctx, span := tracer.Start(ctx, "Database.UpsertUserSettings")
	defer span.End()
	if db.pg == nil {
		return nil, fmt.Errorf("database connection not available")
	}
	if favoriteFrameworkIDs == nil {
		favoriteFrameworkIDs = []int64{}
	}
	var us UserSettings
	err := db.pg.QueryRow(ctx, UpsertUserSettingsQuery, subject, theme, favoriteFrameworkIDs).
		Scan(&us.ID, &us.Subject, &us.Theme, &us.FavoriteFrameworkIDs, &us.CreatedAt, &us.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("upsert user settings failed: %w", err)
	}
	return &us, nil
}
