// Package refresh runs the scheduled metric-refresh passes. Each pass walks
// its eligible frameworks sequentially, calls one source adapter, writes
// through the snapshot store and the denormalized metric fields, and reports
// a per-framework outcome. A single framework's failure never aborts a pass.
package refresh

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"k8s.io/utils/ptr"

	"agentbuilders.dev/internal/database"
	"agentbuilders.dev/internal/sources"
	"agentbuilders.dev/internal/trending"
)

const historicalWindow = 30 * 24 * time.Hour

// Store is the persistence surface the refresh passes write through.
type Store interface {
	ListFrameworks(ctx context.Context, args database.ListFrameworksArgs) ([]*database.Framework, error)
	UpdateFrameworkMetrics(ctx context.Context, id int64, patch database.FrameworkMetricsPatch) error
	UpdateTrendingScore(ctx context.Context, id int64, score float64) error
	UpsertDailySnapshot(ctx context.Context, frameworkID, capturedAt int64, patch database.SnapshotPatch) (*database.Snapshot, error)
	LatestSnapshot(ctx context.Context, frameworkID int64) (*database.Snapshot, error)
	SnapshotBefore(ctx context.Context, frameworkID, cutoff int64) (*database.Snapshot, error)
}

// RepositoryMetricsFetcher is the repository-host adapter surface.
type RepositoryMetricsFetcher interface {
	FetchRepositoryMetrics(ctx context.Context, repoPath string) (*sources.RepositoryMetrics, error)
}

// DownloadStatsFetcher is the package-registry adapter surface.
type DownloadStatsFetcher interface {
	FetchDownloadStats(ctx context.Context, packageName, period string) (*sources.DownloadStats, error)
}

// Outcome is one framework's result within a pass. Value carries the
// fetched stars, downloads or computed score depending on the pass.
type Outcome struct {
	Framework string
	Success   bool
	Value     float64
	Err       error
}

// Report aggregates a pass for logging.
type Report struct {
	Pass     string
	Outcomes []Outcome
}

func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int { return len(r.Outcomes) - r.Succeeded() }

// Log writes the batch summary plus one line per failure.
func (r *Report) Log(ctx context.Context) {
	slog.InfoContext(ctx, "refresh pass finished",
		"pass", r.Pass, "total", len(r.Outcomes), "succeeded", r.Succeeded(), "failed", r.Failed())
	for _, o := range r.Outcomes {
		if !o.Success {
			slog.WarnContext(ctx, "refresh failed for framework",
				"pass", r.Pass, "framework", o.Framework, "error", o.Err)
		}
	}
}

type Orchestrator struct {
	store Store
	repos RepositoryMetricsFetcher
	pypi  DownloadStatsFetcher
	npm   DownloadStatsFetcher
	now   func() time.Time

	// mu serializes passes so a score recompute never reads metric fields
	// mid-write from a concurrently scheduled refresh pass.
	mu sync.Mutex
}

type Option func(*Orchestrator)

// WithClock overrides the reference clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(store Store, repos RepositoryMetricsFetcher, pypi, npm DownloadStatsFetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store: store,
		repos: repos,
		pypi:  pypi,
		npm:   npm,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RefreshRepositoryMetrics refreshes stars and last-commit time for every
// framework with a linked repository.
func (o *Orchestrator) RefreshRepositoryMetrics(ctx context.Context) (*Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	tracer := otel.Tracer("agentbuilders/refresh")
	ctx, span := tracer.Start(ctx, "Refresh.RepositoryMetrics")
	defer span.End()

	frameworks, err := o.store.ListFrameworks(ctx, database.ListFrameworksArgs{})
	if err != nil {
		return nil, err
	}
	report := &Report{Pass: "github"}
	for _, f := range frameworks {
		if f.RepoPath == "" {
			continue
		}
		m, err := o.repos.FetchRepositoryMetrics(ctx, f.RepoPath)
		if err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Err: err})
			continue
		}
		patch := database.FrameworkMetricsPatch{
			CurrentStars:   ptr.To(m.Stars),
			LastCommitUnix: m.LastCommitUnix,
		}
		if err := o.store.UpdateFrameworkMetrics(ctx, f.ID, patch); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Err: err})
			continue
		}
		_, err = o.store.UpsertDailySnapshot(ctx, f.ID, o.now().Unix(), database.SnapshotPatch{
			GitHubStars:    ptr.To(m.Stars),
			LastCommitUnix: m.LastCommitUnix,
		})
		if err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Err: err})
			continue
		}
		report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Success: true, Value: float64(m.Stars)})
	}
	span.SetAttributes(attribute.Int("succeeded", report.Succeeded()), attribute.Int("failed", report.Failed()))
	return report, nil
}

// Known mismatches between a repository name and the published package name.
var (
	pypiPackageOverrides = map[string]string{
		"langchain-ai/langchain": "langchain",
		"run-llama/llama_index":  "llama-index",
	}
	npmPackageOverrides = map[string]string{
		"langchain-ai/langchainjs": "langchain",
	}
)

// packageNameForRepo derives a registry package name from the second
// segment of the repository path, lower-cased, after consulting the
// override table. An empty result means no package name is derivable and
// the framework is skipped, not failed.
func packageNameForRepo(repoPath string, overrides map[string]string) string {
	if name, ok := overrides[repoPath]; ok {
		return name
	}
	_, repo, ok := strings.Cut(repoPath, "/")
	if !ok || repo == "" || strings.Contains(repo, "/") {
		return ""
	}
	return strings.ToLower(repo)
}

// RefreshPyPIDownloads refreshes the PyPI download count for frameworks
// already tracking one. A nonzero stored count is the ecosystem-membership
// signal: zero or unset means the framework is not a Python package.
func (o *Orchestrator) RefreshPyPIDownloads(ctx context.Context) (*Report, error) {
	return o.refreshDownloads(ctx, "pypi", o.pypi, pypiPackageOverrides,
		func(f *database.Framework) *int64 { return f.CurrentPyPIDownloads },
		func(downloads int64) (database.FrameworkMetricsPatch, database.SnapshotPatch) {
			return database.FrameworkMetricsPatch{CurrentPyPIDownloads: ptr.To(downloads)},
				database.SnapshotPatch{PyPIDownloads: ptr.To(downloads)}
		})
}

// RefreshNpmDownloads refreshes the npm download count for frameworks
// already tracking one.
func (o *Orchestrator) RefreshNpmDownloads(ctx context.Context) (*Report, error) {
	return o.refreshDownloads(ctx, "npm", o.npm, npmPackageOverrides,
		func(f *database.Framework) *int64 { return f.CurrentNpmDownloads },
		func(downloads int64) (database.FrameworkMetricsPatch, database.SnapshotPatch) {
			return database.FrameworkMetricsPatch{CurrentNpmDownloads: ptr.To(downloads)},
				database.SnapshotPatch{NpmDownloads: ptr.To(downloads)}
		})
}

func (o *Orchestrator) refreshDownloads(
	ctx context.Context,
	pass string,
	fetcher DownloadStatsFetcher,
	overrides map[string]string,
	current func(*database.Framework) *int64,
	patches func(int64) (database.FrameworkMetricsPatch, database.SnapshotPatch),
) (*Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	tracer := otel.Tracer("agentbuilders/refresh")
	ctx, span := tracer.Start(ctx, "Refresh.Downloads")
	span.SetAttributes(attribute.String("registry", pass))
	defer span.End()

	frameworks, err := o.store.ListFrameworks(ctx, database.ListFrameworksArgs{})
	if err != nil {
		return nil, err
	}
	report := &Report{Pass: pass}
	for _, f := range frameworks {
		if c := current(f); c == nil || *c <= 0 {
			continue
		}
		packageName := packageNameForRepo(f.RepoPath, overrides)
		if packageName == "" {
			slog.DebugContext(ctx, "no derivable package name, skipping",
				"pass", pass, "framework", f.Name, "repo_path", f.RepoPath)
			continue
		}
		stats, err := fetcher.FetchDownloadStats(ctx, packageName, "")
		if err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Err: err})
			continue
		}
		metricsPatch, snapshotPatch := patches(stats.Downloads)
		if err := o.store.UpdateFrameworkMetrics(ctx, f.ID, metricsPatch); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Err: err})
			continue
		}
		if _, err := o.store.UpsertDailySnapshot(ctx, f.ID, o.now().Unix(), snapshotPatch); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Err: err})
			continue
		}
		report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Success: true, Value: float64(stats.Downloads)})
	}
	span.SetAttributes(attribute.Int("succeeded", report.Succeeded()), attribute.Int("failed", report.Failed()))
	return report, nil
}

// RecomputeTrendingScores rescores every framework with at least one
// snapshot. The current bundle comes from the denormalized metric fields;
// the comparison bundle is the latest snapshot at least thirty days old, or
// a synthesized one assuming modest prior growth when no history exists yet
// so single-datapoint frameworks still get a provisional signal.
func (o *Orchestrator) RecomputeTrendingScores(ctx context.Context) (*Report, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	tracer := otel.Tracer("agentbuilders/refresh")
	ctx, span := tracer.Start(ctx, "Refresh.TrendingScores")
	defer span.End()

	frameworks, err := o.store.ListFrameworks(ctx, database.ListFrameworksArgs{})
	if err != nil {
		return nil, err
	}
	now := o.now()
	cutoff := now.Add(-historicalWindow).Unix()
	report := &Report{Pass: "trending"}
	for _, f := range frameworks {
		latest, err := o.store.LatestSnapshot(ctx, f.ID)
		if err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Err: err})
			continue
		}
		if latest == nil {
			continue
		}
		historical, err := o.store.SnapshotBefore(ctx, f.ID, cutoff)
		if err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Err: err})
			continue
		}
		current := trending.Bundle{
			Stars:          f.CurrentStars,
			PyPIDownloads:  f.CurrentPyPIDownloads,
			NpmDownloads:   f.CurrentNpmDownloads,
			LastCommitUnix: f.LastCommitUnix,
		}
		var previous trending.Bundle
		if historical != nil {
			previous = trending.Bundle{
				Stars:          historical.GitHubStars,
				PyPIDownloads:  historical.PyPIDownloads,
				NpmDownloads:   historical.NpmDownloads,
				LastCommitUnix: historical.LastCommitUnix,
			}
		} else {
			previous = synthesizePrevious(current)
		}
		score, err := trending.Score(current, previous, now)
		if err != nil {
			slog.WarnContext(ctx, "trending score degraded to zero",
				"framework", f.Name, "error", err)
		}
		if err := o.store.UpdateTrendingScore(ctx, f.ID, score); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Err: err})
			continue
		}
		report.Outcomes = append(report.Outcomes, Outcome{Framework: f.Name, Success: true, Value: score})
	}
	span.SetAttributes(attribute.Int("succeeded", report.Succeeded()), attribute.Int("failed", report.Failed()))
	return report, nil
}

// synthesizePrevious fabricates a comparison bundle for frameworks with no
// thirty-day-old snapshot: 90% of each current metric and a commit thirty
// days older than the current one.
func synthesizePrevious(current trending.Bundle) trending.Bundle {
	var previous trending.Bundle
	if current.Stars != nil {
		previous.Stars = ptr.To(int64(math.Floor(float64(*current.Stars) * 0.9)))
	}
	if current.PyPIDownloads != nil {
		previous.PyPIDownloads = ptr.To(int64(math.Floor(float64(*current.PyPIDownloads) * 0.9)))
	}
	if current.NpmDownloads != nil {
		previous.NpmDownloads = ptr.To(int64(math.Floor(float64(*current.NpmDownloads) * 0.9)))
	}
	if current.LastCommitUnix != nil {
		previous.LastCommitUnix = ptr.To(*current.LastCommitUnix - int64(historicalWindow/time.Second))
	}
	return previous
}

// RefreshAll runs the three metric passes and then the score recompute in
// one ordered pipeline, so the rescore always reads the metrics written by
// the same run.
func (o *Orchestrator) RefreshAll(ctx context.Context) ([]*Report, error) {
	var reports []*Report
	for _, pass := range []func(context.Context) (*Report, error){
		o.RefreshRepositoryMetrics,
		o.RefreshPyPIDownloads,
		o.RefreshNpmDownloads,
		o.RecomputeTrendingScores,
	} {
		report, err := pass(ctx)
		if err != nil {
			return reports, err
		}
		report.Log(ctx)
		reports = append(reports, report)
	}
	return reports, nil
}
