package scheduler

import (
	"context"

	"agentbuilders.dev/internal/config"
	"agentbuilders.dev/internal/refresh"
)

// RefreshJobs assembles the four refresh jobs on their configured cadences.
// The trending recompute gets a first-run offset so it trails the metric
// passes it reads from.
func RefreshJobs(o *refresh.Orchestrator, cfg *config.Config) []Job {
	logged := func(pass func(context.Context) (*refresh.Report, error)) func(context.Context) error {
		return func(ctx context.Context) error {
			report, err := pass(ctx)
			if err != nil {
				return err
			}
			report.Log(ctx)
			return nil
		}
	}
	return []Job{
		{
			Name:     "refresh-github",
			Interval: cfg.GetGitHubRefreshInterval(),
			Run:      logged(o.RefreshRepositoryMetrics),
		},
		{
			Name:     "refresh-pypi",
			Interval: cfg.GetPyPIRefreshInterval(),
			Run:      logged(o.RefreshPyPIDownloads),
		},
		{
			Name:     "refresh-npm",
			Interval: cfg.GetNpmRefreshInterval(),
			Run:      logged(o.RefreshNpmDownloads),
		},
		{
			Name:         "refresh-trending",
			Interval:     cfg.GetTrendingRefreshInterval(),
			InitialDelay: cfg.GetTrendingRefreshOffset(),
			Run:          logged(o.RecomputeTrendingScores),
		},
	}
}
