// Package scheduler drives the refresh passes on their cadences. Each job
// runs in its own goroutine with an optional first-run delay, so the score
// recompute can trail the metric passes by its configured offset.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one scheduled unit of work.
type Job struct {
	Name         string
	Interval     time.Duration
	InitialDelay time.Duration
	Run          func(ctx context.Context) error
}

type Scheduler struct {
	jobs   []Job
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func New(jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		stopCh: make(chan struct{}),
	}
}

// Start launches every job. The first run happens after the job's
// InitialDelay, then repeats on its Interval. Start returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	slog.InfoContext(ctx, "scheduler started", "jobs", len(s.jobs))
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	delay := time.NewTimer(job.InitialDelay)
	defer delay.Stop()
	select {
	case <-delay.C:
		s.run(ctx, job)
	case <-s.stopCh:
		return
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.run(ctx, job)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	slog.InfoContext(ctx, "scheduled job starting", "job", job.Name)
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "scheduled job failed",
			"job", job.Name, "error", err, "duration", time.Since(start))
		return
	}
	slog.InfoContext(ctx, "scheduled job finished",
		"job", job.Name, "duration", time.Since(start))
}

// Stop signals every job loop to exit and waits for them.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
