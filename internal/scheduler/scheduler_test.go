package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := New(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		time.Second, 5*time.Millisecond)
}

func TestSchedulerInitialDelay(t *testing.T) {
	var first atomic.Int64
	start := time.Now()
	s := New(Job{
		Name:         "delayed",
		Interval:     time.Hour,
		InitialDelay: 30 * time.Millisecond,
		Run: func(context.Context) error {
			first.CompareAndSwap(0, int64(time.Since(start)))
			return nil
		},
	})
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return first.Load() > 0 },
		time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Duration(first.Load()), 30*time.Millisecond)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := New(Job{
		Name:     "noop",
		Interval: time.Hour,
		Run:      func(context.Context) error { return nil },
	})
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestSchedulerHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	s := New(Job{
		Name:     "cancelled",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 1 },
		time.Second, time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job loops did not exit after context cancel")
	}
}
