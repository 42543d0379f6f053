package trending

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
)

var now = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func commitDaysAgo(days float64) *int64 {
	return ptr.To(now.Add(-time.Duration(days * 24 * float64(time.Hour))).Unix())
}

func TestScoreBounds(t *testing.T) {
	tests := []struct {
		name     string
		current  Bundle
		previous Bundle
	}{
		{
			name: "explosive growth on every component",
			current: Bundle{
				Stars:          ptr.To[int64](1000000),
				PyPIDownloads:  ptr.To[int64](1000000),
				NpmDownloads:   ptr.To[int64](1000000),
				LastCommitUnix: ptr.To(now.Unix()),
			},
			previous: Bundle{
				Stars:         ptr.To[int64](1),
				PyPIDownloads: ptr.To[int64](1),
				NpmDownloads:  ptr.To[int64](1),
			},
		},
		{
			name: "declining on every component",
			current: Bundle{
				Stars:         ptr.To[int64](10),
				PyPIDownloads: ptr.To[int64](10),
				NpmDownloads:  ptr.To[int64](10),
			},
			previous: Bundle{
				Stars:         ptr.To[int64](1000),
				PyPIDownloads: ptr.To[int64](1000),
				NpmDownloads:  ptr.To[int64](1000),
			},
		},
		{
			name: "empty bundles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := Score(tt.current, tt.previous, now)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 100.0)
		})
	}
}

func TestScoreStarGrowthScenario(t *testing.T) {
	// 10% star growth, weighted x4, caps exactly at 40.
	score, err := Score(
		Bundle{Stars: ptr.To[int64](110)},
		Bundle{Stars: ptr.To[int64](100)},
		now,
	)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, score, 1e-9)
}

func TestScoreDownloadGrowth(t *testing.T) {
	tests := []struct {
		name     string
		current  int64
		previous int64
		want     float64
	}{
		{name: "5% growth scores 12.5", current: 105, previous: 100, want: 12.5},
		{name: "10% growth caps at 25", current: 110, previous: 100, want: 25},
		{name: "decline scores zero", current: 90, previous: 100, want: 0},
		{name: "flat scores zero", current: 100, previous: 100, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := Score(
				Bundle{PyPIDownloads: ptr.To(tt.current)},
				Bundle{PyPIDownloads: ptr.To(tt.previous)},
				now,
			)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, score, 1e-9)
		})
	}
}

func TestScoreMissingObservations(t *testing.T) {
	tests := []struct {
		name     string
		current  Bundle
		previous Bundle
	}{
		{
			name:    "previous absent",
			current: Bundle{Stars: ptr.To[int64](500)},
		},
		{
			name:     "previous zero",
			current:  Bundle{Stars: ptr.To[int64](500)},
			previous: Bundle{Stars: ptr.To[int64](0)},
		},
		{
			name:     "current absent",
			previous: Bundle{Stars: ptr.To[int64](500)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := Score(tt.current, tt.previous, now)
			require.NoError(t, err)
			assert.Zero(t, score)
		})
	}
}

func TestScoreMonotonicInGrowth(t *testing.T) {
	// Holding everything else fixed, higher star growth never lowers the score.
	previous := Bundle{
		Stars:         ptr.To[int64](100),
		PyPIDownloads: ptr.To[int64](1000),
	}
	last := -1.0
	for stars := int64(100); stars <= 130; stars++ {
		current := Bundle{
			Stars:          ptr.To(stars),
			PyPIDownloads:  ptr.To[int64](1020),
			LastCommitUnix: commitDaysAgo(10),
		}
		score, err := Score(current, previous, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, last, "stars=%d", stars)
		last = score
	}
}

func TestRecencyDecay(t *testing.T) {
	tests := []struct {
		name string
		days float64
		want float64
	}{
		{name: "fresh commit", days: 0, want: 10},
		{name: "three days", days: 3, want: 10 - (3.0/7.0)*5},
		{name: "one week boundary", days: 7, want: 5},
		{name: "two weeks", days: 14, want: 5 - (7.0/23.0)*3},
		{name: "one month boundary", days: 30, want: 2},
		{name: "sixty days", days: 60, want: 1.5},
		{name: "ninety days", days: 90, want: 1},
		{name: "stale", days: 91, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := Score(Bundle{LastCommitUnix: commitDaysAgo(tt.days)}, Bundle{}, now)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, score, 1e-6)
		})
	}
}

func TestRecencyContinuousAtBreakpoints(t *testing.T) {
	// The decay must not jump where its pieces meet.
	for _, boundary := range []float64{7, 30} {
		eps := 1e-6
		before, err := Score(Bundle{LastCommitUnix: commitDaysAgo(boundary - eps)}, Bundle{}, now)
		require.NoError(t, err)
		after, err := Score(Bundle{LastCommitUnix: commitDaysAgo(boundary + eps)}, Bundle{}, now)
		require.NoError(t, err)
		assert.InDelta(t, before, after, 0.01, "boundary at %v days", boundary)
	}
}

func TestRecencyNonIncreasing(t *testing.T) {
	last := math.Inf(1)
	for days := 0.0; days <= 120; days += 0.5 {
		score, err := Score(Bundle{LastCommitUnix: commitDaysAgo(days)}, Bundle{}, now)
		require.NoError(t, err)
		assert.LessOrEqual(t, score, last, "days=%v", days)
		last = score
	}
}

func TestRecencyThreeDayScenario(t *testing.T) {
	score, err := Score(Bundle{LastCommitUnix: commitDaysAgo(3)}, Bundle{}, now)
	require.NoError(t, err)
	assert.InDelta(t, 7.857142857, score, 1e-6)
}

func TestScoreNoCommitTimestamp(t *testing.T) {
	score, err := Score(Bundle{Stars: ptr.To[int64](100)}, Bundle{Stars: ptr.To[int64](100)}, now)
	require.NoError(t, err)
	assert.Zero(t, score)
}
