// Package trending computes the composite trending score for a framework
// from a current and a historical metric bundle. The computation is pure:
// no I/O, no clock access beyond the caller-supplied reference time.
//
// The score is the sum of four components, clamped to [0, 100]:
//
//   - star growth, capped at 40, weighted x4
//   - PyPI download growth, capped at 25, weighted x2.5
//   - npm download growth, capped at 25, weighted x2.5
//   - commit recency, a piecewise linear decay worth at most 10
//
// Growth components contribute only when both observations exist and the
// previous value is positive; they never go negative.
package trending

import (
	"fmt"
	"time"
)

const (
	starsCap        = 40.0
	starsMultiplier = 4.0

	downloadsCap        = 25.0
	downloadsMultiplier = 2.5

	secondsPerDay = 86400.0
)

// Bundle is one observation of a framework's metrics. Nil fields mean the
// metric was not observed.
type Bundle struct {
	Stars          *int64
	PyPIDownloads  *int64
	NpmDownloads   *int64
	LastCommitUnix *int64
}

// Score computes the trending score from a current and a previous bundle.
// It never panics past its boundary: an internal fault yields score 0 and a
// non-nil error for the caller to log.
func Score(current, previous Bundle, now time.Time) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			score = 0
			err = fmt.Errorf("trending score computation failed: %v", r)
		}
	}()
	score = growth(current.Stars, previous.Stars, starsCap, starsMultiplier) +
		growth(current.PyPIDownloads, previous.PyPIDownloads, downloadsCap, downloadsMultiplier) +
		growth(current.NpmDownloads, previous.NpmDownloads, downloadsCap, downloadsMultiplier) +
		recency(current.LastCommitUnix, now)
	return clamp(score, 0, 100), nil
}

// growth scores one metric's growth rate. Missing observations or a
// non-positive previous value contribute nothing; growth is never inferred.
func growth(current, previous *int64, cap, multiplier float64) float64 {
	if current == nil || previous == nil || *previous <= 0 {
		return 0
	}
	rate := float64(*current-*previous) / float64(*previous) * 100
	s := rate * multiplier
	if s > cap {
		s = cap
	}
	if s < 0 {
		s = 0
	}
	return s
}

// recency scores how recently the project was committed to. The decay is
// piecewise linear and continuous at its 7- and 30-day breakpoints
// (10 down to 5 within a week, 5 down to 2 within a month, 2 toward 1
// within a quarter, then nothing).
func recency(lastCommitUnix *int64, now time.Time) float64 {
	if lastCommitUnix == nil {
		return 0
	}
	days := float64(now.Unix()-*lastCommitUnix) / secondsPerDay
	switch {
	case days < 0:
		return 10
	case days <= 7:
		return 10 - (days/7)*5
	case days <= 30:
		return 5 - ((days-7)/23)*3
	case days <= 90:
		return 2 - (days-30)/60
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
