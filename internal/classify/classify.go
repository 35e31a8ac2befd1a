// Package classify maps composite need scores to four ordinal need levels.
package classify

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Need level constants, highest need first.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
	LevelLowest = "lowest"
)

// LevelColor returns the map fill color for a need level. An empty level
// (unmatched unit) gets the neutral gray.
func LevelColor(level string) string {
	switch level {
	case LevelHigh:
		return "#b91c1c"
	case LevelMedium:
		return "#f87171"
	case LevelLow:
		return "#86efac"
	case LevelLowest:
		return "#16a34a"
	default:
		return "#cccccc"
	}
}

// Thresholds is an ordered triple of score cutoffs: score >= T3 is high,
// [T2, T3) medium, [T1, T2) low, below T1 lowest.
type Thresholds struct {
	T1 float64 `yaml:"t1" json:"t1"`
	T2 float64 `yaml:"t2" json:"t2"`
	T3 float64 `yaml:"t3" json:"t3"`
}

// Validate checks that the triple is ordered.
func (t Thresholds) Validate() error {
	if t.T1 > t.T2 || t.T2 > t.T3 {
		return eris.Errorf("thresholds must satisfy t1 <= t2 <= t3, got (%g, %g, %g)", t.T1, t.T2, t.T3)
	}
	return nil
}

// Level buckets a single score against the thresholds.
func (t Thresholds) Level(score float64) string {
	switch {
	case score >= t.T3:
		return LevelHigh
	case score >= t.T2:
		return LevelMedium
	case score >= t.T1:
		return LevelLow
	default:
		return LevelLowest
	}
}

// Quartiles derives thresholds from the 25th, 50th, and 75th percentiles of
// the score distribution. A pure function of the scores: identical inputs
// always produce identical thresholds.
func Quartiles(scores []float64) Thresholds {
	return Thresholds{
		T1: percentile(scores, 0.25),
		T2: percentile(scores, 0.50),
		T3: percentile(scores, 0.75),
	}
}

// Levels classifies every score. When fixed is nil the thresholds come from
// the quartiles of the distribution itself; a fixed triple makes levels
// comparable across independent runs.
func Levels(scores []float64, fixed *Thresholds) []string {
	var t Thresholds
	if fixed != nil {
		t = *fixed
	} else {
		t = Quartiles(scores)
	}

	levels := make([]string, len(scores))
	for i, s := range scores {
		levels[i] = t.Level(s)
	}
	return levels
}

// percentile computes the q-quantile with linear interpolation between
// order statistics.
func percentile(scores []float64, q float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
