package optimizer

import (
	"math"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/config"
)

// Per-metric weights for the scoring strategies. The dominant metric of the
// "rtp" and "hr" strategies is weighted 8:1 against the others: strong enough
// that the dominant deviation decides the ordering, small enough that the
// minor metrics still break ties between near-equal candidates. "balanced"
// weighs everything equally.
const (
	weightDominant = 8.0
	weightMinor    = 1.0

	// targetEps guards the relative-deviation denominator for zero targets.
	targetEps = 1e-9
)

// Scorer collapses per-condition metric deviations into a single scalar.
// Lower is better; a perfect candidate scores 0.
type Scorer struct {
	wRTP    float64
	wHit    float64
	wAvgWin float64
}

func NewScorer(scoreType string) *Scorer {
	switch scoreType {
	case config.ScoreRTP:
		return &Scorer{wRTP: weightDominant, wHit: weightMinor, wAvgWin: weightMinor}
	case config.ScoreHitRate:
		return &Scorer{wRTP: weightMinor, wHit: weightDominant, wAvgWin: weightMinor}
	default:
		return &Scorer{wRTP: 1, wHit: 1, wAvgWin: 1}
	}
}

// Score sums the weighted relative deviations of every targeted metric
// across all conditions.
func (s *Scorer) Score(set *ConditionSet, metrics []Metrics) float64 {
	score := 0.0
	for c, cond := range set.Conditions {
		spec := cond.Spec
		m := metrics[c]
		if spec.TargetRTP != nil {
			score += s.wRTP * relDeviation(m.RTP, *spec.TargetRTP)
		}
		if spec.TargetHitRate != nil {
			score += s.wHit * relDeviation(m.HitRate, *spec.TargetHitRate)
		}
		if spec.TargetAvgWin != nil {
			score += s.wAvgWin * relDeviation(m.AvgWin, *spec.TargetAvgWin)
		}
	}
	return score
}

func relDeviation(achieved, target float64) float64 {
	return math.Abs(achieved-target) / math.Max(target, targetEps)
}
