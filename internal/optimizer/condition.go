package optimizer

import (
	"fmt"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/config"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/corpus"
)

// Metrics is the realized statistical profile of one condition group under a
// candidate weighting.
type Metrics struct {
	HitRate float64 `json:"hit_rate"`
	RTP     float64 `json:"rtp"`
	AvgWin  float64 `json:"avg_win"`
}

// CompiledCondition is a ConditionSpec with its predicate pre-resolved to
// per-outcome membership, so the search loop never re-evaluates tag matches.
type CompiledCondition struct {
	Spec       config.ConditionSpec
	member     []bool
	matchCount int
	maxPayout  float64 // largest payout inside the predicate subset
}

// ConditionSet evaluates every configured condition against a candidate
// weight vector in a single pass over the corpus.
type ConditionSet struct {
	Conditions []CompiledCondition
	payouts    []float64
	cost       float64
}

// CompileConditions resolves each condition predicate against the corpus
// once. The bet-mode cost divides RTP so targets are per unit wagered.
func CompileConditions(mode config.BetMode, store *corpus.Store) (*ConditionSet, error) {
	n := store.Len()
	set := &ConditionSet{
		Conditions: make([]CompiledCondition, 0, len(mode.Conditions)),
		payouts:    make([]float64, n),
		cost:       mode.Cost,
	}
	for i := 0; i < n; i++ {
		set.payouts[i] = store.Payout(i)
	}

	for _, spec := range mode.Conditions {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("condition %q: %w", spec.Name, err)
		}
		cc := CompiledCondition{Spec: spec, member: make([]bool, n)}
		for i := 0; i < n; i++ {
			if matchOutcome(spec, store.Payout(i), store.Tags(i)) {
				cc.member[i] = true
				cc.matchCount++
				if store.Payout(i) > cc.maxPayout {
					cc.maxPayout = store.Payout(i)
				}
			}
		}
		set.Conditions = append(set.Conditions, cc)
	}
	return set, nil
}

// matchOutcome applies one condition predicate to a single outcome. The
// payout window is half-open [min, max); a degenerate window with min == max
// matches that exact payout (the zero-win and wincap groups are expressed
// this way).
func matchOutcome(spec config.ConditionSpec, payout float64, tags map[string]string) bool {
	matched := true
	if spec.MinPayout != nil && spec.MaxPayout != nil && *spec.MinPayout == *spec.MaxPayout {
		matched = payout == *spec.MinPayout
	} else {
		if spec.MinPayout != nil && payout < *spec.MinPayout {
			matched = false
		}
		if spec.MaxPayout != nil && payout >= *spec.MaxPayout {
			matched = false
		}
	}
	if matched {
		for _, term := range spec.Search {
			if tags[term.Key] != term.Value {
				matched = false
				break
			}
		}
	}
	if spec.Opposite {
		return !matched
	}
	return matched
}

// MatchCount returns how many outcomes condition c covers.
func (s *ConditionSet) MatchCount(c int) int { return s.Conditions[c].matchCount }

// Member reports whether outcome i belongs to condition c.
func (s *ConditionSet) Member(c, i int) bool { return s.Conditions[c].member[i] }

// Evaluate computes hit rate, RTP contribution and average win for every
// condition under the given per-outcome weights. One linear pass over the
// corpus accumulates all conditions at once; this is the hot path of every
// fitness evaluation.
func (s *ConditionSet) Evaluate(weights []float64) []Metrics {
	nc := len(s.Conditions)
	hit := make([]float64, nc)
	pay := make([]float64, nc)
	var total float64

	for i, w := range weights {
		if w == 0 {
			continue
		}
		total += w
		wp := w * s.payouts[i]
		for c := 0; c < nc; c++ {
			if s.Conditions[c].member[i] {
				hit[c] += w
				pay[c] += wp
			}
		}
	}

	metrics := make([]Metrics, nc)
	if total == 0 {
		return metrics
	}
	for c := 0; c < nc; c++ {
		m := Metrics{
			HitRate: hit[c] / total,
			RTP:     pay[c] / total / s.cost,
		}
		if hit[c] > 0 {
			// Weighted average payout of the matched subset, i.e. the
			// RTP contribution divided by hit rate (in cost units).
			m.AvgWin = pay[c] / hit[c]
		}
		metrics[c] = m
	}
	return metrics
}
