package optimizer

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// testSpinWindows is the number of sampled windows behind each test-spin
// statistic.
const testSpinWindows = 100

// ConditionResult pairs one condition's targets with the metrics the best
// candidate actually achieves.
type ConditionResult struct {
	Name          string   `json:"name"`
	TargetRTP     *float64 `json:"target_rtp,omitempty"`
	TargetHitRate *float64 `json:"target_hit_rate,omitempty"`
	TargetAvgWin  *float64 `json:"target_avg_win,omitempty"`
	Achieved      Metrics  `json:"achieved"`
	MatchCount    int      `json:"match_count"`
}

// TestSpinStat is the sampled RTP of fixed-length spin windows under the
// optimized distribution, mirroring the test_spins diagnostics of the game
// configs.
type TestSpinStat struct {
	Spins   int     `json:"spins"`
	Weight  float64 `json:"weight"`
	MeanRTP float64 `json:"mean_rtp"`
}

// Result is the exported outcome of one optimization run.
type Result struct {
	BetMode       string            `json:"bet_mode"`
	Score         float64           `json:"score"`
	Generation    int               `json:"generation"`  // generation the best candidate appeared in
	Generations   int               `json:"generations"` // generations actually run
	Converged     bool              `json:"converged"`
	Elapsed       time.Duration     `json:"elapsed"`
	Weights       []float64         `json:"weights"`
	Probabilities []float64         `json:"probabilities"`
	Conditions    []ConditionResult `json:"conditions"`
	TestSpins     []TestSpinStat    `json:"test_spins,omitempty"`
	TestSpinBlend float64           `json:"test_spin_blend,omitempty"`
}

func (s *Search) buildResult(best []float64, score float64, bestGen, generations int, converged bool, elapsed time.Duration) (*Result, error) {
	weights, err := s.ExpandWeights(best)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	probs := make([]float64, len(weights))
	if total > 0 {
		for i, w := range weights {
			probs[i] = w / total
		}
	}

	metrics := s.set.Evaluate(weights)
	conds := make([]ConditionResult, len(s.set.Conditions))
	for c, cond := range s.set.Conditions {
		conds[c] = ConditionResult{
			Name:          cond.Spec.Name,
			TargetRTP:     cond.Spec.TargetRTP,
			TargetHitRate: cond.Spec.TargetHitRate,
			TargetAvgWin:  cond.Spec.TargetAvgWin,
			Achieved:      metrics[c],
			MatchCount:    cond.matchCount,
		}
	}

	result := &Result{
		BetMode:       s.mode.Name,
		Score:         score,
		Generation:    bestGen,
		Generations:   generations,
		Converged:     converged,
		Elapsed:       elapsed,
		Weights:       weights,
		Probabilities: probs,
		Conditions:    conds,
	}
	s.addTestSpinStats(result, probs)
	return result, nil
}

// addTestSpinStats samples RTP over windows of the configured spin counts.
// Seeded off the run seed, so the diagnostics are as reproducible as the
// search itself.
func (s *Search) addTestSpinStats(result *Result, probs []float64) {
	if len(s.params.TestSpins) == 0 {
		return
	}

	cum := make([]float64, len(probs))
	running := 0.0
	for i, p := range probs {
		running += p
		cum[i] = running
	}

	rng := rand.New(rand.NewSource(s.params.Seed + 1))
	var blend, weightSum float64
	for i, spins := range s.params.TestSpins {
		if spins <= 0 {
			continue
		}
		var windowSum float64
		for w := 0; w < testSpinWindows; w++ {
			var payout float64
			for sp := 0; sp < spins; sp++ {
				idx := sort.SearchFloat64s(cum, rng.Float64())
				if idx >= len(cum) {
					idx = len(cum) - 1
				}
				payout += s.store.Payout(idx)
			}
			windowSum += payout / float64(spins) / s.mode.Cost
		}
		stat := TestSpinStat{Spins: spins, MeanRTP: windowSum / testSpinWindows}
		if len(s.params.TestWeights) == len(s.params.TestSpins) {
			stat.Weight = s.params.TestWeights[i]
		} else {
			stat.Weight = 1.0 / float64(len(s.params.TestSpins))
		}
		blend += stat.Weight * stat.MeanRTP
		weightSum += stat.Weight
		result.TestSpins = append(result.TestSpins, stat)
	}
	if weightSum > 0 {
		result.TestSpinBlend = blend / weightSum
	}
}

// Report renders the target-vs-achieved table for human review.
func (r *Result) Report() string {
	var sb strings.Builder
	status := "CONVERGED"
	if !r.Converged {
		status = "NOT CONVERGED (budget exhausted)"
	}
	fmt.Fprintf(&sb, "bet mode %q: %s\n", r.BetMode, status)
	fmt.Fprintf(&sb, "score %s at generation %d of %d (%s)\n\n",
		formatMetric(r.Score), r.Generation, r.Generations, r.Elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(&sb, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "condition\tmetric\ttarget\tachieved\toutcomes")
	for _, c := range r.Conditions {
		writeMetricRow(tw, c.Name, "rtp", c.TargetRTP, c.Achieved.RTP, c.MatchCount)
		writeMetricRow(tw, c.Name, "hit_rate", c.TargetHitRate, c.Achieved.HitRate, c.MatchCount)
		writeMetricRow(tw, c.Name, "avg_win", c.TargetAvgWin, c.Achieved.AvgWin, c.MatchCount)
	}
	tw.Flush()

	if len(r.TestSpins) > 0 {
		fmt.Fprintf(&sb, "\ntest spins (blended rtp %s):\n", formatMetric(r.TestSpinBlend))
		for _, t := range r.TestSpins {
			fmt.Fprintf(&sb, "  %d spins: mean rtp %s (weight %.2f)\n", t.Spins, formatMetric(t.MeanRTP), t.Weight)
		}
	}
	return sb.String()
}

func writeMetricRow(tw *tabwriter.Writer, name, metric string, target *float64, achieved float64, outcomes int) {
	if target == nil {
		return
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", name, metric, formatMetric(*target), formatMetric(achieved), outcomes)
}

// formatMetric keeps report figures tidy: fixed six decimal places with
// trailing zeros trimmed via decimal, instead of %g's exponent drift.
func formatMetric(v float64) string {
	return decimal.NewFromFloat(v).Round(6).String()
}
