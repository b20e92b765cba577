package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/config"
)

func newTestSearch(t *testing.T, params config.Parameters, specs ...config.ConditionSpec) *Search {
	t.Helper()
	store := newTestStore(t, referencePayouts)
	mode := config.BetMode{
		Name:       "base",
		Cost:       1.0,
		Conditions: specs,
		Parameters: params,
	}
	s, err := New(store, mode)
	require.NoError(t, err)
	return s
}

// A corpus of five zero outcomes and five wins, with a single condition on
// the wins asking for hit rate 0.5 at rtp 3.0. The only consistent answer
// puts half the mass on zeros and tunes the win mix to an average payout of
// rtp/hit = 6.0.
func TestSearch_FindsTargetDistribution(t *testing.T) {
	params := testParameters()
	params.MaxGenerations = 2000
	params.Patience = 500
	params.AcceptScore = 0.02

	s := newTestSearch(t, params,
		winsCondition(config.ConditionSpec{TargetHitRate: fp(0.5), TargetRTP: fp(3.0)}),
	)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Conditions, 1)

	achieved := result.Conditions[0].Achieved
	assert.InDelta(t, 0.5, achieved.HitRate, 0.03)
	assert.InDelta(t, 3.0, achieved.RTP, 0.15)
	assert.InDelta(t, 6.0, achieved.AvgWin, 0.5)

	// The zero-payout half of the corpus carries the remaining mass.
	var zeroMass float64
	for i := 0; i < 5; i++ {
		zeroMass += result.Probabilities[i]
	}
	assert.InDelta(t, 0.5, zeroMass, 0.03)
}

// The recorded best score never gets worse from one generation to the next:
// the best-known candidate is re-injected into every generation.
func TestSearch_BestScoreMonotone(t *testing.T) {
	params := testParameters()
	params.MaxGenerations = 150
	params.AcceptScore = 0 // force a full run

	s := newTestSearch(t, params,
		winsCondition(config.ConditionSpec{TargetHitRate: fp(0.5), TargetRTP: fp(3.0)}),
	)

	var history []float64
	s.OnGeneration = func(p Progress) {
		history = append(history, p.BestScore)
	}

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, history)
	for i := 1; i < len(history); i++ {
		assert.LessOrEqual(t, history[i], history[i-1], "generation %d", i)
	}
}

// Identical seeds must walk the identical search trajectory regardless of
// the worker-pool size.
func TestSearch_DeterministicAcrossWorkerCounts(t *testing.T) {
	run := func(workers int) []float64 {
		params := testParameters()
		params.MaxGenerations = 60
		params.AcceptScore = 0
		params.Workers = workers

		s := newTestSearch(t, params,
			winsCondition(config.ConditionSpec{TargetHitRate: fp(0.5), TargetRTP: fp(3.0)}),
		)
		var history []float64
		s.OnGeneration = func(p Progress) {
			history = append(history, p.BestScore)
		}
		_, err := s.Run(context.Background())
		require.NoError(t, err)
		return history
	}

	single := run(1)
	assert.Equal(t, single, run(4))
	assert.Equal(t, single, run(16))
}

// Two conditions covering the whole corpus with contradictory rtp targets
// cannot both be met; the run must stop within its budget and say so.
func TestSearch_UnsatisfiableTargetsExhaust(t *testing.T) {
	params := testParameters()
	params.MaxGenerations = 40
	params.Patience = 15

	s := newTestSearch(t, params,
		config.ConditionSpec{Name: "all-low", TargetRTP: fp(0.2)},
		config.ConditionSpec{Name: "all-high", TargetRTP: fp(0.8)},
	)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Converged)
	assert.LessOrEqual(t, result.Generations, 40)
	// Both targets cannot hold at once, so the aggregate deviation stays
	// well above any sane acceptance threshold.
	assert.Greater(t, result.Score, 0.5)
}

func TestSearch_CancelledContextStillReturnsBest(t *testing.T) {
	params := testParameters()
	params.MaxGenerations = 10_000
	params.AcceptScore = 0

	s := newTestSearch(t, params,
		winsCondition(config.ConditionSpec{TargetHitRate: fp(0.5), TargetRTP: fp(3.0)}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generations, "cancellation is honored between generations")
	assert.False(t, result.Converged)
	assert.Len(t, result.Weights, len(referencePayouts))
}

func TestSearch_TestSpinDiagnostics(t *testing.T) {
	params := testParameters()
	params.MaxGenerations = 50
	params.TestSpins = []int{10, 100}
	params.TestWeights = []float64{0.3, 0.7}

	s := newTestSearch(t, params,
		winsCondition(config.ConditionSpec{TargetHitRate: fp(0.5), TargetRTP: fp(3.0)}),
	)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.TestSpins, 2)
	assert.Equal(t, 10, result.TestSpins[0].Spins)
	assert.Equal(t, 0.3, result.TestSpins[0].Weight)
	assert.Greater(t, result.TestSpinBlend, 0.0)
}

func TestSearch_ExpandWeightsMatchesFences(t *testing.T) {
	params := testParameters()
	s := newTestSearch(t, params,
		winsCondition(config.ConditionSpec{TargetRTP: fp(3.0)}),
	)

	mult := make([]float64, len(s.Fences()))
	for f := range mult {
		mult[f] = float64(f + 1)
	}
	weights, err := s.ExpandWeights(mult)
	require.NoError(t, err)

	for f, fence := range s.Fences() {
		for _, i := range fence.Outcomes {
			assert.Equal(t, float64(f+1), weights[i])
		}
	}

	_, err = s.ExpandWeights(mult[:1])
	assert.Error(t, err)
}

func TestResult_Report(t *testing.T) {
	params := testParameters()
	params.MaxGenerations = 50

	s := newTestSearch(t, params,
		winsCondition(config.ConditionSpec{TargetHitRate: fp(0.5), TargetRTP: fp(3.0)}),
	)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	report := result.Report()
	assert.Contains(t, report, `bet mode "base"`)
	assert.Contains(t, report, "wins")
	assert.Contains(t, report, "hit_rate")
	assert.Contains(t, report, "rtp")
	if !result.Converged {
		assert.Contains(t, report, "NOT CONVERGED")
	}
}
