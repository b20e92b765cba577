package optimizer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/config"
)

func newTestEvaluator(t *testing.T, workers int) *Evaluator {
	t.Helper()
	fences, set, prior := buildTestFences(t, 0,
		winsCondition(config.ConditionSpec{TargetRTP: fp(0.5), TargetHitRate: fp(0.5)}),
	)
	return NewEvaluator(workers, set, NewScorer(config.ScoreBalanced), prior, fences)
}

func uniformCandidate(n int, v float64) []float64 {
	cand := make([]float64, n)
	for i := range cand {
		cand[i] = v
	}
	return cand
}

func TestEvaluator_ScoreMatchesEvaluateAll(t *testing.T) {
	eval := newTestEvaluator(t, 3)

	population := [][]float64{
		uniformCandidate(len(eval.fences), 1),
		uniformCandidate(len(eval.fences), 0.5),
		uniformCandidate(len(eval.fences), 2),
	}
	population[1][0] = 3
	population[2][7] = 0.1

	scores, err := eval.EvaluateAll(0, population)
	require.NoError(t, err)
	require.Len(t, scores, len(population))

	for i, cand := range population {
		want, _, err := eval.Score(cand)
		require.NoError(t, err)
		assert.Equal(t, want, scores[i], "candidate %d", i)
	}
}

// Scores come back slotted by candidate index for any worker count.
func TestEvaluator_OrderIndependentOfWorkers(t *testing.T) {
	population := make([][]float64, 20)
	for p := range population {
		population[p] = uniformCandidate(10, 0.5+float64(p)*0.1)
	}

	var baseline []float64
	for _, workers := range []int{1, 2, 8} {
		eval := newTestEvaluator(t, workers)
		scores, err := eval.EvaluateAll(0, population)
		require.NoError(t, err)
		if baseline == nil {
			baseline = scores
			continue
		}
		assert.Equal(t, baseline, scores, "workers=%d", workers)
	}
}

func TestEvaluator_InvalidCandidateFailsGeneration(t *testing.T) {
	eval := newTestEvaluator(t, 4)

	population := [][]float64{
		uniformCandidate(len(eval.fences), 1),
		uniformCandidate(len(eval.fences), 1),
		uniformCandidate(len(eval.fences), 1),
	}
	population[1][2] = math.NaN()
	population[2][0] = -1

	_, err := eval.EvaluateAll(7, population)
	require.Error(t, err)

	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, 7, evalErr.Generation)
	assert.Equal(t, 1, evalErr.Candidate, "lowest failing candidate index wins")
}

func TestEvaluator_WrongCandidateLength(t *testing.T) {
	eval := newTestEvaluator(t, 1)

	_, _, err := eval.Score(uniformCandidate(len(eval.fences)+1, 1))
	assert.Error(t, err)
}
