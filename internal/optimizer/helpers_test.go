package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/config"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/corpus"
)

func fp(v float64) *float64 { return &v }

// newTestStore builds a corpus with the given payouts, every outcome at base
// weight 1 unless weights are supplied.
func newTestStore(t *testing.T, payouts []float64, weights ...uint64) *corpus.Store {
	t.Helper()
	outcomes := make([]corpus.Outcome, len(payouts))
	for i, p := range payouts {
		w := uint64(1)
		if len(weights) > i {
			w = weights[i]
		}
		outcomes[i] = corpus.Outcome{
			ID:     int64(i + 1),
			Payout: p,
			Weight: w,
			Tags:   map[string]string{"criteria": criteriaFor(p)},
		}
	}
	store, err := corpus.New(outcomes)
	require.NoError(t, err)
	return store
}

func criteriaFor(payout float64) string {
	if payout == 0 {
		return "0"
	}
	return "basegame"
}

// referencePayouts is the ten-outcome corpus used across the search tests:
// five zero outcomes and five wins.
var referencePayouts = []float64{0, 0, 0, 0, 0, 5, 5, 10, 20, 100}

// winsCondition matches every outcome with payout > 0 (window [eps, +inf)
// would exclude payout 0 as well, but an explicit search term keeps the
// predicate readable).
func winsCondition(targets config.ConditionSpec) config.ConditionSpec {
	targets.Name = "wins"
	targets.Search = []config.SearchTerm{{Key: "criteria", Value: "basegame"}}
	return targets
}

func testParameters() config.Parameters {
	p := config.Parameters{
		PopulationSize: 60,
		EliteCount:     4,
		TournamentSize: 4,
		CrossoverRate:  0.9,
		MutationRate:   0.3,
		MutationSigma:  0.2,
		MaxGenerations: 400,
		Tolerance:      1e-9,
		Patience:       120,
		AcceptScore:    0.01,
		ScoreType:      config.ScoreBalanced,
		Seed:           42,
		Workers:        4,
	}
	return p
}
