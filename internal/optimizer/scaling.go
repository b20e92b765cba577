package optimizer

import (
	"fmt"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/config"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/corpus"
)

// ApplyScaling folds the scaling rules onto the corpus base weights and
// returns the prior weight vector the search starts from. Rules apply in
// declaration order; every rule whose payout window contains an outcome
// multiplies that outcome's weight, so overlapping rules compose.
//
// The transform always reads from base weights, never from its own output:
// re-applying the same rules yields the same prior.
func ApplyScaling(store *corpus.Store, rules []config.ScalingRule) ([]float64, error) {
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("scaling rule %d: %w", i, err)
		}
	}

	prior := make([]float64, store.Len())
	for i := 0; i < store.Len(); i++ {
		w := float64(store.Weight(i))
		payout := store.Payout(i)
		for _, rule := range rules {
			if payout < rule.MinPayout {
				continue
			}
			if rule.MaxPayout != nil && payout >= *rule.MaxPayout {
				continue
			}
			w *= rule.Factor
		}
		if w < 0 {
			return nil, &config.ConfigError{Field: "scaling", Value: w, Reason: fmt.Sprintf("outcome %d: negative prior weight", store.Outcome(i).ID)}
		}
		prior[i] = w
	}
	return prior, nil
}
