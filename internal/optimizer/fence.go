package optimizer

import (
	"sort"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/corpus"
)

// Fence is one search dimension: a group of outcomes whose weights move
// together. Partitioning keeps the candidate vector tractable when the
// corpus holds millions of outcomes.
type Fence struct {
	Outcomes []int
}

// BuildFences partitions the searchable outcomes (prior weight > 0) into
// fences. Outcomes matched by the same set of conditions share a group, so a
// fence never straddles a condition boundary; each group is then split into
// payout-sorted buckets of at most numPerFence outcomes. numPerFence <= 0
// gives one fence per outcome.
//
// The returned order is deterministic: groups appear in order of their first
// outcome index, buckets in ascending payout order.
func BuildFences(store *corpus.Store, set *ConditionSet, prior []float64, numPerFence int) []Fence {
	type group struct {
		first    int
		outcomes []int
	}
	groups := make(map[string]*group)
	var keys []string

	for i := 0; i < store.Len(); i++ {
		if prior[i] == 0 {
			continue // zero prior weight is out of the search space
		}
		key := membershipKey(set, i)
		g, ok := groups[key]
		if !ok {
			g = &group{first: i}
			groups[key] = g
			keys = append(keys, key)
		}
		g.outcomes = append(g.outcomes, i)
	}

	sort.Slice(keys, func(a, b int) bool {
		return groups[keys[a]].first < groups[keys[b]].first
	})

	var fences []Fence
	for _, key := range keys {
		g := groups[key]
		if numPerFence <= 0 {
			for _, idx := range g.outcomes {
				fences = append(fences, Fence{Outcomes: []int{idx}})
			}
			continue
		}
		sort.SliceStable(g.outcomes, func(a, b int) bool {
			return store.Payout(g.outcomes[a]) < store.Payout(g.outcomes[b])
		})
		for start := 0; start < len(g.outcomes); start += numPerFence {
			end := start + numPerFence
			if end > len(g.outcomes) {
				end = len(g.outcomes)
			}
			bucket := make([]int, end-start)
			copy(bucket, g.outcomes[start:end])
			fences = append(fences, Fence{Outcomes: bucket})
		}
	}
	return fences
}

func membershipKey(set *ConditionSet, i int) string {
	key := make([]byte, len(set.Conditions))
	for c := range set.Conditions {
		if set.Conditions[c].member[i] {
			key[c] = '1'
		} else {
			key[c] = '0'
		}
	}
	return string(key)
}
