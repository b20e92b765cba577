package optimizer

import (
	"fmt"
	"math"
	"sync"
)

// EvalError identifies exactly which candidate of which generation failed,
// so a bad evaluation aborts the run instead of silently biasing selection.
type EvalError struct {
	Generation int
	Candidate  int
	Err        error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate generation %d candidate %d: %v", e.Generation, e.Candidate, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// Evaluator fans the fitness evaluation of a generation out across a fixed
// worker pool. Workers only read the shared corpus-derived state (prior
// weights, compiled conditions) and their own candidate; results come back
// in candidate order regardless of scheduling, so a run is reproducible for
// any pool size.
type Evaluator struct {
	workers int
	set     *ConditionSet
	scorer  *Scorer
	prior   []float64
	fences  []Fence
}

func NewEvaluator(workers int, set *ConditionSet, scorer *Scorer, prior []float64, fences []Fence) *Evaluator {
	if workers < 1 {
		workers = 1
	}
	return &Evaluator{workers: workers, set: set, scorer: scorer, prior: prior, fences: fences}
}

// expand turns a per-fence multiplier vector into per-outcome weights inside
// dst. Indices outside the search space keep weight 0.
func (e *Evaluator) expand(multipliers []float64, dst []float64) error {
	if len(multipliers) != len(e.fences) {
		return fmt.Errorf("candidate has %d fences, want %d", len(multipliers), len(e.fences))
	}
	for f, m := range multipliers {
		if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return fmt.Errorf("fence %d: invalid weight multiplier %v", f, m)
		}
		for _, i := range e.fences[f].Outcomes {
			dst[i] = e.prior[i] * m
		}
	}
	return nil
}

// Score evaluates a single candidate synchronously.
func (e *Evaluator) Score(multipliers []float64) (float64, []Metrics, error) {
	weights := make([]float64, len(e.prior))
	if err := e.expand(multipliers, weights); err != nil {
		return 0, nil, err
	}
	metrics := e.set.Evaluate(weights)
	return e.scorer.Score(e.set, metrics), metrics, nil
}

// EvaluateAll scores every candidate of a generation and returns the scores
// in candidate order. The first failed evaluation cancels the generation and
// is returned as an *EvalError.
func (e *Evaluator) EvaluateAll(generation int, population [][]float64) ([]float64, error) {
	scores := make([]float64, len(population))
	tasks := make(chan int)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr *EvalError

	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scratch := make([]float64, len(e.prior))
			for idx := range tasks {
				if err := e.expand(population[idx], scratch); err != nil {
					mu.Lock()
					if firstErr == nil || idx < firstErr.Candidate {
						firstErr = &EvalError{Generation: generation, Candidate: idx, Err: err}
					}
					mu.Unlock()
					continue
				}
				metrics := e.set.Evaluate(scratch)
				scores[idx] = e.scorer.Score(e.set, metrics)
			}
		}()
	}

	for idx := range population {
		tasks <- idx
	}
	close(tasks)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return scores, nil
}
