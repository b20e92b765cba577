package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/config"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/corpus"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/logger"
)

// Progress is delivered to the OnGeneration hook while a search runs.
type Progress struct {
	Generation int
	BestScore  float64
	Stale      int
}

// Search runs the generational population search for one bet mode. All
// shared state (corpus, compiled conditions, prior weights, fences) is fixed
// at construction; generations are replaced wholesale on the coordinating
// goroutine, so workers never observe a half-built candidate.
type Search struct {
	store  *corpus.Store
	mode   config.BetMode
	params config.Parameters

	set    *ConditionSet
	scorer *Scorer
	prior  []float64
	fences []Fence
	eval   *Evaluator
	rng    *rand.Rand

	// OnGeneration, when set, is called between generations.
	OnGeneration func(Progress)
}

// New compiles the bet mode against the corpus: scaling rules fold into the
// prior weights, condition predicates resolve to membership sets, and the
// searchable outcomes partition into fences.
func New(store *corpus.Store, mode config.BetMode) (*Search, error) {
	params := mode.Parameters.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	prior, err := ApplyScaling(store, mode.Scaling)
	if err != nil {
		return nil, err
	}
	set, err := CompileConditions(mode, store)
	if err != nil {
		return nil, err
	}
	fences := BuildFences(store, set, prior, params.NumPerFence)
	if len(fences) == 0 {
		return nil, &corpus.CorpusError{Field: "weight", Value: 0, Reason: "no outcomes remain in the search space"}
	}

	scorer := NewScorer(params.ScoreType)
	return &Search{
		store:  store,
		mode:   mode,
		params: params,
		set:    set,
		scorer: scorer,
		prior:  prior,
		fences: fences,
		eval:   NewEvaluator(params.Workers, set, scorer, prior, fences),
		rng:    rand.New(rand.NewSource(params.Seed)),
	}, nil
}

// Fences exposes the partition for diagnostics.
func (s *Search) Fences() []Fence { return s.fences }

// Run executes the search until convergence or budget exhaustion and returns
// the best candidate found. Cancellation is honored between generations, so
// a cancelled run still carries a valid best-known candidate.
func (s *Search) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	var deadline time.Time
	if s.params.MaxDuration > 0 {
		deadline = start.Add(s.params.MaxDuration)
	}

	log := logger.With("bet_mode", s.mode.Name, "fences", len(s.fences), "population", s.params.PopulationSize)
	log.Info("starting optimization",
		"score_type", s.params.ScoreType,
		"max_generations", s.params.MaxGenerations,
		"workers", s.params.Workers,
	)

	population := s.seedPopulation()

	best := make([]float64, len(s.fences))
	bestScore := math.Inf(1)
	bestGen := 0
	stale := 0
	generations := 0

	for gen := 0; gen < s.params.MaxGenerations; gen++ {
		scores, err := s.eval.EvaluateAll(gen, population)
		if err != nil {
			return nil, err
		}
		generations = gen + 1

		genBest, genBestScore := bestOfGeneration(population, scores)
		if genBestScore < bestScore-s.params.Tolerance {
			copy(best, genBest)
			bestScore = genBestScore
			bestGen = gen
			stale = 0
		} else {
			if genBestScore < bestScore {
				// Still record marginal gains; they just don't reset
				// the convergence counter.
				copy(best, genBest)
				bestScore = genBestScore
				bestGen = gen
			}
			stale++
		}

		if s.OnGeneration != nil {
			s.OnGeneration(Progress{Generation: gen, BestScore: bestScore, Stale: stale})
		}

		if bestScore <= s.params.AcceptScore {
			break
		}
		if stale >= s.params.Patience {
			log.Warn("optimization plateaued", "generation", gen, "best_score", bestScore, "stale", stale)
			break
		}
		if err := ctx.Err(); err != nil {
			log.Warn("optimization cancelled", "generation", gen, "best_score", bestScore)
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			log.Warn("optimization hit time budget", "generation", gen, "best_score", bestScore)
			break
		}

		population = s.breed(population, scores, best)
	}

	// A run converges only by reaching the acceptance threshold. Plateau
	// and budget stops still return the best candidate, flagged as such.
	converged := bestScore <= s.params.AcceptScore

	result, err := s.buildResult(best, bestScore, bestGen, generations, converged, time.Since(start))
	if err != nil {
		return nil, err
	}
	if converged {
		log.Info("optimization converged", "generation", bestGen, "score", bestScore, "elapsed", result.Elapsed)
	} else {
		log.Warn("optimization exhausted budget without converging",
			"generations", generations, "score", bestScore, "elapsed", result.Elapsed)
	}
	return result, nil
}

// seedPopulation builds generation 0 around the prior: candidate 0 is the
// exact prior (all multipliers 1), the rest jitter each fence with lognormal
// noise so the early search stays near the feasible region.
func (s *Search) seedPopulation() [][]float64 {
	population := make([][]float64, s.params.PopulationSize)
	for p := range population {
		cand := make([]float64, len(s.fences))
		for f := range cand {
			if p == 0 {
				cand[f] = 1.0
			} else {
				cand[f] = lognormal(s.rng, s.params.MutationSigma)
			}
		}
		population[p] = cand
	}
	return population
}

// breed produces the next generation: elites survive unchanged, the rest
// come from tournament-selected parents via arithmetic crossover plus
// multiplicative mutation. The best-known candidate is always re-injected,
// so the search can never lose it.
func (s *Search) breed(population [][]float64, scores []float64, best []float64) [][]float64 {
	order := make([]int, len(population))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	next := make([][]float64, 0, len(population))

	// Elitism: best-known first, then this generation's top candidates.
	elite := make([]float64, len(best))
	copy(elite, best)
	next = append(next, elite)
	for i := 0; len(next) < s.params.EliteCount && i < len(order); i++ {
		keep := make([]float64, len(population[order[i]]))
		copy(keep, population[order[i]])
		next = append(next, keep)
	}

	for len(next) < len(population) {
		a := s.tournament(population, scores)
		b := s.tournament(population, scores)
		var child []float64
		if s.rng.Float64() < s.params.CrossoverRate {
			child = s.crossover(a, b)
		} else {
			child = make([]float64, len(a))
			copy(child, a)
		}
		s.mutate(child)
		next = append(next, child)
	}
	return next
}

// tournament returns the best of TournamentSize uniformly sampled
// candidates.
func (s *Search) tournament(population [][]float64, scores []float64) []float64 {
	bestIdx := s.rng.Intn(len(population))
	for i := 1; i < s.params.TournamentSize; i++ {
		idx := s.rng.Intn(len(population))
		if scores[idx] < scores[bestIdx] {
			bestIdx = idx
		}
	}
	return population[bestIdx]
}

// crossover blends two parents per fence with a random convex coefficient.
func (s *Search) crossover(a, b []float64) []float64 {
	child := make([]float64, len(a))
	alpha := s.rng.Float64()
	for f := range child {
		child[f] = alpha*a[f] + (1-alpha)*b[f]
	}
	return child
}

// mutate applies lognormal multiplicative noise to a fraction of fences.
// Multipliers stay non-negative by construction.
func (s *Search) mutate(cand []float64) {
	for f := range cand {
		if s.rng.Float64() < s.params.MutationRate {
			cand[f] *= lognormal(s.rng, s.params.MutationSigma)
		}
	}
}

func lognormal(rng *rand.Rand, sigma float64) float64 {
	return math.Exp(rng.NormFloat64() * sigma)
}

func bestOfGeneration(population [][]float64, scores []float64) ([]float64, float64) {
	bestIdx := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] < scores[bestIdx] {
			bestIdx = i
		}
	}
	return population[bestIdx], scores[bestIdx]
}

// ExpandWeights turns a per-fence candidate into the full per-outcome weight
// vector.
func (s *Search) ExpandWeights(multipliers []float64) ([]float64, error) {
	weights := make([]float64, len(s.prior))
	if err := s.eval.expand(multipliers, weights); err != nil {
		return nil, fmt.Errorf("expand candidate: %w", err)
	}
	return weights, nil
}
