package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/config"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/corpus"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/events"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/logger"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/optimizer"
	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/runstore"
)

type runFlags struct {
	configPath string
	booksPath  string
	betMode    string
	storeDir   string
	natsURL    string
	seed       int64
	workers    int
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Optimize outcome weights for one or all bet modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "config.yaml", "optimizer config file")
	cmd.Flags().StringVarP(&flags.booksPath, "books", "b", "", "outcome corpus (JSONL), one record per simulated round")
	cmd.Flags().StringVarP(&flags.betMode, "betmode", "m", "", "bet mode to optimize (default: all modes in the config)")
	cmd.Flags().StringVar(&flags.storeDir, "store", "", "run store directory (overrides config)")
	cmd.Flags().StringVar(&flags.natsURL, "nats", "", "NATS URL for progress events (overrides config)")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "RNG seed (overrides config)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "evaluation workers (overrides config)")
	cmd.MarkFlagRequired("books")

	return cmd
}

func runOptimize(cmd *cobra.Command, flags runFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	modes, err := selectModes(cfg, flags.betMode)
	if err != nil {
		return err
	}

	start := time.Now()
	store, err := corpus.Load(flags.booksPath)
	if err != nil {
		return err
	}
	logger.Info("corpus loaded",
		"path", flags.booksPath,
		"outcomes", store.Len(),
		"total_weight", store.TotalWeight(),
		"max_payout", store.MaxPayout(),
		"elapsed", time.Since(start))

	natsURL := cfg.Optimizer.NATS.URL
	if flags.natsURL != "" {
		natsURL = flags.natsURL
	}
	emitter, err := events.NewEmitter(natsURL, cfg.Optimizer.NATS.SubjectPrefix)
	if err != nil {
		return err
	}
	defer emitter.Close()

	storeDir := cfg.Optimizer.Storage.Directory
	if flags.storeDir != "" {
		storeDir = flags.storeDir
	}
	var runs *runstore.Store
	if storeDir != "" {
		runs, err = runstore.Open(storeDir)
		if err != nil {
			return err
		}
		defer runs.Close()
	}

	for _, mode := range modes {
		if flags.seed != 0 {
			mode.Parameters.Seed = flags.seed
		}
		if flags.workers != 0 {
			mode.Parameters.Workers = flags.workers
		}
		if err := optimizeMode(cmd, cfg, mode, store, emitter, runs); err != nil {
			if emitErr := emitter.EmitRunFailed(mode.Name, err); emitErr != nil {
				logger.Warn("failed to emit run event", "error", emitErr)
			}
			return fmt.Errorf("optimize %s: %w", mode.Name, err)
		}
	}
	return nil
}

func optimizeMode(cmd *cobra.Command, cfg *config.Config, mode config.BetMode, store *corpus.Store, emitter *events.Emitter, runs *runstore.Store) error {
	search, err := optimizer.New(store, mode)
	if err != nil {
		return err
	}

	log := logger.With("betmode", mode.Name)
	log.Info("optimization started",
		"conditions", len(mode.Conditions),
		"fences", len(search.Fences()))
	if err := emitter.EmitRunStarted(mode.Name); err != nil {
		log.Warn("failed to emit run event", "error", err)
	}

	every := cfg.Optimizer.ProgressEvery
	search.OnGeneration = func(p optimizer.Progress) {
		if every <= 0 || p.Generation%every != 0 {
			return
		}
		log.Info("generation complete",
			"generation", p.Generation,
			"best_score", p.BestScore,
			"stale", p.Stale)
		if err := emitter.EmitGeneration(mode.Name, p.Generation, p.BestScore); err != nil {
			log.Warn("failed to emit run event", "error", err)
		}
	}

	result, err := search.Run(cmd.Context())
	if err != nil {
		return err
	}

	log.Info("optimization finished",
		"score", result.Score,
		"generations", result.Generations,
		"converged", result.Converged,
		"elapsed", result.Elapsed)
	if err := emitter.EmitRunCompleted(mode.Name, result.Generations, result.Score, result.Converged); err != nil {
		log.Warn("failed to emit run event", "error", err)
	}

	if runs != nil {
		id, err := runs.SaveRun(result)
		if err != nil {
			return err
		}
		log.Info("run saved", "run_id", id)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Report())
	return nil
}

// selectModes resolves --betmode, or returns every configured mode in name
// order so repeated invocations process them deterministically.
func selectModes(cfg *config.Config, name string) ([]config.BetMode, error) {
	if name != "" {
		mode, err := cfg.Mode(name)
		if err != nil {
			return nil, err
		}
		return []config.BetMode{mode}, nil
	}

	names := make([]string, 0, len(cfg.Optimizer.BetModes))
	for n := range cfg.Optimizer.BetModes {
		names = append(names, n)
	}
	sort.Strings(names)

	modes := make([]config.BetMode, 0, len(names))
	for _, n := range names {
		mode, err := cfg.Mode(n)
		if err != nil {
			return nil, err
		}
		modes = append(modes, mode)
	}
	return modes, nil
}
