package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Score strategies accepted by Parameters.ScoreType.
const (
	ScoreRTP      = "rtp"
	ScoreHitRate  = "hr"
	ScoreBalanced = "balanced"
)

type Config struct {
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

type OptimizerConfig struct {
	BetModes      map[string]BetMode `yaml:"bet_modes"`
	NATS          NATSConfig         `yaml:"nats"`
	Storage       StorageConfig      `yaml:"storage"`
	ProgressEvery int                `yaml:"progress_every"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type StorageConfig struct {
	Directory string `yaml:"directory"`
}

// BetMode holds the optimization targets and search settings for one
// named outcome group (base game, bonus buy, etc.).
type BetMode struct {
	Name       string          `yaml:"-"`
	Cost       float64         `yaml:"cost"`
	RTP        float64         `yaml:"rtp"`
	MaxWin     float64         `yaml:"max_win"`
	Conditions []ConditionSpec `yaml:"conditions"`
	Scaling    []ScalingRule   `yaml:"scaling"`
	Parameters Parameters      `yaml:"parameters"`
}

// ConditionSpec describes one target group: a predicate over outcomes plus
// the metric targets the optimizer must reproduce for that group. At least
// one of the three targets must be set.
type ConditionSpec struct {
	Name string `yaml:"name"`

	// Predicate: payout window [min, max), optional tag terms, optional
	// negation. A condition with no window and no terms matches everything.
	MinPayout *float64     `yaml:"min_payout"`
	MaxPayout *float64     `yaml:"max_payout"` // nil means unbounded
	Search    []SearchTerm `yaml:"search"`
	Opposite  bool         `yaml:"opposite"`

	// Targets.
	TargetRTP     *float64 `yaml:"rtp"`
	TargetHitRate *float64 `yaml:"hit_rate"`
	TargetAvgWin  *float64 `yaml:"avg_win"`

	// HR is the denominator form used by game configs: hr: 200 means one
	// hit in 200 spins. Load converts it into TargetHitRate.
	HR *float64 `yaml:"hr"`
}

// SearchTerm matches one tag key/value pair on an outcome.
type SearchTerm struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// ScalingRule multiplies the base weight of every outcome whose payout falls
// in [MinPayout, MaxPayout). Rules compose multiplicatively in declaration
// order.
type ScalingRule struct {
	MinPayout float64  `yaml:"min_payout"`
	MaxPayout *float64 `yaml:"max_payout"` // nil means unbounded
	Factor    float64  `yaml:"factor"`
}

// Parameters tunes the population search.
type Parameters struct {
	PopulationSize int           `yaml:"population_size"`
	NumPerFence    int           `yaml:"num_per_fence"` // 0 means one weight per outcome
	EliteCount     int           `yaml:"elite_count"`
	TournamentSize int           `yaml:"tournament_size"`
	CrossoverRate  float64       `yaml:"crossover_rate"`
	MutationRate   float64       `yaml:"mutation_rate"`
	MutationSigma  float64       `yaml:"mutation_sigma"`
	MaxGenerations int           `yaml:"max_generations"`
	MaxDuration    time.Duration `yaml:"max_duration"`
	Tolerance      float64       `yaml:"tolerance"`
	Patience       int           `yaml:"patience"`
	AcceptScore    float64       `yaml:"accept_score"`
	ScoreType      string        `yaml:"score_type"`
	Seed           int64         `yaml:"seed"`
	Workers        int           `yaml:"workers"`
	TestSpins      []int         `yaml:"test_spins"`
	TestWeights    []float64     `yaml:"test_weights"`
}

// ConfigError reports a configuration field that violates its constraint.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s = %v: %s", e.Field, e.Value, e.Reason)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Set defaults
	for name, mode := range config.Optimizer.BetModes {
		mode.Name = name
		if mode.Cost == 0 {
			mode.Cost = 1.0
		}
		mode.Parameters = mode.Parameters.WithDefaults()
		for i := range mode.Conditions {
			c := &mode.Conditions[i]
			if c.HR != nil && c.TargetHitRate == nil && *c.HR > 0 {
				hr := 1.0 / *c.HR
				c.TargetHitRate = &hr
				c.HR = nil
			}
		}
		config.Optimizer.BetModes[name] = mode
	}
	if config.Optimizer.ProgressEvery == 0 {
		config.Optimizer.ProgressEvery = 25
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (p Parameters) WithDefaults() Parameters {
	if p.PopulationSize == 0 {
		p.PopulationSize = 80
	}
	if p.EliteCount == 0 {
		p.EliteCount = 4
	}
	if p.TournamentSize == 0 {
		p.TournamentSize = 4
	}
	if p.CrossoverRate == 0 {
		p.CrossoverRate = 0.9
	}
	if p.MutationRate == 0 {
		p.MutationRate = 0.25
	}
	if p.MutationSigma == 0 {
		p.MutationSigma = 0.12
	}
	if p.MaxGenerations == 0 {
		p.MaxGenerations = 500
	}
	if p.Tolerance == 0 {
		p.Tolerance = 1e-6
	}
	if p.Patience == 0 {
		p.Patience = 50
	}
	if p.AcceptScore == 0 {
		p.AcceptScore = 0.01
	}
	if p.ScoreType == "" {
		p.ScoreType = ScoreBalanced
	}
	if p.Workers == 0 {
		p.Workers = runtime.GOMAXPROCS(0)
	}
	return p
}

// Validate applies the fatal precondition checks. The first violation is
// returned as a *ConfigError naming the offending field and value.
func (c *Config) Validate() error {
	if len(c.Optimizer.BetModes) == 0 {
		return &ConfigError{Field: "optimizer.bet_modes", Value: nil, Reason: "at least one bet mode is required"}
	}
	for name, mode := range c.Optimizer.BetModes {
		if err := mode.Validate(); err != nil {
			return fmt.Errorf("bet mode %q: %w", name, err)
		}
	}
	return nil
}

func (m BetMode) Validate() error {
	if m.Cost <= 0 {
		return &ConfigError{Field: "cost", Value: m.Cost, Reason: "must be positive"}
	}
	if m.RTP >= 1.0 {
		return &ConfigError{Field: "rtp", Value: m.RTP, Reason: "must be less than 1.0"}
	}
	if len(m.Conditions) == 0 {
		return &ConfigError{Field: "conditions", Value: nil, Reason: "at least one condition is required"}
	}
	for i, cond := range m.Conditions {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("conditions[%d] (%s): %w", i, cond.Name, err)
		}
	}
	for i, rule := range m.Scaling {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("scaling[%d]: %w", i, err)
		}
	}
	return m.Parameters.Validate()
}

func (c ConditionSpec) Validate() error {
	if c.Name == "" {
		return &ConfigError{Field: "name", Value: "", Reason: "must not be empty"}
	}
	if c.TargetRTP == nil && c.TargetHitRate == nil && c.TargetAvgWin == nil && c.HR == nil {
		return &ConfigError{Field: "targets", Value: nil, Reason: "condition needs at least one of rtp, hit_rate, avg_win"}
	}
	if c.HR != nil && c.TargetHitRate != nil {
		return &ConfigError{Field: "hr", Value: *c.HR, Reason: "hr and hit_rate are mutually exclusive"}
	}
	if c.HR != nil && *c.HR <= 0 {
		return &ConfigError{Field: "hr", Value: *c.HR, Reason: "must be positive"}
	}
	// min == max is allowed: a degenerate window matches that exact payout
	// (the zero-win and wincap groups).
	if c.MinPayout != nil && c.MaxPayout != nil && *c.MinPayout > *c.MaxPayout {
		return &ConfigError{Field: "min_payout", Value: *c.MinPayout, Reason: "must not exceed max_payout"}
	}
	for _, t := range c.Search {
		if t.Key == "" {
			return &ConfigError{Field: "search.key", Value: "", Reason: "must not be empty"}
		}
	}
	return nil
}

func (r ScalingRule) Validate() error {
	if r.MaxPayout != nil && r.MinPayout >= *r.MaxPayout {
		return &ConfigError{Field: "min_payout", Value: r.MinPayout, Reason: "must be less than max_payout"}
	}
	if r.Factor <= 0 {
		return &ConfigError{Field: "factor", Value: r.Factor, Reason: "must be positive"}
	}
	return nil
}

func (p Parameters) Validate() error {
	if p.PopulationSize <= 0 {
		return &ConfigError{Field: "population_size", Value: p.PopulationSize, Reason: "must be positive"}
	}
	if p.EliteCount < 1 || p.EliteCount >= p.PopulationSize {
		return &ConfigError{Field: "elite_count", Value: p.EliteCount, Reason: "must be in [1, population_size)"}
	}
	if p.TournamentSize < 1 {
		return &ConfigError{Field: "tournament_size", Value: p.TournamentSize, Reason: "must be positive"}
	}
	if p.CrossoverRate < 0 || p.CrossoverRate > 1 {
		return &ConfigError{Field: "crossover_rate", Value: p.CrossoverRate, Reason: "must be in [0, 1]"}
	}
	if p.MutationRate < 0 || p.MutationRate > 1 {
		return &ConfigError{Field: "mutation_rate", Value: p.MutationRate, Reason: "must be in [0, 1]"}
	}
	if p.MutationSigma < 0 {
		return &ConfigError{Field: "mutation_sigma", Value: p.MutationSigma, Reason: "must not be negative"}
	}
	if p.NumPerFence < 0 {
		return &ConfigError{Field: "num_per_fence", Value: p.NumPerFence, Reason: "must not be negative"}
	}
	if p.AcceptScore < 0 {
		return &ConfigError{Field: "accept_score", Value: p.AcceptScore, Reason: "must not be negative"}
	}
	if p.MaxGenerations <= 0 {
		return &ConfigError{Field: "max_generations", Value: p.MaxGenerations, Reason: "must be positive"}
	}
	if p.Workers < 1 {
		return &ConfigError{Field: "workers", Value: p.Workers, Reason: "must be positive"}
	}
	switch p.ScoreType {
	case ScoreRTP, ScoreHitRate, ScoreBalanced:
	default:
		return &ConfigError{Field: "score_type", Value: p.ScoreType, Reason: `must be one of "rtp", "hr", "balanced"`}
	}
	if len(p.TestWeights) > 0 && len(p.TestWeights) != len(p.TestSpins) {
		return &ConfigError{Field: "test_weights", Value: len(p.TestWeights), Reason: "must match test_spins length"}
	}
	return nil
}

// Mode returns the named bet mode.
func (c *Config) Mode(name string) (BetMode, error) {
	mode, ok := c.Optimizer.BetModes[name]
	if !ok {
		return BetMode{}, fmt.Errorf("bet mode %q not configured", name)
	}
	return mode, nil
}
