package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// Outcome is one fully-resolved simulated round: a fixed payout multiplier,
// the tags recorded during simulation, and the frequency it occurred at.
// Outcomes are immutable once loaded.
type Outcome struct {
	ID       int64
	Payout   float64
	Weight   uint64
	Criteria string
	Tags     map[string]string
}

// CorpusError reports a corpus that cannot be optimized.
type CorpusError struct {
	Line   int
	Field  string
	Value  any
	Reason string
}

func (e *CorpusError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corpus: line %d: %s = %v: %s", e.Line, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("corpus: %s = %v: %s", e.Field, e.Value, e.Reason)
}

// Store is the read-only, index-stable view of the outcome corpus shared by
// every optimizer component. Index order is load order for the whole run.
type Store struct {
	outcomes    []Outcome
	totalWeight uint64
	maxPayout   float64
}

// book mirrors one line of the simulator's books file. payoutMultiplier is
// the payout scaled by 100 and rounded to an integer, as written by the
// simulation side; payout (if set) takes precedence and is used as-is.
type book struct {
	ID               int64             `json:"id"`
	PayoutMultiplier *int64            `json:"payoutMultiplier"`
	Payout           *float64          `json:"payout"`
	Weight           *int64            `json:"weight"`
	Criteria         string            `json:"criteria"`
	Tags             map[string]string `json:"tags"`
	Events           []map[string]any  `json:"events"`
}

// Load reads a JSONL books file into a Store. Blank lines are skipped.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open books file: %w", err)
	}
	defer f.Close()

	var outcomes []Outcome
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var b book
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("parse books line %d: %w", line, err)
		}
		out, err := b.toOutcome(line)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read books file: %w", err)
	}
	return New(outcomes)
}

func (b book) toOutcome(line int) (Outcome, error) {
	var payout float64
	switch {
	case b.Payout != nil:
		payout = *b.Payout
	case b.PayoutMultiplier != nil:
		// Integer hundredths back to a multiplier; decimal keeps the
		// division exact before the final float conversion.
		payout, _ = decimal.NewFromInt(*b.PayoutMultiplier).
			Div(decimal.NewFromInt(100)).Float64()
	}
	if payout < 0 {
		return Outcome{}, &CorpusError{Line: line, Field: "payout", Value: payout, Reason: "must not be negative"}
	}

	weight := int64(1)
	if b.Weight != nil {
		weight = *b.Weight
	}
	if weight < 0 {
		return Outcome{}, &CorpusError{Line: line, Field: "weight", Value: weight, Reason: "must not be negative"}
	}

	tags := make(map[string]string, len(b.Tags)+len(b.Events)+1)
	for k, v := range b.Tags {
		tags[k] = v
	}
	if b.Criteria != "" {
		tags["criteria"] = b.Criteria
	}
	// Event types become searchable facts ("event:<type>" = "true") so
	// conditions can match on things like bonus triggers without the
	// optimizer knowing event payloads.
	for _, ev := range b.Events {
		if t, ok := ev["type"].(string); ok && t != "" {
			tags["event:"+t] = "true"
		}
	}

	return Outcome{
		ID:       b.ID,
		Payout:   payout,
		Weight:   uint64(weight),
		Criteria: b.Criteria,
		Tags:     tags,
	}, nil
}

// New builds a Store from in-memory outcomes, validating the corpus
// invariants: non-empty, no negative payouts, unique ids.
func New(outcomes []Outcome) (*Store, error) {
	if len(outcomes) == 0 {
		return nil, &CorpusError{Field: "outcomes", Value: 0, Reason: "corpus is empty"}
	}
	seen := make(map[int64]struct{}, len(outcomes))
	s := &Store{outcomes: outcomes}
	for _, out := range outcomes {
		if out.Payout < 0 {
			return nil, &CorpusError{Field: "payout", Value: out.Payout, Reason: fmt.Sprintf("outcome %d: must not be negative", out.ID)}
		}
		if _, dup := seen[out.ID]; dup {
			return nil, &CorpusError{Field: "id", Value: out.ID, Reason: "duplicate outcome id"}
		}
		seen[out.ID] = struct{}{}
		s.totalWeight += out.Weight
		if out.Payout > s.maxPayout {
			s.maxPayout = out.Payout
		}
	}
	if s.totalWeight == 0 {
		return nil, &CorpusError{Field: "weight", Value: 0, Reason: "corpus has no weight mass"}
	}
	return s, nil
}

// Len returns the number of outcomes. Index i is the candidate-vector
// position for the whole run.
func (s *Store) Len() int { return len(s.outcomes) }

func (s *Store) Payout(i int) float64 { return s.outcomes[i].Payout }

func (s *Store) Weight(i int) uint64 { return s.outcomes[i].Weight }

func (s *Store) Tags(i int) map[string]string { return s.outcomes[i].Tags }

func (s *Store) Outcome(i int) Outcome { return s.outcomes[i] }

// TotalWeight is the summed base weight of all outcomes.
func (s *Store) TotalWeight() uint64 { return s.totalWeight }

// MaxPayout is the largest payout in the corpus.
func (s *Store) MaxPayout() float64 { return s.maxPayout }
