package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Event types published over the lifecycle of an optimization run.
const (
	TypeRunStarted   = "run_started"
	TypeGeneration   = "generation"
	TypeRunCompleted = "run_completed"
	TypeRunFailed    = "run_failed"
)

// OptimizerEvent is the JSON payload published to NATS.
type OptimizerEvent struct {
	Type       string  `json:"type"`
	BetMode    string  `json:"bet_mode"`
	Generation int     `json:"generation,omitempty"`
	BestScore  float64 `json:"best_score,omitempty"`
	Converged  bool    `json:"converged,omitempty"`
	Error      string  `json:"error,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// Emitter publishes optimizer progress. A nil *Emitter is a valid no-op so
// callers never have to guard for the unconfigured case.
type Emitter struct {
	conn    *nats.Conn
	subject string
}

// NewEmitter connects to NATS. An empty URL yields the no-op emitter.
func NewEmitter(natsURL, subjectPrefix string) (*Emitter, error) {
	if natsURL == "" {
		return nil, nil
	}
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if subjectPrefix == "" {
		subjectPrefix = "optimizer"
	}
	return &Emitter{conn: conn, subject: subjectPrefix + ".runs"}, nil
}

func (e *Emitter) EmitRunStarted(betMode string) error {
	return e.Emit(OptimizerEvent{Type: TypeRunStarted, BetMode: betMode})
}

func (e *Emitter) EmitGeneration(betMode string, generation int, bestScore float64) error {
	return e.Emit(OptimizerEvent{
		Type:       TypeGeneration,
		BetMode:    betMode,
		Generation: generation,
		BestScore:  bestScore,
	})
}

func (e *Emitter) EmitRunCompleted(betMode string, generation int, bestScore float64, converged bool) error {
	return e.Emit(OptimizerEvent{
		Type:       TypeRunCompleted,
		BetMode:    betMode,
		Generation: generation,
		BestScore:  bestScore,
		Converged:  converged,
	})
}

func (e *Emitter) EmitRunFailed(betMode string, err error) error {
	ev := OptimizerEvent{Type: TypeRunFailed, BetMode: betMode}
	if err != nil {
		ev.Error = err.Error()
	}
	return e.Emit(ev)
}

func (e *Emitter) Emit(event OptimizerEvent) error {
	if e == nil {
		return nil
	}
	event.Timestamp = time.Now().UTC().Unix()
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return e.conn.Publish(e.subject, data)
}

func (e *Emitter) Close() {
	if e != nil && e.conn != nil {
		e.conn.Close()
	}
}
