package runstore

import (
	"errors"
	"testing"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/optimizer"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open run store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndGetRun(t *testing.T) {
	store := newTestStore(t)

	hit := 0.5
	result := &optimizer.Result{
		BetMode:       "base",
		Score:         0.004,
		Generation:    12,
		Generations:   40,
		Converged:     true,
		Weights:       []float64{1, 2, 3},
		Probabilities: []float64{1.0 / 6, 2.0 / 6, 3.0 / 6},
		Conditions: []optimizer.ConditionResult{
			{Name: "wins", TargetHitRate: &hit, Achieved: optimizer.Metrics{HitRate: 0.501}, MatchCount: 2},
		},
	}

	id, err := store.SaveRun(result)
	if err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a non-empty run id")
	}

	record, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("Failed to load run: %v", err)
	}
	if record.ID != id {
		t.Errorf("Expected id %s, got %s", id, record.ID)
	}
	if record.BetMode != "base" {
		t.Errorf("Expected bet mode 'base', got '%s'", record.BetMode)
	}
	if record.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
	if record.Result == nil {
		t.Fatal("Expected stored result")
	}
	if record.Result.Score != 0.004 {
		t.Errorf("Expected score 0.004, got %v", record.Result.Score)
	}
	if len(record.Result.Conditions) != 1 || record.Result.Conditions[0].Name != "wins" {
		t.Errorf("Expected one 'wins' condition, got %v", record.Result.Conditions)
	}
	if record.Result.Conditions[0].TargetHitRate == nil || *record.Result.Conditions[0].TargetHitRate != 0.5 {
		t.Error("Expected hit rate target to round-trip")
	}
}

func TestStore_GetMissingRun(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun("no-such-run")
	if err == nil {
		t.Fatal("Expected error for missing run")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListRuns(t *testing.T) {
	store := newTestStore(t)

	ids, err := store.ListRuns()
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no runs, got %v", ids)
	}

	saved := make(map[string]bool)
	for _, mode := range []string{"base", "bonus"} {
		id, err := store.SaveRun(&optimizer.Result{BetMode: mode})
		if err != nil {
			t.Fatalf("Failed to save run: %v", err)
		}
		saved[id] = true
	}

	ids, err = store.ListRuns()
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(ids) != len(saved) {
		t.Fatalf("Expected %d runs, got %d", len(saved), len(ids))
	}
	for _, id := range ids {
		if !saved[id] {
			t.Errorf("Unexpected run id %s", id)
		}
	}
}

func TestBadgerStore_BasicOperations(t *testing.T) {
	kv, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create badger store: %v", err)
	}
	defer kv.Close()

	if err := kv.Set("run:test", []byte("payload")); err != nil {
		t.Fatalf("Failed to set key: %v", err)
	}

	got, err := kv.Get("run:test")
	if err != nil {
		t.Fatalf("Failed to get key: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("Expected 'payload', got '%s'", got)
	}

	keys, err := kv.List("run:")
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "run:test" {
		t.Errorf("Expected [run:test], got %v", keys)
	}

	if err := kv.Delete("run:test"); err != nil {
		t.Fatalf("Failed to delete key: %v", err)
	}
	if _, err := kv.Get("run:test"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}
