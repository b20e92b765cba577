package runstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Raw-Fun-Gaming/stake-engine-math-sub000/internal/optimizer"
)

const runKeyPrefix = "run:"

// RunRecord wraps a persisted optimization result with its identity.
type RunRecord struct {
	ID        string            `json:"id"`
	BetMode   string            `json:"bet_mode"`
	CreatedAt time.Time         `json:"created_at"`
	Result    *optimizer.Result `json:"result"`
}

// Store persists finished optimization runs so they can be re-inspected
// without re-running the search.
type Store struct {
	kv KVStore
}

func New(kv KVStore) *Store {
	return &Store{kv: kv}
}

// Open is a convenience constructor over a badger directory.
func Open(dir string) (*Store, error) {
	kv, err := NewBadgerStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return New(kv), nil
}

// SaveRun stores the result and returns the generated run id.
func (s *Store) SaveRun(result *optimizer.Result) (string, error) {
	now := time.Now().UTC()
	id := fmt.Sprintf("%s-%s", result.BetMode, now.Format("20060102T150405.000"))
	record := RunRecord{
		ID:        id,
		BetMode:   result.BetMode,
		CreatedAt: now,
		Result:    result,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal run %s: %w", id, err)
	}
	if err := s.kv.Set(runKeyPrefix+id, data); err != nil {
		return "", fmt.Errorf("save run %s: %w", id, err)
	}
	return id, nil
}

// GetRun loads one stored run by id.
func (s *Store) GetRun(id string) (*RunRecord, error) {
	data, err := s.kv.Get(runKeyPrefix + id)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &record, nil
}

// ListRuns returns the ids of all stored runs, oldest first.
func (s *Store) ListRuns() ([]string, error) {
	keys, err := s.kv.List(runKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, runKeyPrefix))
	}
	return ids, nil
}

func (s *Store) Close() error {
	return s.kv.Close()
}
