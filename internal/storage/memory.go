package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a map-backed Store for tests and single-process runs
// without durability.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.records[rec.ID]; ok && cur.Version > rec.Version {
		return nil
	}
	rec.State = append([]byte(nil), rec.State...)
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.State = append([]byte(nil), rec.State...)
	return rec, nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Finished {
			continue
		}
		rec.State = append([]byte(nil), rec.State...)
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return result, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
