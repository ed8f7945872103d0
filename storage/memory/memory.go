// Package memory provides an in-memory RecordStore, used in tests and as a
// fallback when no durable database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jmcleod/pyre/storage"
)

// RecordStore is a thread-safe in-memory storage.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]storage.Record
}

var _ storage.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates an empty in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]storage.Record)}
}

func (s *RecordStore) Upsert(_ context.Context, sessionID string, record storage.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[sessionID]; ok {
		record.RecordID = existing.RecordID
	} else {
		record.RecordID = uuid.NewString()
	}
	record.SessionID = sessionID
	s.records[sessionID] = record
	return record.RecordID, nil
}

func (s *RecordStore) Get(_ context.Context, sessionID string) (storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[sessionID]
	if !ok {
		return storage.Record{}, fmt.Errorf("%s: %w", sessionID, storage.ErrNotFound)
	}
	return record, nil
}

func (s *RecordStore) List(_ context.Context) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.After(out[j].EndTime) })
	return out, nil
}
