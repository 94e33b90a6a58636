package memory

import (
	"context"
	"sync"

	"holocron/internal/crawler"
)

// RecordStore keeps completed records in memory, keyed by URL.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]crawler.Record
	order   []string
}

// NewRecordStore constructs an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]crawler.Record)}
}

// Save stores rec, overwriting any earlier record for the same URL.
func (s *RecordStore) Save(_ context.Context, rec crawler.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.URL]; !ok {
		s.order = append(s.order, rec.URL)
	}
	s.records[rec.URL] = rec
	return nil
}

// Each invokes fn once per stored record, in insertion order.
func (s *RecordStore) Each(_ context.Context, fn func(crawler.Record) error) error {
	s.mu.RLock()
	snapshot := make([]crawler.Record, 0, len(s.order))
	for _, url := range s.order {
		snapshot = append(snapshot, s.records[url])
	}
	s.mu.RUnlock()

	for _, rec := range snapshot {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored records.
func (s *RecordStore) Len(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}
