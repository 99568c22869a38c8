// Package memstore implements journal.Store entirely in-memory: the
// default backend when no durable store is configured, and the one
// every pipeline unit test runs against. Grounded on the teacher's
// MemoryStorage (RWMutex-guarded map, structured logging on
// construction) adapted from a keyed record store to an append-only
// log with secondary indices by aggregate and correlation id.
package memstore

import (
	"context"
	"sync"

	"github.com/bytehotd/bytehotd/internal/events"
	"github.com/bytehotd/bytehotd/internal/journal"
)

// Store is an in-memory, thread-safe journal.Store. Data does not
// survive process restart.
type Store struct {
	mu       sync.RWMutex
	records  []journal.Record
	versions map[string]uint64
	byCorr   map[string][]int
	byAgg    map[string][]int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		versions: map[string]uint64{},
		byCorr:   map[string][]int{},
		byAgg:    map[string][]int{},
	}
}

var _ journal.Store = (*Store)(nil)

// Append implements journal.Store.
func (s *Store) Append(ctx context.Context, event events.DomainEvent) (journal.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := uint64(len(s.records)) + 1
	rec := journal.Record{Offset: offset, Event: event}
	idx := len(s.records)
	s.records = append(s.records, rec)
	s.versions[event.AggregateID] = event.AggregateVersion
	s.byCorr[event.CorrelationID] = append(s.byCorr[event.CorrelationID], idx)
	s.byAgg[event.AggregateID] = append(s.byAgg[event.AggregateID], idx)
	return rec, nil
}

// ReadFrom implements journal.Store.
func (s *Store) ReadFrom(ctx context.Context, offset uint64) ([]journal.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]journal.Record, 0, len(s.records))
	for _, r := range s.records {
		if r.Offset >= offset {
			out = append(out, r)
		}
	}
	return out, nil
}

// LatestVersion implements journal.Store.
func (s *Store) LatestVersion(ctx context.Context, aggregateID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[aggregateID], nil
}

// ByCorrelationID implements journal.Store.
func (s *Store) ByCorrelationID(ctx context.Context, correlationID string) ([]journal.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byIndices(s.byCorr[correlationID]), nil
}

// ByAggregateID implements journal.Store.
func (s *Store) ByAggregateID(ctx context.Context, aggregateID string) ([]journal.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byIndices(s.byAgg[aggregateID]), nil
}

func (s *Store) byIndices(indices []int) []journal.Record {
	out := make([]journal.Record, len(indices))
	for i, idx := range indices {
		out[i] = s.records[idx]
	}
	return out
}
