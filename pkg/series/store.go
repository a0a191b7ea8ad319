package series

import (
	"iter"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v3"

	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// Store holds one subject's metric records, oldest first
type Store struct {
	mu       sync.RWMutex
	records  []types.MetricRecord
	ids      map[string]struct{}
	index    *Index
	revision uint64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		ids:   make(map[string]struct{}),
		index: NewIndex(),
	}
}

// NewStoreFrom creates a store and appends records in the given order
func NewStoreFrom(records []types.MetricRecord) (*Store, error) {
	s := NewStore()
	for _, rec := range records {
		if err := s.Append(rec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewRecordID returns a time-ordered record identifier
func NewRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// Append inserts a record at the end of the store.
// The metrics map is copied so later mutation by the caller has no effect.
func (s *Store) Append(rec types.MetricRecord) error {
	if rec.Metrics == nil {
		return NewValidationError("metrics", "must be a mapping of metric name to value")
	}

	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		rec.ID = NewRecordID()
	}
	rec.Metrics = maps.Clone(rec.Metrics)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[rec.ID]; exists {
		return NewValidationError("id", "duplicate record id "+rec.ID)
	}

	s.records = append(s.records, rec)
	s.ids[rec.ID] = struct{}{}
	s.index.Add(&rec)
	s.revision++

	return nil
}

// Remove deletes the record with the given id
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[id]; !exists {
		return NewNotFoundError(id)
	}

	// Copy on write: iterators handed out earlier keep their snapshot.
	kept := make([]types.MetricRecord, 0, len(s.records)-1)
	for _, rec := range s.records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}

	s.records = kept
	delete(s.ids, id)
	s.index.Remove(id)
	s.revision++

	return nil
}

// SeriesFor yields (record, value) pairs for one metric in chronological order.
// The sequence reflects the store at the time of the call and can be ranged
// over any number of times.
func (s *Store) SeriesFor(name string) iter.Seq2[types.MetricRecord, null.Float] {
	s.mu.RLock()
	snapshot := s.records
	s.mu.RUnlock()

	return func(yield func(types.MetricRecord, null.Float) bool) {
		for _, rec := range snapshot {
			if !yield(rec, ParseValue(rec.Metrics[name])) {
				return
			}
		}
	}
}

// Collect materialises the series of one metric
func (s *Store) Collect(name string) types.MetricSeries {
	out := make(types.MetricSeries, 0, s.Len())
	i := 0
	for rec, v := range s.SeriesFor(name) {
		out = append(out, types.SeriesEntry{Index: i, Record: rec, Value: v})
		i++
	}
	return out
}

// Records returns a copy of all records, oldest first
func (s *Store) Records() []types.MetricRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.MetricRecord(nil), s.records...)
}

// Get returns the record with the given id
func (s *Store) Get(id string) (types.MetricRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return types.MetricRecord{}, false
}

// Len returns the number of records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Revision increases by one on every successful mutation
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// MetricNames returns the metric names present in any record
func (s *Store) MetricNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.MetricNames()
}

// MetricsOf returns the metric names referenced by a record
func (s *Store) MetricsOf(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.MetricsOf(id)
}
