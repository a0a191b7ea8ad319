package series

import (
	"sort"

	"github.com/samber/lo"

	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// Index is an inverted index between metric names and the records carrying them
type Index struct {
	// metric name -> record IDs, in insertion order
	byMetric map[string][]string
	// record ID -> metric names
	byRecord map[string][]string
}

// NewIndex creates a new index
func NewIndex() *Index {
	return &Index{
		byMetric: make(map[string][]string),
		byRecord: make(map[string][]string),
	}
}

// Add indexes every metric key of the record. Re-adding an ID is a no-op.
func (idx *Index) Add(rec *types.MetricRecord) {
	if _, exists := idx.byRecord[rec.ID]; exists {
		return
	}

	names := lo.Keys(rec.Metrics)
	sort.Strings(names)
	idx.byRecord[rec.ID] = names

	for _, name := range names {
		idx.byMetric[name] = append(idx.byMetric[name], rec.ID)
	}
}

// Remove drops a record and returns the metric names it referenced
func (idx *Index) Remove(id string) []string {
	names, ok := idx.byRecord[id]
	if !ok {
		return nil
	}
	delete(idx.byRecord, id)

	for _, name := range names {
		remaining := lo.Without(idx.byMetric[name], id)
		if len(remaining) == 0 {
			delete(idx.byMetric, name)
			continue
		}
		idx.byMetric[name] = remaining
	}

	return names
}

// MetricsOf returns the metric names a record references
func (idx *Index) MetricsOf(id string) []string {
	return append([]string(nil), idx.byRecord[id]...)
}

// RecordsWith returns the IDs of records that carry a metric key
func (idx *Index) RecordsWith(metric string) []string {
	return append([]string(nil), idx.byMetric[metric]...)
}

// MetricNames returns every indexed metric name, sorted
func (idx *Index) MetricNames() []string {
	names := lo.Keys(idx.byMetric)
	sort.Strings(names)
	return names
}

// RecordCount returns the number of indexed records
func (idx *Index) RecordCount() int {
	return len(idx.byRecord)
}

// Clear clears the index
func (idx *Index) Clear() {
	idx.byMetric = make(map[string][]string)
	idx.byRecord = make(map[string][]string)
}
