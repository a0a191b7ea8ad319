package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vjranagit/gaitmetrics/pkg/dashboard"
	"github.com/vjranagit/gaitmetrics/pkg/ingest"
	"github.com/vjranagit/gaitmetrics/pkg/series"
	"github.com/vjranagit/gaitmetrics/pkg/storage"
	"github.com/vjranagit/gaitmetrics/pkg/types"
)

// ErrUnknownMetric is returned for metric names missing from the catalog
var ErrUnknownMetric = errors.New("unknown metric")

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Service keeps each subject's history in memory, writes through to the
// repository, and derives dashboards on demand.
type Service struct {
	repo    storage.Repository
	dash    *dashboard.Dashboard
	cache   *dashboard.Cache
	metrics *Metrics
	now     func() time.Time

	// mu serialises hydration and mutations
	mu     sync.Mutex
	stores map[string]*series.Store
}

// New creates a service
func New(repo storage.Repository, dash *dashboard.Dashboard, cache *dashboard.Cache, metrics *Metrics) *Service {
	return &Service{
		repo:    repo,
		dash:    dash,
		cache:   cache,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		stores:  make(map[string]*series.Store),
	}
}

// Catalog returns the metric knowledge table
func (s *Service) Catalog() *dashboard.Catalog {
	return s.dash.Catalog()
}

// storeLocked returns the in-memory store of a subject, loading it on first use.
// A subject without records gets a detached empty store unless create is set,
// so reads of unknown subjects leave nothing behind.
func (s *Service) storeLocked(ctx context.Context, subject string, create bool) (*series.Store, error) {
	if st, ok := s.stores[subject]; ok {
		return st, nil
	}

	records, err := s.repo.Load(ctx, subject)
	if err != nil {
		return nil, err
	}

	st, err := series.NewStoreFrom(records)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate %s: %w", subject, err)
	}
	if len(records) == 0 && !create {
		return st, nil
	}

	s.stores[subject] = st
	s.metrics.SubjectsLoaded.Set(float64(len(s.stores)))
	log.Debug().Str("subject", subject).Int("records", st.Len()).Msg("subject history loaded")

	return st, nil
}

func (s *Service) store(ctx context.Context, subject string) (*series.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked(ctx, subject, false)
}

// Ingest appends a record to a subject's history and persists it
func (s *Service) Ingest(ctx context.Context, subject string, rec types.MetricRecord, format string) (types.MetricRecord, error) {
	rec, err := s.ingest(ctx, subject, rec)
	if err != nil {
		s.metrics.IngestRejected.WithLabelValues(format).Inc()
		return rec, err
	}

	s.metrics.RecordsIngested.WithLabelValues(format).Inc()
	log.Info().
		Str("subject", subject).
		Str("record_id", rec.ID).
		Str("format", format).
		Int("metrics", len(rec.Metrics)).
		Msg("record ingested")

	return rec, nil
}

func (s *Service) ingest(ctx context.Context, subject string, rec types.MetricRecord) (types.MetricRecord, error) {
	if rec.Metrics == nil {
		return rec, series.NewValidationError("metrics", "must be a mapping of metric name to value")
	}
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		rec.ID = series.NewRecordID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.storeLocked(ctx, subject, true)
	if err != nil {
		return rec, err
	}
	if _, exists := st.Get(rec.ID); exists {
		return rec, series.NewValidationError("id", "duplicate record id "+rec.ID)
	}

	if err := s.repo.Append(ctx, subject, rec); err != nil {
		return rec, err
	}
	if err := st.Append(rec); err != nil {
		if rbErr := s.repo.Delete(ctx, subject, rec.ID); rbErr != nil {
			log.Error().Err(rbErr).Str("subject", subject).Str("record_id", rec.ID).Msg("failed to roll back persisted record")
		}
		return rec, err
	}

	s.cache.Invalidate(subject)
	return rec, nil
}

// IngestJSON parses and ingests one JSON record
func (s *Service) IngestJSON(ctx context.Context, subject string, body []byte) (types.MetricRecord, error) {
	rec, err := ingest.ParseRecordJSON(body)
	if err != nil {
		s.metrics.IngestRejected.WithLabelValues(FormatJSON).Inc()
		return rec, err
	}
	return s.Ingest(ctx, subject, rec, FormatJSON)
}

// IngestCSV parses and ingests an analysis CSV produced for one upload
func (s *Service) IngestCSV(ctx context.Context, subject, sourceRef string, r io.Reader) (types.MetricRecord, error) {
	analysis, err := ingest.ParseAnalysisCSV(r)
	if err != nil {
		s.metrics.IngestRejected.WithLabelValues(FormatCSV).Inc()
		return types.MetricRecord{}, err
	}

	for name, unit := range analysis.Units {
		if info, ok := s.dash.Catalog().Lookup(name); ok && unit != "" && unit != info.Unit {
			log.Warn().Str("metric", name).Str("unit", unit).Str("expected", info.Unit).Msg("unit mismatch in analysis file")
		}
	}

	return s.Ingest(ctx, subject, types.MetricRecord{
		SourceRef:   sourceRef,
		Metrics:     analysis.Metrics,
		FallWarning: analysis.FallWarning,
	}, FormatCSV)
}

// Delete removes a record and returns the metric names it carried
func (s *Service) Delete(ctx context.Context, subject, id string) ([]string, error) {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.storeLocked(ctx, subject, false)
	if err != nil {
		return nil, err
	}
	if _, exists := st.Get(id); !exists {
		return nil, series.NewNotFoundError(id)
	}

	affected := st.MetricsOf(id)
	if err := s.repo.Delete(ctx, subject, id); err != nil {
		return nil, err
	}
	if err := st.Remove(id); err != nil {
		return nil, err
	}

	dropped := s.cache.Invalidate(subject)
	s.metrics.RecordsDeleted.Inc()
	log.Info().
		Str("subject", subject).
		Str("record_id", id).
		Strs("metrics", affected).
		Int("cache_dropped", dropped).
		Msg("record deleted")

	return affected, nil
}

// Records returns a subject's history, newest first
func (s *Service) Records(ctx context.Context, subject string) ([]types.MetricRecord, error) {
	st, err := s.store(ctx, subject)
	if err != nil {
		return nil, err
	}
	records := st.Records()
	slices.Reverse(records)
	return records, nil
}

// MetricNames returns metric names present in a subject's history
func (s *Service) MetricNames(ctx context.Context, subject string) ([]string, error) {
	st, err := s.store(ctx, subject)
	if err != nil {
		return nil, err
	}
	return st.MetricNames(), nil
}

// Subjects lists persisted subjects
func (s *Service) Subjects(ctx context.Context) ([]string, error) {
	return s.repo.Subjects(ctx)
}

// Dashboard returns every catalogued metric's view for a subject
func (s *Service) Dashboard(ctx context.Context, subject string, opts dashboard.Options) ([]dashboard.MetricView, error) {
	st, err := s.store(ctx, subject)
	if err != nil {
		return nil, err
	}

	revision := st.Revision()
	key := dashboard.NewCacheKey(subject, "", opts)
	key.Revision = revision
	if views, ok := s.cache.Get(key); ok {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return views, nil
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()

	start := time.Now()
	views := s.dash.Build(st, opts)
	s.metrics.BuildDuration.WithLabelValues("dashboard").Observe(time.Since(start).Seconds())

	// A write during the build may have mixed revisions into the views
	if st.Revision() == revision {
		s.cache.Put(key, views)
	}
	return views, nil
}

// Metric returns the view of one metric for a subject
func (s *Service) Metric(ctx context.Context, subject, name string, opts dashboard.Options) (dashboard.MetricView, error) {
	if _, ok := s.dash.Catalog().Lookup(name); !ok {
		return dashboard.MetricView{}, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}

	st, err := s.store(ctx, subject)
	if err != nil {
		return dashboard.MetricView{}, err
	}

	revision := st.Revision()
	key := dashboard.NewCacheKey(subject, name, opts)
	key.Revision = revision
	if views, ok := s.cache.Get(key); ok && len(views) == 1 {
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return views[0], nil
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()

	start := time.Now()
	view, _ := s.dash.View(st, name, opts)
	s.metrics.BuildDuration.WithLabelValues("metric").Observe(time.Since(start).Seconds())

	if st.Revision() == revision {
		s.cache.Put(key, []dashboard.MetricView{view})
	}
	return view, nil
}

// CacheStats returns dashboard cache statistics
func (s *Service) CacheStats() dashboard.CacheStats {
	return s.cache.Stats()
}
