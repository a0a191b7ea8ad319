package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const ServiceName = "gaitmetrics"

// Metrics are the service's Prometheus collectors
type Metrics struct {
	RecordsIngested *prometheus.CounterVec
	RecordsDeleted  prometheus.Counter
	IngestRejected  *prometheus.CounterVec
	BuildDuration   *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	SubjectsLoaded  prometheus.Gauge
}

// NewMetrics registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ServiceName, "records", "ingested_total"),
			Help: "Records accepted into a subject's history",
		}, []string{"format"}),
		RecordsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ServiceName, "records", "deleted_total"),
			Help: "Records removed from a subject's history",
		}),
		IngestRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ServiceName, "records", "rejected_total"),
			Help: "Records rejected at ingestion",
		}, []string{"format"}),
		BuildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(ServiceName, "dashboard", "build_duration_seconds"),
			Help:    "Duration of dashboard derivation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"scope"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(ServiceName, "dashboard", "cache_lookups_total"),
			Help: "Dashboard cache lookups by result",
		}, []string{"result"}),
		SubjectsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: prometheus.BuildFQName(ServiceName, "subjects", "loaded"),
			Help: "Subjects whose history is held in memory",
		}),
	}
}
