package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolverMetrics counts release-gate resolutions by outcome.
type ResolverMetrics struct {
	resolutions *prometheus.CounterVec
}

// NewResolverMetrics registers the resolver metrics on the provided registerer.
func NewResolverMetrics(reg prometheus.Registerer) *ResolverMetrics {
	if reg == nil {
		return &ResolverMetrics{}
	}
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "release_gate_resolutions",
		Help: "Release gate resolutions partitioned by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(resolutions)
	return &ResolverMetrics{resolutions: resolutions}
}

// IncResolution increments the counter for the given outcome label.
func (r *ResolverMetrics) IncResolution(outcome string) {
	if r == nil || r.resolutions == nil {
		return
	}
	r.resolutions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IngestMetrics records per-item outcomes and batch durations for catalog ingestion.
type IngestMetrics struct {
	items    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewIngestMetrics registers the ingestion metrics on the provided registerer.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	if reg == nil {
		return &IngestMetrics{}
	}
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingest_items",
		Help: "Catalog ingestion item outcomes partitioned by result and reason.",
	}, []string{"result", "reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_ingest_batch_duration_seconds",
		Help:    "Duration of catalog ingestion batches in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(items, duration)
	return &IngestMetrics{items: items, duration: duration}
}

// IncItem increments the outcome counter for one ingested entry.
func (i *IngestMetrics) IncItem(result, reason string) {
	if i == nil || i.items == nil {
		return
	}
	i.items.WithLabelValues(normalizeLabel(result), normalizeLabel(reason)).Inc()
}

// ObserveBatch records the duration of one full ingestion run.
func (i *IngestMetrics) ObserveBatch(duration time.Duration) {
	if i == nil || i.duration == nil {
		return
	}
	i.duration.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "none"
	}
	return value
}
