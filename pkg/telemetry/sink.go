package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink is the telemetry collaborator injected into drivecore. A disabled
// Sink (Enabled=false) still exposes the same methods, as no-ops, so
// callers never need to nil-check it.
type Sink struct {
	Enabled bool

	registry *prometheus.Registry

	DecryptionErrorsTotal   *prometheus.CounterVec
	VerificationErrorsTotal *prometheus.CounterVec
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	BatchQueueDepth         prometheus.Gauge
	MutationLatencySeconds  *prometheus.HistogramVec
}

// NewSink builds a Sink with its own private registry. Pass enabled=false
// to build a Sink whose recording methods are no-ops (e.g. in tests or
// when the host application opts out of telemetry).
func NewSink(enabled bool) *Sink {
	s := &Sink{
		Enabled:  enabled,
		registry: prometheus.NewRegistry(),
		DecryptionErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drive_node_decryption_errors_total",
			Help: "Decryption failures, deduplicated per node UID per process lifetime.",
		}, []string{"stage"}),
		VerificationErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drive_node_verification_errors_total",
			Help: "Signature verification failures, deduplicated per node UID per process lifetime.",
		}, []string{"field"}),
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drive_node_cache_hits_total",
			Help: "Node cache hits by cache layer.",
		}, []string{"layer"}),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drive_node_cache_misses_total",
			Help: "Node cache misses by cache layer.",
		}, []string{"layer"}),
		BatchQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "drive_node_batch_queue_depth",
			Help: "Current number of UIDs queued for the next batch fetch.",
		}),
		MutationLatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "drive_node_mutation_latency_seconds",
			Help: "End-to-end latency of node mutations.",
		}, []string{"operation"}),
	}

	s.registry.MustRegister(
		s.DecryptionErrorsTotal,
		s.VerificationErrorsTotal,
		s.CacheHitsTotal,
		s.CacheMissesTotal,
		s.BatchQueueDepth,
		s.MutationLatencySeconds,
	)
	return s
}

// Registry exposes the private registry, e.g. for a host application to
// mount an HTTP /metrics handler over it.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

func (s *Sink) RecordDecryptionError(stage string) {
	if !s.Enabled {
		return
	}
	s.DecryptionErrorsTotal.WithLabelValues(stage).Inc()
}

func (s *Sink) RecordVerificationError(field string) {
	if !s.Enabled {
		return
	}
	s.VerificationErrorsTotal.WithLabelValues(field).Inc()
}

func (s *Sink) RecordCacheHit(layer string) {
	if !s.Enabled {
		return
	}
	s.CacheHitsTotal.WithLabelValues(layer).Inc()
}

func (s *Sink) RecordCacheMiss(layer string) {
	if !s.Enabled {
		return
	}
	s.CacheMissesTotal.WithLabelValues(layer).Inc()
}

func (s *Sink) SetBatchQueueDepth(depth int) {
	if !s.Enabled {
		return
	}
	s.BatchQueueDepth.Set(float64(depth))
}

func (s *Sink) ObserveMutationLatency(operation string, seconds float64) {
	if !s.Enabled {
		return
	}
	s.MutationLatencySeconds.WithLabelValues(operation).Observe(seconds)
}
