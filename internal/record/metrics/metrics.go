package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics provides observability for the record lifecycle.
// All methods are safe on a nil receiver.
type Metrics struct {
	RecordsCreated     *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	PublishFailures    prometheus.Counter
	AllocationDuration prometheus.Histogram
	CreateDuration     prometheus.Histogram
}

// New creates the record metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_records_created_total",
			Help: "Patient records persisted, by derived recommendation",
		}, []string{"recommendation"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_recommendation_cache_lookups_total",
			Help: "Recommendation cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "clinic_event_publish_failures_total",
			Help: "Record-created events that could not be announced",
		}),
		AllocationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clinic_id_allocation_duration_seconds",
			Help:    "Duration of patient id allocation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CreateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clinic_record_create_duration_seconds",
			Help:    "Duration of the full create-and-evaluate path",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementRecordsCreated counts a persisted record. A nil label is "none".
func (m *Metrics) IncrementRecordsCreated(recommendation *string) {
	if m == nil {
		return
	}
	label := "none"
	if recommendation != nil {
		label = *recommendation
	}
	m.RecordsCreated.WithLabelValues(label).Inc()
}

// IncrementCacheLookup records a cache lookup outcome.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementPublishFailures() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

// ObserveAllocation records allocation latency.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAllocation(start time.Time) {
	if m == nil {
		return
	}
	m.AllocationDuration.Observe(time.Since(start).Seconds())
}

// ObserveCreate records end-to-end create latency.
func (m *Metrics) ObserveCreate(start time.Time) {
	if m == nil {
		return
	}
	m.CreateDuration.Observe(time.Since(start).Seconds())
}
