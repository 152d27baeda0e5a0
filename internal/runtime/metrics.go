package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded by the delivered/dropped counters.
const (
	DropReasonStale     = "stale_generation"
	DropReasonDestroyed = "destroyed"
	DropReasonMalformed = "malformed"
	DropReasonEvicted   = "evicted"
)

// Metrics collects Prometheus instrumentation for one buffer/coordinator
// pair. A nil *Metrics is valid and records nothing, so callers never need
// to guard observation sites.
type Metrics struct {
	delivered      *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	subscriberRefs prometheus.Gauge
	registrations  prometheus.Counter
}

// NewMetrics registers the streamgate collectors with reg. The transport
// label distinguishes deployments running different backing infrastructures
// side by side.
func NewMetrics(reg prometheus.Registerer, transport string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{"transport": transport}
	factory := promauto.With(reg)

	return &Metrics{
		delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "streamgate",
			Name:        "events_delivered_total",
			Help:        "Events flushed to handlers, partitioned by event type.",
			ConstLabels: constLabels,
		}, []string{"event_type"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "streamgate",
			Name:        "events_dropped_total",
			Help:        "Events discarded before delivery, partitioned by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "streamgate",
			Name:        "buffer_queue_depth",
			Help:        "Events currently held by the buffer awaiting readiness.",
			ConstLabels: constLabels,
		}),
		subscriberRefs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "streamgate",
			Name:        "subscriber_refs",
			Help:        "Active subscriber references on the coordinator.",
			ConstLabels: constLabels,
		}),
		registrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "streamgate",
			Name:        "transport_registrations_total",
			Help:        "Completed transport listener setups.",
			ConstLabels: constLabels,
		}),
	}
}

func (m *Metrics) observeDelivered(eventType string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(eventType).Inc()
}

func (m *Metrics) observeDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) setSubscriberRefs(n int) {
	if m == nil {
		return
	}
	m.subscriberRefs.Set(float64(n))
}

func (m *Metrics) observeRegistration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}
