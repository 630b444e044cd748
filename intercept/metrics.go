package intercept

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aradilov/logring"
)

const (
	outcomePassthrough = "passthrough"
	outcomeRejected    = "rejected"
	outcomeHeld        = "held"
	outcomeReleased    = "released"
)

// Metrics exports handler and buffer counters to Prometheus.
// A nil *Metrics records nothing.
type Metrics struct {
	events       *prometheus.CounterVec
	flushes      prometheus.Counter
	flushEvents  prometheus.Histogram
	overwritten  prometheus.Counter
	asyncDropped prometheus.Counter
}

// NewMetrics registers the logring collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// events counts records by what the handler did with them
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "logring_events_total",
			Help: "Log records seen by the intercepting handler, by outcome",
		}, []string{"outcome"}),
		flushes: f.NewCounter(prometheus.CounterOpts{
			Name: "logring_flushes_total",
			Help: "Buffer flushes triggered by a record at or above the trigger level",
		}),
		flushEvents: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "logring_flush_events",
			Help:    "Buffered records released per flush",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 to 16384
		}),
		overwritten: f.NewCounter(prometheus.CounterOpts{
			Name: "logring_overwritten_total",
			Help: "Buffered records discarded because the ring wrapped before a flush",
		}),
		asyncDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "logring_async_dropped_total",
			Help: "Records dropped because the async queue was full or closed",
		}),
	}
}

// FlushHook returns a hook for WithFlushHook that records flush stats.
func (m *Metrics) FlushHook() func(logring.RingStats) {
	return func(st logring.RingStats) {
		if m == nil {
			return
		}
		m.flushes.Inc()
		m.flushEvents.Observe(float64(st.Retained))
		m.overwritten.Add(float64(st.Overwritten))
	}
}

func (m *Metrics) event(outcome string, n int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.asyncDropped.Inc()
}
