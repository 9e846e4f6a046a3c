// Package metrics exposes delivery engine health as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	EventsTracked    *prometheus.CounterVec
	BatchesSent      prometheus.Counter
	BatchFailures    prometheus.Counter
	RecordsDelivered prometheus.Counter
	ProbesSkipped    prometheus.Counter
	PendingRecords   prometheus.Gauge
	ServerAvailable  prometheus.Gauge
	SendDuration     prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTracked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_events_tracked_total",
				Help: "Total number of events accepted into the pending queue",
			},
			[]string{"type"},
		),
		BatchesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beacon_batches_sent_total",
				Help: "Total number of batches accepted by the collector",
			},
		),
		BatchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beacon_batch_failures_total",
				Help: "Total number of batches returned to the pending queue",
			},
		),
		RecordsDelivered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beacon_records_delivered_total",
				Help: "Total number of event records delivered",
			},
		),
		ProbesSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beacon_probes_skipped_total",
				Help: "Total number of sends failed early during availability cool-down",
			},
		),
		PendingRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_pending_records",
				Help: "Number of records waiting in the pending queue",
			},
		),
		ServerAvailable: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "beacon_server_available",
				Help: "1 when the collector was reachable on the last attempt",
			},
		),
		SendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "beacon_send_duration_seconds",
				Help:    "Duration from issuing a send to receiving its outcome",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.EventsTracked,
			m.BatchesSent,
			m.BatchFailures,
			m.RecordsDelivered,
			m.ProbesSkipped,
			m.PendingRecords,
			m.ServerAvailable,
			m.SendDuration,
		)
	}
	return m
}

func (m *Metrics) Tracked(eventType string) {
	if m == nil {
		return
	}
	m.EventsTracked.WithLabelValues(eventType).Inc()
}

func (m *Metrics) Delivered(records int, took time.Duration) {
	if m == nil {
		return
	}
	m.BatchesSent.Inc()
	m.RecordsDelivered.Add(float64(records))
	m.SendDuration.Observe(took.Seconds())
}

func (m *Metrics) Failed() {
	if m == nil {
		return
	}
	m.BatchFailures.Inc()
}

func (m *Metrics) Skipped() {
	if m == nil {
		return
	}
	m.ProbesSkipped.Inc()
}

func (m *Metrics) Pending(n int) {
	if m == nil {
		return
	}
	m.PendingRecords.Set(float64(n))
}

func (m *Metrics) Available(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.ServerAvailable.Set(1)
	} else {
		m.ServerAvailable.Set(0)
	}
}
