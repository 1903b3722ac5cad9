package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gymledger"

// Metrics holds the collectors for the ledger and the reminder dispatcher.
type Metrics struct {
	registry *prometheus.Registry

	reminders        *prometheus.CounterVec
	dispatchRuns     *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	payments         *prometheus.CounterVec
}

// New creates a Metrics backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Reminder sends by mode and outcome.",
		}, []string{"mode", "outcome"}),
		dispatchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_runs_total",
			Help:      "Reminder dispatch runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Wall time of reminder dispatch runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"mode"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment ledger mutations by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reminders,
		m.dispatchRuns,
		m.dispatchDuration,
		m.payments,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ReminderSent(mode string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(mode, "sent").Inc()
}

func (m *Metrics) ReminderFailed(mode string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(mode, "failed").Inc()
}

// DispatchFinished records one run. outcome is "ok" or "error".
func (m *Metrics) DispatchFinished(mode, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatchRuns.WithLabelValues(mode, outcome).Inc()
	m.dispatchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// PaymentMutation counts a ledger write, e.g. "recorded" or "unmarked".
func (m *Metrics) PaymentMutation(action string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(action).Inc()
}
