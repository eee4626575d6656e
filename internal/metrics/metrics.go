package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the polling scheduler and operator actions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PollTicks         *prometheus.CounterVec
	PollDuration      *prometheus.HistogramVec
	StaleResults      *prometheus.CounterVec
	Actions           *prometheus.CounterVec
	ActionDuration    *prometheus.HistogramVec
	ActiveCalls       prometheus.Gauge
	IncomingCalls     prometheus.Gauge
	Engaged           prometheus.Gauge
	NotificationsSent *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PollTicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "console_poll_ticks_total",
			Help: "Poll ticks by poller and outcome (ok, error, skipped)",
		}, []string{"poller", "outcome"}),
		PollDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_poll_duration_seconds",
			Help:    "Time taken by one poll round trip",
			Buckets: prometheus.DefBuckets,
		}, []string{"poller"}),
		StaleResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "console_poll_stale_results_total",
			Help: "Poll results discarded because their generation was superseded",
		}, []string{"poller"}),
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "console_actions_total",
			Help: "Operator actions by action and outcome",
		}, []string{"action", "outcome"}),
		ActionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_action_duration_seconds",
			Help:    "Time taken by operator actions including the backend round trip",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		ActiveCalls: f.NewGauge(prometheus.GaugeOpts{
			Name: "console_active_calls",
			Help: "Outbound calls in the last applied snapshot",
		}),
		IncomingCalls: f.NewGauge(prometheus.GaugeOpts{
			Name: "console_incoming_calls",
			Help: "Pending inbound calls in the last applied snapshot",
		}),
		Engaged: f.NewGauge(prometheus.GaugeOpts{
			Name: "console_engaged_call",
			Help: "1 while an inbound call is engaged",
		}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "console_notifications_total",
			Help: "Notifications emitted by severity",
		}, []string{"severity"}),
	}
}

func (m *Metrics) ObservePoll(poller, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.PollTicks.WithLabelValues(poller, outcome).Inc()
	if outcome != "skipped" {
		m.PollDuration.WithLabelValues(poller).Observe(took.Seconds())
	}
}

func (m *Metrics) ObserveStale(poller string) {
	if m == nil {
		return
	}
	m.StaleResults.WithLabelValues(poller).Inc()
}

func (m *Metrics) ObserveAction(action string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Actions.WithLabelValues(action, outcome).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(took.Seconds())
}

func (m *Metrics) SetCallCounts(active, incoming int) {
	if m == nil {
		return
	}
	m.ActiveCalls.Set(float64(active))
	m.IncomingCalls.Set(float64(incoming))
}

func (m *Metrics) SetEngaged(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.Engaged.Set(1)
		return
	}
	m.Engaged.Set(0)
}

func (m *Metrics) ObserveNotification(severity string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(severity).Inc()
}
