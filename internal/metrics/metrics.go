// Package metrics holds the Prometheus collectors for webwatch.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultRecorded = "recorded"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
	ResultOK       = "ok"
	ResultDropped  = "dropped"
)

// Metrics groups every collector. All methods are safe on a nil receiver,
// so components can run without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	VisitsRecorded  *prometheus.CounterVec
	VisitsBlocked   prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionSeconds  prometheus.Counter
	Summaries       *prometheus.CounterVec
	Backups         *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		VisitsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webwatch_visits_recorded_total",
			Help: "Inbound visits by outcome",
		}, []string{"result"}),

		VisitsBlocked: f.NewCounter(prometheus.CounterOpts{
			Name: "webwatch_visits_blocked_total",
			Help: "Inbound visits rejected by the blocklist",
		}),

		SessionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "webwatch_sessions_closed_total",
			Help: "Viewing sessions closed",
		}),

		SessionSeconds: f.NewCounter(prometheus.CounterOpts{
			Name: "webwatch_session_seconds_total",
			Help: "Seconds added to visits by closed sessions",
		}),

		Summaries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webwatch_summaries_total",
			Help: "Summarizer calls by outcome",
		}, []string{"result"}),

		Backups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webwatch_backups_total",
			Help: "Snapshot runs by outcome",
		}, []string{"result"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webwatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route", "status"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// VisitRecorded counts one inbound visit with the given result.
func (m *Metrics) VisitRecorded(result string) {
	if m == nil {
		return
	}
	m.VisitsRecorded.WithLabelValues(result).Inc()
}

// VisitBlocked counts one blocked visit.
func (m *Metrics) VisitBlocked() {
	if m == nil {
		return
	}
	m.VisitsBlocked.Inc()
}

// SessionClosed counts a closed session and its seconds.
func (m *Metrics) SessionClosed(_ string, seconds int64) {
	if m == nil {
		return
	}
	m.SessionsClosed.Inc()
	m.SessionSeconds.Add(float64(seconds))
}

// Summary counts one summarizer outcome.
func (m *Metrics) Summary(result string) {
	if m == nil {
		return
	}
	m.Summaries.WithLabelValues(result).Inc()
}

// Backup counts one snapshot outcome.
func (m *Metrics) Backup(result string) {
	if m == nil {
		return
	}
	m.Backups.WithLabelValues(result).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
