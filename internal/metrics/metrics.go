package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mixelka/mailtriage/pkg/models"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EmailsProcessed    *prometheus.CounterVec
	EmailFailures      *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	DegradedFeatures   prometheus.Counter
	AlertsSent         *prometheus.CounterVec
	ReportsWritten     *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		EmailsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_emails_processed_total",
				Help: "Emails classified, by urgency (count)",
			},
			[]string{"urgency"},
		),
		EmailFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_email_failures_total",
				Help: "Emails excluded from results, by stage (count)",
			},
			[]string{"stage"},
		),
		ProcessingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailtriage_processing_duration_ms",
				Help:    "Per-email pipeline duration in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
		),
		DegradedFeatures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailtriage_degraded_features_total",
				Help: "Emails classified with degraded NLP features (count)",
			},
		),
		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_alerts_total",
				Help: "Telegram alerts, by status (count)",
			},
			[]string{"status"},
		),
		ReportsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtriage_reports_total",
				Help: "Threat reports written, by status (count)",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EmailsProcessed,
		m.EmailFailures,
		m.ProcessingDuration,
		m.DegradedFeatures,
		m.AlertsSent,
		m.ReportsWritten,
	)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEmail counts a classified email
func (m *Metrics) RecordEmail(urgency models.Urgency, duration time.Duration, degraded bool) {
	if m == nil {
		return
	}
	m.EmailsProcessed.WithLabelValues(string(urgency)).Inc()
	m.ProcessingDuration.Observe(float64(duration.Milliseconds()))
	if degraded {
		m.DegradedFeatures.Inc()
	}
}

// RecordFailure counts an email dropped at stage
func (m *Metrics) RecordFailure(stage string) {
	if m == nil {
		return
	}
	m.EmailFailures.WithLabelValues(stage).Inc()
}

// RecordAlert counts a notification attempt
func (m *Metrics) RecordAlert(status string) {
	if m == nil {
		return
	}
	m.AlertsSent.WithLabelValues(status).Inc()
}

// RecordReport counts a report attempt
func (m *Metrics) RecordReport(status string) {
	if m == nil {
		return
	}
	m.ReportsWritten.WithLabelValues(status).Inc()
}
