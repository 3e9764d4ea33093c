// Package observability holds the Prometheus instruments of the service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ExtractionCalls    *prometheus.CounterVec
	ExtractionAttempts prometheus.Histogram
	ExtractionLatency  prometheus.Histogram
	TasksExtracted     prometheus.Counter
	Resolutions        *prometheus.CounterVec
	LedgerErrors       *prometheus.CounterVec
	CapacityDowngrades prometheus.Counter
	PassDuration       prometheus.Histogram
	ChatFailures       prometheus.Counter
	MessagesIngested   prometheus.Counter
}

// NewMetrics registers the instruments on a fresh registry under namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ExtractionCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_calls_total",
			Help:      "Extraction calls by outcome.",
		}, []string{"outcome"}),
		ExtractionAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_attempts",
			Help:      "Model call attempts per extraction.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		ExtractionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_latency_seconds",
			Help:      "Wall time of an extraction including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		TasksExtracted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_extracted_total",
			Help:      "Task strings returned by the model.",
		}),
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_resolutions_total",
			Help:      "Pending prioritization outcomes by kind.",
		}, []string{"kind"}),
		LedgerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_errors_total",
			Help:      "Ledger failures by operation.",
		}, []string{"operation"}),
		CapacityDowngrades: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_downgrades_total",
			Help:      "Important rows downgraded to medium.",
		}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_pass_duration_seconds",
			Help:      "Duration of a scheduled pass over all chats.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ChatFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_chat_failures_total",
			Help:      "Chats whose pipeline failed during a pass.",
		}),
		MessagesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_ingested_total",
			Help:      "Raw chat messages stored.",
		}),
	}
}

// ObserveExtraction records one extraction call.
func (m *Metrics) ObserveExtraction(outcome string, attempts, tasks int, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionCalls.WithLabelValues(outcome).Inc()
	m.ExtractionAttempts.Observe(float64(attempts))
	m.ExtractionLatency.Observe(d.Seconds())
	m.TasksExtracted.Add(float64(tasks))
}

// ObserveResolution counts a pending prioritization outcome.
func (m *Metrics) ObserveResolution(kind string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(kind).Inc()
}

// ObserveLedgerError counts a failed ledger operation.
func (m *Metrics) ObserveLedgerError(operation string) {
	if m == nil {
		return
	}
	m.LedgerErrors.WithLabelValues(operation).Inc()
}

// ObserveDowngrade counts an important row moved to medium.
func (m *Metrics) ObserveDowngrade() {
	if m == nil {
		return
	}
	m.CapacityDowngrades.Inc()
}

// ObservePass records a finished pass and how many chats failed in it.
func (m *Metrics) ObservePass(d time.Duration, failures int) {
	if m == nil {
		return
	}
	m.PassDuration.Observe(d.Seconds())
	m.ChatFailures.Add(float64(failures))
}

// ObserveIngested counts a stored raw message.
func (m *Metrics) ObserveIngested() {
	if m == nil {
		return
	}
	m.MessagesIngested.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
