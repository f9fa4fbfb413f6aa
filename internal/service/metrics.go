package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the Prometheus gauges/counters the supervisor and
// pipeline update; registered once at startup and served over
// promhttp.Handler() by cmd/brainbridge.
type Metrics struct {
	MessagesProcessed prometheus.Counter
	MessagesFailed    prometheus.Counter
	ToolCallsTotal    *prometheus.CounterVec
	GenerationLatency prometheus.Histogram
	RestartsTotal     prometheus.Counter
	DedupeStoreSize   prometheus.Gauge
}

// NewMetrics constructs and registers Metrics against reg (pass
// prometheus.DefaultRegisterer for the process-wide default registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brainbridge",
			Name:      "messages_processed_total",
			Help:      "Inbound DM messages the pipeline finished processing.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brainbridge",
			Name:      "messages_failed_total",
			Help:      "Inbound DM messages that failed generation or composition.",
		}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brainbridge",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		GenerationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "brainbridge",
			Name:      "generation_latency_seconds",
			Help:      "Wall-clock time spent in Provider.Generate, including tool rounds.",
			Buckets:   prometheus.DefBuckets,
		}),
		RestartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brainbridge",
			Name:      "supervisor_restarts_total",
			Help:      "Times the Service Supervisor restarted the process after a crash.",
		}),
		DedupeStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brainbridge",
			Name:      "dedupe_store_size",
			Help:      "Current number of event ids tracked by the idempotence store.",
		}),
	}

	reg.MustRegister(
		m.MessagesProcessed,
		m.MessagesFailed,
		m.ToolCallsTotal,
		m.GenerationLatency,
		m.RestartsTotal,
		m.DedupeStoreSize,
	)
	return m
}
