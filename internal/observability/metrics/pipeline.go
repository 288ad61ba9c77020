package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	stageDuration   *prometheus.HistogramVec
	stageFailures   *prometheus.CounterVec
	chunksIndexed   prometheus.Counter
	embeddingsTotal prometheus.Counter
	queueLag        prometheus.Histogram
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "document_process_total",
			Help:      "Total processed documents by outcome.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage processing duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Stage failures by stage name.",
		},
		[]string{"service", "stage"},
	)
	chunksIndexed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "chunks_indexed_total",
			Help:      "Total chunks written to the index.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	embeddingsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "embeddings_generated_total",
			Help:      "Total embeddings produced across batches.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "pipeline",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, stageDuration, stageFailures, chunksIndexed, embeddingsTotal, queueLag)

	return &PipelineMetrics{
		registry:        registry,
		service:         service,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		stageDuration:   stageDuration,
		stageFailures:   stageFailures,
		chunksIndexed:   chunksIndexed,
		embeddingsTotal: embeddingsTotal,
		queueLag:        queueLag,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *PipelineMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *PipelineMetrics) FinishDocument(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(m.service, stage).Observe(duration.Seconds())
}

func (m *PipelineMetrics) StageFailed(stage string) {
	m.stageFailures.WithLabelValues(m.service, stage).Inc()
}

func (m *PipelineMetrics) ChunksIndexed(count int) {
	if count > 0 {
		m.chunksIndexed.Add(float64(count))
	}
}

func (m *PipelineMetrics) EmbeddingsGenerated(count int) {
	if count > 0 {
		m.embeddingsTotal.Add(float64(count))
	}
}

func (m *PipelineMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}
