package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "maize"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// pipeline, collector and prediction service.
type Metrics struct {
	// Pipeline metrics.
	PipelineRuns    *prometheus.CounterVec // labels: status={success,failure}
	PipelineRunning prometheus.Gauge
	StageDuration   *prometheus.HistogramVec // labels: stage
	RowsRead        *prometheus.CounterVec   // labels: source
	RowsDropped     *prometheus.CounterVec   // labels: source, reason
	MasterRows      prometheus.Gauge

	// Collector metrics.
	CollectorRequests *prometheus.CounterVec // labels: outcome={success,error}
	CollectorDuration prometheus.Histogram

	// Training metrics.
	TrainingRuns     *prometheus.CounterVec // labels: status={success,failure}
	TrainingDuration prometheus.Histogram

	// Prediction metrics.
	PredictionRequests *prometheus.CounterVec // labels: outcome={success,invalid,not_ready,error}
	PredictionDuration prometheus.Histogram
	PredictionCache    *prometheus.CounterVec // labels: result={hit,miss}
	ModelLoaded        prometheus.Gauge

	EventsPublished *prometheus.CounterVec // labels: type
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Master dataset builds by final status.",
		}, []string{"status"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_rows_read_total",
			Help:      "Rows read per source.",
		}, []string{"source"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_rows_dropped_total",
			Help:      "Rows dropped per source and reason.",
		}, []string{"source", "reason"}),
		MasterRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "master_rows",
			Help:      "Rows in the last master dataset written.",
		}),
		CollectorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_requests_total",
			Help:      "Open-Meteo archive requests by outcome.",
		}, []string{"outcome"}),
		CollectorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collector_request_duration_seconds",
			Help:      "Open-Meteo archive request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		TrainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Model training runs by final status.",
		}, []string{"status"}),
		TrainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Wall time of a training run.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		}),
		PredictionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_requests_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time to compute a single prediction.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		PredictionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_total",
			Help:      "Prediction cache lookups by result.",
		}, []string{"result"}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when a trained model is loaded, 0 otherwise.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Pipeline events written to Kafka by type.",
		}, []string{"type"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRuns,
		m.PipelineRunning,
		m.StageDuration,
		m.RowsRead,
		m.RowsDropped,
		m.MasterRows,
		m.CollectorRequests,
		m.CollectorDuration,
		m.TrainingRuns,
		m.TrainingDuration,
		m.PredictionRequests,
		m.PredictionDuration,
		m.PredictionCache,
		m.ModelLoaded,
		m.EventsPublished,
	}
}
