package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stageLatency *prometheus.HistogramVec
	errorsTotal  *prometheus.CounterVec
	cacheTotal   *prometheus.CounterVec
	ingested     *prometheus.CounterVec
}

// New registers the forecast metrics on reg. A nil reg means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		stageLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pricesight_stage_duration_seconds",
				Help:    "Duration of forecast pipeline stages in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricesight_forecast_errors_total",
				Help: "Forecast failures by error kind",
			},
			[]string{"kind"},
		),
		cacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricesight_history_cache_total",
				Help: "History cache lookups by result",
			},
			[]string{"result"},
		),
		ingested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pricesight_bars_ingested_total",
				Help: "Daily bars written to the history store",
			},
			[]string{"symbol"},
		),
	}
}

// RecordStage records how long a pipeline stage took.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordError records a failure of the given kind.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordCache records a cache hit, miss or error.
func (r *Recorder) RecordCache(result string) {
	r.cacheTotal.WithLabelValues(result).Inc()
}

// RecordIngested records n bars stored for symbol.
func (r *Recorder) RecordIngested(symbol string, n int) {
	r.ingested.WithLabelValues(symbol).Add(float64(n))
}
