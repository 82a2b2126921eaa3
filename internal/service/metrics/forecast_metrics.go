package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ForecastLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pricesight",
			Subsystem: "forecast",
			Name:      "latency_seconds",
			Help:      "End-to-end latency of forecast requests",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"transport"},
	)

	ForecastRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricesight",
			Subsystem: "forecast",
			Name:      "requests_total",
			Help:      "Forecast requests by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)
)

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ForecastLatency, ForecastRequests)
	})
}
