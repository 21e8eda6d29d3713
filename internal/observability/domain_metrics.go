package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sourcesLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litelens_sources_loaded_total",
			Help: "Total number of source load attempts by origin and outcome.",
		},
		[]string{"origin", "status"},
	)
	sourceLoadDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "litelens_source_load_duration_seconds",
			Help:    "Time from source registration to handle availability.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	openHandles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "litelens_open_handles",
			Help: "Current number of open database handles.",
		},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litelens_query_executions_total",
			Help: "Total number of SQL executions against loaded handles by engine.",
		},
		[]string{"engine"},
	)
	queryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litelens_query_failures_total",
			Help: "Total number of SQL executions that failed and were reported as empty results.",
		},
		[]string{"engine"},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "litelens_query_duration_seconds",
			Help:    "SQL execution latency against loaded handles.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"engine"},
	)
)

func init() {
	prometheus.MustRegister(
		sourcesLoadedTotal,
		sourceLoadDurationSeconds,
		openHandles,
		queryExecutionsTotal,
		queryFailuresTotal,
		queryDurationSeconds,
	)
}

func ObserveSourceLoad(origin string, err error, elapsed time.Duration) {
	status := "ready"
	if err != nil {
		status = "error"
	}
	sourcesLoadedTotal.WithLabelValues(origin, status).Inc()
	if err == nil {
		sourceLoadDurationSeconds.Observe(elapsed.Seconds())
	}
}

func HandleOpened() {
	openHandles.Inc()
}

func HandleClosed() {
	openHandles.Dec()
}

func ObserveQuery(engine string, err error, elapsed time.Duration) {
	if engine == "" {
		engine = "unknown"
	}
	queryExecutionsTotal.WithLabelValues(engine).Inc()
	if err != nil {
		queryFailuresTotal.WithLabelValues(engine).Inc()
	}
	queryDurationSeconds.WithLabelValues(engine).Observe(elapsed.Seconds())
}
