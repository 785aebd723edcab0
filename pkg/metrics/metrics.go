package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ⭐ SSOT: Prometheus 메트릭 정의는 여기서만

const namespace = "hedgefund"

var (
	analysisRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_runs_total",
		Help:      "Analysis program invocations by kind and outcome.",
	}, []string{"kind", "outcome"})

	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Wall time of analysis program invocations.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"kind"})

	analysisSkippedLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analysis_skipped_lines_total",
		Help:      "Output lines skipped while extracting the result.",
	}, []string{"reason"})

	analysisInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "analysis_in_flight",
		Help:      "Analysis subprocesses currently running.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route template and status.",
	}, []string{"method", "route", "status"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	revaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "portfolio_revaluations_total",
		Help:      "Portfolio revaluation job runs by outcome.",
	}, []string{"outcome"})
)

// ObserveAnalysis records one finished invocation.
func ObserveAnalysis(kind, outcome string, elapsed time.Duration) {
	analysisRuns.WithLabelValues(kind, outcome).Inc()
	analysisDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// AnalysisStarted increments the in-flight gauge and returns the matching decrement.
func AnalysisStarted() func() {
	analysisInFlight.Inc()
	return analysisInFlight.Dec
}

// SkippedLines adds n skipped output lines for reason.
func SkippedLines(reason string, n int) {
	if n <= 0 {
		return
	}
	analysisSkippedLines.WithLabelValues(reason).Add(float64(n))
}

// ObserveHTTP records a served request.
func ObserveHTTP(method, route string, status int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// RateLimited records a rejected request.
func RateLimited() {
	rateLimited.Inc()
}

// Revaluation records a revaluation job run.
func Revaluation(outcome string) {
	revaluations.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
