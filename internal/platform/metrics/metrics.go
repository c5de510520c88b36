package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// SolveTotal counts solves by engine and resulting status.
	SolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_solves_total", Help: "Routing solves by engine and status."},
		[]string{"engine", "status"},
	)
	SolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "route_solve_duration_seconds", Help: "Wall time of routing solves.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300}},
		[]string{"engine"},
	)

	// MatrixLookups counts cache hits and misses of the road-network matrix.
	MatrixLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "matrix_cache_lookups_total", Help: "Matrix cache lookups by result."},
		[]string{"result"},
	)
	ProviderFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "matrix_provider_fallbacks_total", Help: "Matrix rows computed with the fallback mode after provider failure."},
		[]string{"provider"},
	)

	Reoptimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reoptimizations_total", Help: "Reoptimization requests by outcome."},
		[]string{"outcome"},
	)
)

// RegisterDefault registers the collectors exactly once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SolveTotal)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(MatrixLookups)
		Registry.MustRegister(ProviderFallbacks)
		Registry.MustRegister(Reoptimizations)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
