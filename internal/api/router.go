package api

import (
	"collection-route-service/internal/api/handlers"
	"collection-route-service/internal/platform/metrics"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(planner handlers.Planner) http.Handler {
	mux := http.NewServeMux()

	planHandler := &handlers.PlanHandler{Planner: planner}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("POST /plans", planHandler.Create)
	mux.HandleFunc("GET /plans/{id}", planHandler.Get)
	mux.HandleFunc("POST /plans/{id}/reoptimize", planHandler.Reoptimize)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return requestIDMiddleware(loggingMiddleware(mux))
}
