package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the service's HTTP routes on the router.
func RegisterRoutes(r chi.Router, deployment *DeploymentHandler, health *HealthHandler) {
	r.Post("/deploy-token", deployment.Deploy)
	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())
}
