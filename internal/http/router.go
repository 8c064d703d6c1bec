// Package httpapi assembles the registry's HTTP surface: middleware chain,
// identity endpoints, health, and Prometheus metrics.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gsid-registry/internal/identity/handler"
	"gsid-registry/internal/platform/middleware"
	"gsid-registry/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	Identity  *handler.Handler
	Health    http.HandlerFunc
	Validator middleware.JWTValidator
	// APIKeyHash is the bcrypt hash accepted on X-API-Key; empty disables
	// the API key path.
	APIKeyHash string
	Logger     *slog.Logger
}

// NewRouter wires the full endpoint tree. Health and metrics stay outside the
// authenticated group so probes and scrapers need no credentials.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/health", deps.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.APIKeyHash, deps.Logger))
		deps.Identity.Register(r)
	})
	return r
}

// HealthHandler adapts a health probe function to an http.HandlerFunc.
func HealthHandler(probe func(r *http.Request) (status int, body any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, body := probe(r)
		httputil.WriteJSON(w, status, body)
	}
}
