// Package httpapi assembles the public HTTP surface: the translation
// endpoint behind the security-header and client-metadata middleware,
// plus health and metrics endpoints that bypass neither.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediglot/internal/audit"
	"mediglot/internal/platform/metrics"
	"mediglot/internal/policy"
	"mediglot/internal/translate/handler"
	"mediglot/pkg/platform/httputil"
	"mediglot/pkg/platform/middleware/metadata"
)

// Deps carries everything the router needs. All fields are required.
type Deps struct {
	Service  handler.Service
	AuditLog *audit.Log
	Policy   policy.Policy
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// NewRouter wires the full middleware chain and all endpoints.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(policy.Middleware(d.Policy))
	r.Use(metadata.ClientMetadata)
	r.Use(metrics.Middleware(d.Metrics))

	handler.New(d.Service, d.AuditLog, d.Logger).Register(r)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
