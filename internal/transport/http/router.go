// Package httptransport assembles the full HTTP surface: the fraud check
// endpoint, the rule administration API, and the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	detectionhandler "fraudwatch/internal/detection/handler"
	"fraudwatch/internal/platform/metrics"
	"fraudwatch/internal/platform/middleware"
	rulehandler "fraudwatch/internal/rule/handler"
	"fraudwatch/pkg/platform/httputil"
)

// HealthChecker reports the health of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Rules     *rulehandler.Handler
	Detection *detectionhandler.Handler
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// Health checks run on /healthz, keyed by dependency name. Nil values
	// are skipped so optional backends need no special casing.
	Health map[string]HealthChecker
}

// NewRouter wires all endpoints with the shared middleware stack.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics, "all"))

	deps.Detection.Register(r)
	deps.Rules.Register(r)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(deps.Health))

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
