// Package httptransport composes the HTTP surface: shared middleware, public
// auth endpoints, operational endpoints and the authenticated record routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinic/internal/platform/metrics"
	"clinic/pkg/platform/httputil"
	"clinic/pkg/platform/middleware/auth"
	"clinic/pkg/platform/middleware/metadata"
	request "clinic/pkg/platform/middleware/request"
	"clinic/pkg/platform/middleware/requesttime"
)

// RouteRegistrar mounts a handler's routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the router needs.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Validator      auth.JWTValidator
	Auth           RouteRegistrar
	Records        RouteRegistrar
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
}

// NewRouter wires every endpoint. Record routes sit behind RequireAuth so an
// unauthenticated request never reaches the record service.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(deps.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(deps.Logger, deps.Metrics))
	if deps.RequestTimeout > 0 {
		r.Use(request.Timeout(deps.RequestTimeout))
	}

	r.Get("/healthz", healthHandler(deps.HealthChecks, deps.Logger))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	deps.Auth.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, deps.Logger))
		deps.Records.Register(r)
	})
	return r
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"request_id", request.GetRequestID(ctx),
					"dependency", name,
					"error", err,
				)
				failed[name] = "unavailable"
			}
		}
		if len(failed) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":       "degraded",
				"dependencies": failed,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
