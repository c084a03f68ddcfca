package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vivianchibueze694-alt/bridegeescrow/gateway/middleware"
)

// RouterConfig bundles the edge settings for the HTTP surface.
type RouterConfig struct {
	RateLimit middleware.RateLimit
}

// NewRouter assembles the gateway router: request ids, edge rate limiting,
// the escrow routes, health and metrics endpoints.
func NewRouter(er *EscrowRoutes, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit, logger)
		r.Use(limiter.Middleware)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	er.Mount(r)
	return r
}
