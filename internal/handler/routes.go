package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reynecat/petclinic-edge/internal/config"
	"github.com/reynecat/petclinic-edge/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance. The
// catch-all proxy route is registered last so the edge's own endpoints take
// precedence.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, health *HealthHandler) {
	// The edge's own routes answer every method locally; a POST or HEAD to
	// /health must not reach the WAS.
	e.Any("/health", health.Health)
	e.Any("/edge/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(
			promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		))
	}

	e.Any("/*", proxy.Handle)
}
