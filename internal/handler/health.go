package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reynecat/petclinic-edge/internal/config"
	"github.com/reynecat/petclinic-edge/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves the edge's own health and status endpoints. These are
// answered locally and never contact the WAS.
type HealthHandler struct {
	cfg     *config.Config
	svc     *service.ProxyService
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, svc *service.ProxyService, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, svc: svc, version: v}
}

// Health returns the fixed liveness response probed by the orchestrator.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "healthy")
}

// Status returns edge status information, including cache occupancy.
func (h *HealthHandler) Status(c echo.Context) error {
	entries, evictions := h.svc.CacheStats()
	return c.JSON(http.StatusOK, map[string]any{
		"status":             "ok",
		"version":            string(h.version),
		"upstream_endpoints": h.cfg.Upstream.Endpoints,
		"cache_enabled":      !h.cfg.Cache.Disabled,
		"cache_entries":      entries,
		"cache_evictions":    evictions,
	})
}
