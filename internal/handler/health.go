package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/aiclient"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/logger"
)

// HealthHandler serves liveness, readiness and diagnostics endpoints.
type HealthHandler struct {
	lifecycle *plantdb.Lifecycle
	ai        *aiclient.Client
	service   string
	version   string
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(lifecycle *plantdb.Lifecycle, ai *aiclient.Client, serviceName, version string) *HealthHandler {
	return &HealthHandler{
		lifecycle: lifecycle,
		ai:        ai,
		service:   serviceName,
		version:   version,
	}
}

// Live is a fast liveness probe. It answers without touching any backend.
func (h *HealthHandler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "UP",
		"service": h.service,
		"version": h.version,
	})
}

// Ready checks the registry and every active plant's connections. Degraded
// plants are reported per plant; the endpoint answers 503 only when the
// registry itself is unreachable.
func (h *HealthHandler) Ready(c echo.Context) error {
	report := h.lifecycle.CheckHealth(c.Request().Context())

	status := http.StatusOK
	overall := "UP"
	if !report.Registry {
		status = http.StatusServiceUnavailable
		overall = "DOWN"
	}

	return c.JSON(status, echo.Map{
		"status":  overall,
		"service": h.service,
		"version": h.version,
		"report":  report,
	})
}

// AIConnection probes the configured AI endpoint and reports reachability.
func (h *HealthHandler) AIConnection(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		URL string `json:"url"`
	}
	// Body is optional; an empty body probes the configured endpoint.
	_ = c.Bind(&req)

	if err := h.ai.CheckConnection(c.Request().Context(), req.URL); err != nil {
		log.Warn("AI connection check failed")
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "fail",
			"message": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"message": "AI agent reachable",
	})
}
