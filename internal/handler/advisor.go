package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/handler/httperr"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/service"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/logger"
)

// AdvisorHandler serves the recommendation endpoints.
type AdvisorHandler struct {
	advisor *service.AdvisorService
}

// NewAdvisorHandler creates the advisor handler.
func NewAdvisorHandler(advisor *service.AdvisorService) *AdvisorHandler {
	return &AdvisorHandler{advisor: advisor}
}

// BuildRequest assembles the calc-engine request for the given tags without
// calling the AI endpoint. Useful for inspecting what the advisor would send.
func (h *AdvisorHandler) BuildRequest(c echo.Context) error {
	log := logger.FromEcho(c)

	rc, err := plantFrom(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	var req struct {
		NameIDs []string `json:"name_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if len(req.NameIDs) == 0 {
		return fail(c, http.StatusBadRequest, "name_ids is required")
	}

	request, err := h.advisor.BuildRequest(c.Request().Context(), rc.PlantID, req.NameIDs)
	if err != nil {
		log.Error("failed to build advisor request",
			zap.Uint("plant_id", rc.PlantID),
			zap.Error(err))
		return httperr.Respond(c, err)
	}

	dependent, independent := service.SplitVariables(request)
	return success(c, http.StatusOK, echo.Map{
		"request":               request,
		"dependent_variables":   dependent,
		"independent_variables": independent,
	}, "Advisor request built successfully")
}

// Advise builds the calc-engine request and forwards it to the AI endpoint.
func (h *AdvisorHandler) Advise(c echo.Context) error {
	log := logger.FromEcho(c)

	rc, err := plantFrom(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	var req struct {
		Targets map[string]float64 `json:"targets"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if len(req.Targets) == 0 {
		return fail(c, http.StatusBadRequest, "targets is required")
	}

	response, err := h.advisor.Advise(c.Request().Context(), rc.PlantID, req.Targets)
	if err != nil {
		log.Error("advisor call failed",
			zap.Uint("plant_id", rc.PlantID),
			zap.Error(err))
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, response, "Recommendations fetched successfully")
}
