package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/handler/httperr"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/service"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/logger"
)

// QueryHandler serves the analytical query endpoints.
type QueryHandler struct {
	query *service.QueryService
}

// NewQueryHandler creates the query handler.
func NewQueryHandler(query *service.QueryService) *QueryHandler {
	return &QueryHandler{query: query}
}

type queryRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

// Transform returns the standardized form of a query without running it.
func (h *QueryHandler) Transform(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Query == "" {
		return fail(c, http.StatusBadRequest, "query is required")
	}

	transformed := h.query.Transform(req.Query, nil)
	return success(c, http.StatusOK, echo.Map{
		"original_query":    req.Query,
		"transformed_query": transformed,
	}, "Query transformed successfully")
}

// Execute runs a query against the plant's relational database.
func (h *QueryHandler) Execute(c echo.Context) error {
	log := logger.FromEcho(c)

	rc, err := plantFrom(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Query == "" {
		return fail(c, http.StatusBadRequest, "query is required")
	}

	result, err := h.query.Execute(c.Request().Context(), rc.PlantID, req.Query, req.Params)
	if err != nil {
		log.Error("query execution failed",
			zap.Uint("plant_id", rc.PlantID),
			zap.Error(err))
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, result, "Query executed successfully")
}

// Analyze returns structural information about a query.
func (h *QueryHandler) Analyze(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Query == "" {
		return fail(c, http.StatusBadRequest, "query is required")
	}

	return success(c, http.StatusOK, h.query.Analyze(req.Query), "Query analyzed successfully")
}
