package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/handler/httperr"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/service"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/logger"
)

// ArtifactHandler serves the artifact CRUD endpoints.
type ArtifactHandler struct {
	artifacts *service.ArtifactService
}

// NewArtifactHandler creates the artifact handler.
func NewArtifactHandler(artifacts *service.ArtifactService) *ArtifactHandler {
	return &ArtifactHandler{artifacts: artifacts}
}

func (h *ArtifactHandler) scope(c echo.Context) (plantdb.RequestContext, error) {
	rc, err := plantFrom(c)
	if err != nil {
		return rc, err
	}
	if !rc.HasUser {
		return rc, plantdb.ErrMissingUserID
	}
	return rc, nil
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func artifactID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("artifact_id"), 10, 32)
	if err != nil {
		return 0, errors.New("artifact_id must be numeric")
	}
	return uint(id), nil
}

// Create stores a new artifact for the caller.
func (h *ArtifactHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)

	rc, err := h.scope(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	var req service.ArtifactCreate
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.SessionID == "" || req.Title == "" || req.Content == "" {
		return fail(c, http.StatusBadRequest, "session_id, title and content are required")
	}

	artifact, err := h.artifacts.Create(c.Request().Context(), rc.PlantID, rc.UserID, req)
	if err != nil {
		log.Error("failed to create artifact", zap.Error(err))
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusCreated, artifact, "Artifact created successfully")
}

// Get returns one artifact owned by the caller.
func (h *ArtifactHandler) Get(c echo.Context) error {
	rc, err := h.scope(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	id, err := artifactID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	artifact, err := h.artifacts.Get(c.Request().Context(), rc.PlantID, rc.UserID, id)
	if err != nil {
		if errors.Is(err, service.ErrArtifactNotFound) {
			return fail(c, http.StatusNotFound, err.Error())
		}
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, artifact, "Artifact fetched successfully")
}

// ListBySession returns the artifacts of one chat session.
func (h *ArtifactHandler) ListBySession(c echo.Context) error {
	rc, err := h.scope(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	limit, offset := pagination(c)
	artifacts, total, err := h.artifacts.ListBySession(c.Request().Context(), rc.PlantID, rc.UserID, c.Param("session_id"), limit, offset)
	if err != nil {
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, echo.Map{
		"artifacts": artifacts,
		"total":     total,
	}, "Artifacts fetched successfully")
}

// ListByUser returns all of the caller's artifacts.
func (h *ArtifactHandler) ListByUser(c echo.Context) error {
	rc, err := h.scope(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	limit, offset := pagination(c)

	var (
		artifacts []any
		total     int64
	)
	if artifactType := c.QueryParam("artifact_type"); artifactType != "" {
		typed, count, err := h.artifacts.ListByType(c.Request().Context(), rc.PlantID, rc.UserID, artifactType, limit, offset)
		if err != nil {
			return httperr.Respond(c, err)
		}
		for _, a := range typed {
			artifacts = append(artifacts, a)
		}
		total = count
	} else {
		all, count, err := h.artifacts.ListByUser(c.Request().Context(), rc.PlantID, rc.UserID, limit, offset)
		if err != nil {
			return httperr.Respond(c, err)
		}
		for _, a := range all {
			artifacts = append(artifacts, a)
		}
		total = count
	}

	return success(c, http.StatusOK, echo.Map{
		"artifacts": artifacts,
		"total":     total,
	}, "Artifacts fetched successfully")
}

// Search matches the caller's artifacts by title or content.
func (h *ArtifactHandler) Search(c echo.Context) error {
	rc, err := h.scope(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	term := c.QueryParam("q")
	if term == "" {
		return fail(c, http.StatusBadRequest, "q is required")
	}

	limit, offset := pagination(c)
	artifacts, total, err := h.artifacts.Search(c.Request().Context(), rc.PlantID, rc.UserID, term, limit, offset)
	if err != nil {
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, echo.Map{
		"artifacts": artifacts,
		"total":     total,
	}, "Artifacts fetched successfully")
}

// Update modifies an artifact owned by the caller.
func (h *ArtifactHandler) Update(c echo.Context) error {
	log := logger.FromEcho(c)

	rc, err := h.scope(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	id, err := artifactID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	var req service.ArtifactUpdate
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}

	artifact, err := h.artifacts.Update(c.Request().Context(), rc.PlantID, rc.UserID, id, req)
	if err != nil {
		if errors.Is(err, service.ErrArtifactNotFound) {
			return fail(c, http.StatusNotFound, err.Error())
		}
		log.Error("failed to update artifact", zap.Error(err))
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, artifact, "Artifact updated successfully")
}

// Delete removes an artifact owned by the caller.
func (h *ArtifactHandler) Delete(c echo.Context) error {
	rc, err := h.scope(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	id, err := artifactID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}

	if err := h.artifacts.Delete(c.Request().Context(), rc.PlantID, rc.UserID, id); err != nil {
		if errors.Is(err, service.ErrArtifactNotFound) {
			return fail(c, http.StatusNotFound, err.Error())
		}
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, nil, "Artifact deleted successfully")
}
