package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/handler/httperr"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/middleware"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/service"
	"github.com/momo-ra/ai-agent-microservices-v1/pkg/logger"
)

// ChatHandler serves the chat session endpoints.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates the chat handler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func plantFrom(c echo.Context) (plantdb.RequestContext, error) {
	rc, ok := middleware.PlantFromEcho(c)
	if !ok {
		return plantdb.RequestContext{}, plantdb.ErrMissingPlantID
	}
	return rc, nil
}

// CreateSession creates a new chat session.
func (h *ChatHandler) CreateSession(c echo.Context) error {
	log := logger.FromEcho(c)

	rc, err := plantFrom(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	sessionID, err := h.chat.CreateSession(c.Request().Context(), rc.PlantID)
	if err != nil {
		log.Error("failed to create chat session", zap.Error(err))
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusCreated, echo.Map{"session_id": sessionID}, "Session created")
}

// GetHistory returns the chat history for a session.
func (h *ChatHandler) GetHistory(c echo.Context) error {
	log := logger.FromEcho(c)

	rc, err := plantFrom(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	messages, total, err := h.chat.History(c.Request().Context(), rc.PlantID, c.Param("session_id"), limit, offset)
	if err != nil {
		log.Error("failed to fetch chat history", zap.Error(err))
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, echo.Map{
		"messages": messages,
		"total":    total,
	}, "History fetched successfully")
}

// SendMessage forwards a message to the AI agent and returns its response.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	log := logger.FromEcho(c)

	rc, err := plantFrom(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request")
	}
	if req.Message == "" {
		return fail(c, http.StatusBadRequest, "message is required")
	}

	var userID uint
	if claims, ok := middleware.UserFromEcho(c); ok {
		userID = claims.UserID
	} else if rc.HasUser {
		userID = rc.UserID
	}

	result, err := h.chat.SendMessage(c.Request().Context(), rc.PlantID, userID, c.Param("session_id"), req.Message)
	if err != nil {
		log.Error("failed to send chat message", zap.Error(err))
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, result, "Message sent successfully")
}

// GetSessionInfo returns metadata about a chat session.
func (h *ChatHandler) GetSessionInfo(c echo.Context) error {
	log := logger.FromEcho(c)

	rc, err := plantFrom(c)
	if err != nil {
		return httperr.Respond(c, err)
	}

	info, err := h.chat.SessionInfo(c.Request().Context(), rc.PlantID, c.Param("session_id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return fail(c, http.StatusNotFound, err.Error())
		}
		log.Error("failed to fetch session info", zap.Error(err))
		return httperr.Respond(c, err)
	}

	return success(c, http.StatusOK, info, "Session info fetched successfully")
}
