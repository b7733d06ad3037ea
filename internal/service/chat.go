package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/aiclient"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/model"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
)

// ErrSessionNotFound is returned when a chat session id does not exist on
// the plant database.
var ErrSessionNotFound = errors.New("chat session not found")

// AIError describes a degraded AI response surfaced to the client instead of
// a hard failure.
type AIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageResult is the outcome of sending one chat message.
type MessageResult struct {
	SessionID string          `json:"session_id"`
	Message   string          `json:"message"`
	Response  json.RawMessage `json:"response"`
	Timestamp time.Time       `json:"timestamp"`
	Error     *AIError        `json:"error,omitempty"`
}

// SessionInfo summarizes one chat session.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChatService orchestrates chat sessions: persistence on the plant database
// and calls to the external AI agent.
type ChatService struct {
	scope     *plantdb.Scope
	ai        *aiclient.Client
	artifacts *ArtifactService
	log       *zap.Logger
}

// NewChatService creates the chat service.
func NewChatService(scope *plantdb.Scope, ai *aiclient.Client, artifacts *ArtifactService, log *zap.Logger) *ChatService {
	return &ChatService{scope: scope, ai: ai, artifacts: artifacts, log: log}
}

// CreateSession creates a new chat session on the plant database and returns
// its id.
func (s *ChatService) CreateSession(ctx context.Context, plantID uint) (string, error) {
	sessionID := uuid.New().String()

	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		if err := tx.Create(&model.ChatSession{SessionID: sessionID}).Error; err != nil {
			return fmt.Errorf("create chat session: %w", err)
		}
		return tx.Commit().Error
	})
	if err != nil {
		return "", err
	}

	s.log.Info("chat session created",
		zap.Uint("plant_id", plantID),
		zap.String("session_id", sessionID))
	return sessionID, nil
}

// History returns the messages of a session, newest first.
func (s *ChatService) History(ctx context.Context, plantID uint, sessionID string, limit, offset int) ([]model.ChatMessage, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var messages []model.ChatMessage
	var total int64
	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		if err := tx.Model(&model.ChatMessage{}).
			Where("session_id = ?", sessionID).
			Count(&total).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).
			Order("created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&messages).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// SendMessage forwards the user message to the AI agent and persists the
// exchange. When the AI service is unavailable the exchange is still
// recorded and a degraded result with an error entry is returned instead of
// failing the request.
func (s *ChatService) SendMessage(ctx context.Context, plantID, userID uint, sessionID, message string) (*MessageResult, error) {
	start := time.Now()
	aiResponse, aiErr := s.ai.Chat(ctx, plantID, aiclient.ChatRequest{
		InputMessage: message,
		SessionID:    sessionID,
	})
	elapsed := time.Since(start).Seconds()

	msg := model.ChatMessage{
		SessionID:     sessionID,
		Message:       message,
		ExecutionTime: elapsed,
	}
	if aiErr != nil {
		s.log.Error("AI agent unavailable",
			zap.Uint("plant_id", plantID),
			zap.String("session_id", sessionID),
			zap.Error(aiErr))
		msg.Query = "ai service unavailable"
		msg.Response = "[]"
		msg.ExecutionTime = 0
	} else {
		msg.Response = string(aiResponse)
	}

	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		var session model.ChatSession
		err := tx.Where("session_id = ?", sessionID).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("chat session missing, creating it",
				zap.String("session_id", sessionID))
			session = model.ChatSession{SessionID: sessionID}
			if err := tx.Create(&session).Error; err != nil {
				return fmt.Errorf("create chat session: %w", err)
			}
		} else if err != nil {
			return err
		} else {
			if err := tx.Model(&session).Update("updated_at", time.Now()).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("store chat message: %w", err)
		}

		if aiErr == nil && s.artifacts != nil {
			// Best effort: a failed extraction never fails the message.
			if _, err := s.artifacts.FromAIResponse(tx, sessionID, userID, aiResponse, &msg.ID); err != nil {
				s.log.Warn("artifact extraction failed",
					zap.String("session_id", sessionID),
					zap.Error(err))
			}
		}

		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}

	result := &MessageResult{
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	if aiErr != nil {
		result.Response = json.RawMessage("[]")
		result.Error = &AIError{
			Type:    "ai_service_unavailable",
			Message: "The AI service is temporarily unavailable. Please try again later.",
		}
		return result, nil
	}
	result.Response = aiResponse
	return result, nil
}

// SessionInfo returns metadata for one session.
func (s *ChatService) SessionInfo(ctx context.Context, plantID uint, sessionID string) (*SessionInfo, error) {
	var info SessionInfo
	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		var session model.ChatSession
		if err := tx.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
			}
			return err
		}
		info = SessionInfo{
			SessionID: session.SessionID,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		}
		return tx.Model(&model.ChatMessage{}).
			Where("session_id = ?", sessionID).
			Count(&info.MessageCount).Error
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}
