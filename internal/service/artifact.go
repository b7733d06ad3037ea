package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/momo-ra/ai-agent-microservices-v1/internal/model"
	"github.com/momo-ra/ai-agent-microservices-v1/internal/plantdb"
)

// ErrArtifactNotFound is returned when an artifact id does not exist on the
// plant database or belongs to another user.
var ErrArtifactNotFound = errors.New("artifact not found")

// aiResponse is the best-effort view of an opaque AI response used by the
// extraction heuristics. Unknown fields are ignored.
type aiResponse struct {
	Answer       string `json:"answer"`
	AnswerType   string `json:"answer_type"`
	PlotType     string `json:"plot_type"`
	QuestionType string `json:"question_type"`
	Data         []struct {
		Name string           `json:"name"`
		Data []map[string]any `json:"data"`
	} `json:"data"`
}

// ArtifactCreate is the payload for creating an artifact explicitly.
type ArtifactCreate struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	ArtifactType string `json:"artifact_type"`
	Metadata     string `json:"metadata,omitempty"`
}

// ArtifactUpdate is the payload for updating an artifact. Nil fields are
// left unchanged.
type ArtifactUpdate struct {
	Title        *string `json:"title,omitempty"`
	Content      *string `json:"content,omitempty"`
	ArtifactType *string `json:"artifact_type,omitempty"`
	Metadata     *string `json:"metadata,omitempty"`
}

// ArtifactService persists artifacts on plant databases and extracts them
// from AI responses.
type ArtifactService struct {
	scope *plantdb.Scope
	log   *zap.Logger
}

// NewArtifactService creates the artifact service.
func NewArtifactService(scope *plantdb.Scope, log *zap.Logger) *ArtifactService {
	return &ArtifactService{scope: scope, log: log}
}

// Create stores a user-supplied artifact.
func (s *ArtifactService) Create(ctx context.Context, plantID, userID uint, req ArtifactCreate) (*model.Artifact, error) {
	artifactType := req.ArtifactType
	if artifactType == "" {
		artifactType = model.ArtifactTypeGeneral
	}
	artifact := model.Artifact{
		SessionID:    req.SessionID,
		UserID:       userID,
		Title:        req.Title,
		Content:      req.Content,
		ArtifactType: artifactType,
		Metadata:     req.Metadata,
	}

	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		if err := tx.Create(&artifact).Error; err != nil {
			return fmt.Errorf("create artifact: %w", err)
		}
		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Get returns one artifact owned by the user.
func (s *ArtifactService) Get(ctx context.Context, plantID, userID, artifactID uint) (*model.Artifact, error) {
	var artifact model.Artifact
	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND user_id = ?", artifactID, userID).First(&artifact).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", ErrArtifactNotFound, artifactID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// ListBySession returns the artifacts of one session, newest first.
func (s *ArtifactService) ListBySession(ctx context.Context, plantID, userID uint, sessionID string, limit, offset int) ([]model.Artifact, int64, error) {
	return s.list(ctx, plantID, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("session_id = ? AND user_id = ?", sessionID, userID)
	}, limit, offset)
}

// ListByUser returns all artifacts of one user across sessions.
func (s *ArtifactService) ListByUser(ctx context.Context, plantID, userID uint, limit, offset int) ([]model.Artifact, int64, error) {
	return s.list(ctx, plantID, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("user_id = ?", userID)
	}, limit, offset)
}

// ListByType filters a user's artifacts by type.
func (s *ArtifactService) ListByType(ctx context.Context, plantID, userID uint, artifactType string, limit, offset int) ([]model.Artifact, int64, error) {
	return s.list(ctx, plantID, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("user_id = ? AND artifact_type = ?", userID, artifactType)
	}, limit, offset)
}

// Search matches a user's artifacts by title or content substring.
func (s *ArtifactService) Search(ctx context.Context, plantID, userID uint, term string, limit, offset int) ([]model.Artifact, int64, error) {
	pattern := "%" + term + "%"
	return s.list(ctx, plantID, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("user_id = ? AND (title ILIKE ? OR content ILIKE ?)", userID, pattern, pattern)
	}, limit, offset)
}

func (s *ArtifactService) list(ctx context.Context, plantID uint, filter func(tx *gorm.DB) *gorm.DB, limit, offset int) ([]model.Artifact, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var artifacts []model.Artifact
	var total int64
	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		if err := filter(tx.Model(&model.Artifact{})).Count(&total).Error; err != nil {
			return err
		}
		return filter(tx).
			Order("created_at DESC").
			Limit(limit).
			Offset(offset).
			Find(&artifacts).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return artifacts, total, nil
}

// Update modifies an artifact owned by the user.
func (s *ArtifactService) Update(ctx context.Context, plantID, userID, artifactID uint, req ArtifactUpdate) (*model.Artifact, error) {
	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.ArtifactType != nil {
		updates["artifact_type"] = *req.ArtifactType
	}
	if req.Metadata != nil {
		updates["metadata"] = *req.Metadata
	}

	var artifact model.Artifact
	err := s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND user_id = ?", artifactID, userID).First(&artifact).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", ErrArtifactNotFound, artifactID)
		}
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&artifact).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.Commit().Error
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Delete soft-deletes an artifact owned by the user.
func (s *ArtifactService) Delete(ctx context.Context, plantID, userID, artifactID uint) error {
	return s.scope.WithRelational(ctx, plantID, func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", artifactID, userID).Delete(&model.Artifact{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", ErrArtifactNotFound, artifactID)
		}
		return tx.Commit().Error
	})
}

// FromAIResponse extracts an artifact from an AI response, if the response
// looks like it produced durable content. Runs inside the caller's
// transaction so the artifact commits together with the chat message.
// Returns nil without error when the response carries nothing worth keeping.
func (s *ArtifactService) FromAIResponse(tx *gorm.DB, sessionID string, userID uint, raw json.RawMessage, messageID *uint) (*model.Artifact, error) {
	var resp aiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		// Opaque non-conforming responses simply produce no artifact.
		return nil, nil
	}

	if !hasArtifactData(resp) || isErrorResponse(resp) {
		return nil, nil
	}

	metadata, _ := json.Marshal(map[string]string{
		"answer_type":   resp.AnswerType,
		"plot_type":     resp.PlotType,
		"question_type": resp.QuestionType,
	})

	artifact := model.Artifact{
		SessionID:    sessionID,
		UserID:       userID,
		MessageID:    messageID,
		Title:        extractTitle(resp.Answer),
		Content:      resp.Answer,
		ArtifactType: determineArtifactType(resp),
		Metadata:     string(metadata),
	}
	if err := tx.Create(&artifact).Error; err != nil {
		return nil, fmt.Errorf("create artifact from AI response: %w", err)
	}

	s.log.Info("artifact extracted from AI response",
		zap.String("session_id", sessionID),
		zap.Uint("artifact_id", artifact.ID),
		zap.String("artifact_type", artifact.ArtifactType))
	return &artifact, nil
}

var contentIndicators = []string{
	"artifact", "export", "code", "diagram", "chart",
	"implementation", "example", "template", "structure",
	"plot", "graph", "data", "analysis", "```", "function", "class",
}

var errorIndicators = []string{
	"error", "failed", "exception", "not found", "no data",
	"unable to", "cannot", "invalid", "missing", "empty",
}

// hasArtifactData decides whether an AI response should become an artifact.
// Typed responses (plot/answer/question types) require actual data;
// content-based responses require substantial content.
func hasArtifactData(resp aiResponse) bool {
	hasData := len(resp.Data) > 0
	if (resp.PlotType != "" || resp.AnswerType != "" || resp.QuestionType != "") && hasData {
		return true
	}

	content := strings.ToLower(resp.Answer)
	substantial := len(strings.TrimSpace(content)) > 50
	for _, indicator := range contentIndicators {
		if strings.Contains(content, indicator) {
			return substantial
		}
	}
	return false
}

// isErrorResponse flags responses that look like failures; those never
// become artifacts.
func isErrorResponse(resp aiResponse) bool {
	if len(resp.Data) == 0 && resp.PlotType != "" {
		return true
	}
	answer := strings.ToLower(resp.Answer)
	for _, indicator := range errorIndicators {
		if strings.Contains(answer, indicator) {
			return true
		}
	}
	return len(strings.TrimSpace(resp.Answer)) < 20
}

// extractTitle takes the first meaningful line of the answer as the title.
func extractTitle(answer string) string {
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line == "" {
			continue
		}
		if len(line) > 120 {
			return line[:117] + "..."
		}
		return line
	}
	return "AI Generated Artifact"
}

func determineArtifactType(resp aiResponse) string {
	switch {
	case resp.PlotType != "":
		return model.ArtifactTypeChart
	case strings.Contains(resp.Answer, "```"):
		return model.ArtifactTypeCode
	case strings.Contains(strings.ToLower(resp.Answer), "diagram"):
		return model.ArtifactTypeDiagram
	case resp.QuestionType == "explore" || resp.QuestionType == "view":
		return model.ArtifactTypeAnalysis
	default:
		return model.ArtifactTypeGeneral
	}
}
