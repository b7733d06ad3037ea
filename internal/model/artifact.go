package model

import (
	"time"

	"gorm.io/gorm"
)

// Artifact types recognized by the extraction heuristics.
const (
	ArtifactTypeGeneral  = "general"
	ArtifactTypeChart    = "chart"
	ArtifactTypeCode     = "code"
	ArtifactTypeDiagram  = "diagram"
	ArtifactTypeAnalysis = "analysis"
)

// Artifact is a durable piece of content produced during a chat session,
// either created explicitly by the user or extracted from an AI response.
type Artifact struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	SessionID    string         `json:"session_id" gorm:"type:varchar(64);index;not null"`
	UserID       uint           `json:"user_id" gorm:"index;not null"`
	MessageID    *uint          `json:"message_id,omitempty" gorm:"index"`
	Title        string         `json:"title" gorm:"type:varchar(255);not null"`
	Content      string         `json:"content" gorm:"type:text"`
	ArtifactType string         `json:"artifact_type" gorm:"type:varchar(50);index;default:'general'"`
	Metadata     string         `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
