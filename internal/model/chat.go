package model

import (
	"time"
)

// ChatSession represents one conversation thread on a plant database.
type ChatSession struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SessionID string    `json:"session_id" gorm:"type:varchar(64);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is a single exchange within a session: the user message, the
// query the AI ran (if any) and the serialized response.
type ChatMessage struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	SessionID     string    `json:"session_id" gorm:"type:varchar(64);index;not null"`
	Message       string    `json:"message" gorm:"type:text;not null"`
	Query         string    `json:"query,omitempty" gorm:"type:text"`
	Response      string    `json:"response,omitempty" gorm:"type:text"`
	ExecutionTime float64   `json:"execution_time"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
