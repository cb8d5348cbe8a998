package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

const TypeTarot = "tarot"

type Conversation struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID           snowflake.ID `gorm:"not null;index" json:"userId"`
	ConversationType string       `gorm:"not null" json:"conversationType"`
	Status           Status       `gorm:"not null" json:"status"`
	TotalCost        int64        `gorm:"not null" json:"totalCost"`
	CreatedAt        time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time    `gorm:"not null" json:"updatedAt"`
}

// Message rows are append-only.
type Message struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	ConversationID snowflake.ID   `gorm:"not null;index" json:"conversationId"`
	Role           Role           `gorm:"not null" json:"role"`
	Content        string         `gorm:"not null" json:"content"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"createdAt"`
}

// GenerationRequest is the durable record of a debited generation, written
// before the upstream call and kept whatever the stream outcome.
type GenerationRequest struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	UserID         snowflake.ID   `gorm:"not null" json:"userId"`
	ConversationID snowflake.ID   `gorm:"not null" json:"conversationId"`
	SpreadID       snowflake.ID   `gorm:"not null" json:"spreadId"`
	Question       string         `gorm:"not null" json:"question"`
	Cards          datatypes.JSON `gorm:"not null" json:"cards"`
	Cost           int64          `gorm:"not null" json:"cost"`
	CorrelationID  string         `gorm:"not null" json:"correlationId"`
	CreatedAt      time.Time      `gorm:"not null" json:"createdAt"`
}
