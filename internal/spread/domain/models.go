package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Spread is a tarot card layout. AIPrompt, when set, replaces the generic
// opening of the generation prompt.
type Spread struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"not null" json:"name"`
	Description     *string      `json:"description,omitempty"`
	CardCount       int          `gorm:"not null" json:"cardCount"`
	AIPrompt        *string      `gorm:"column:ai_prompt" json:"-"`
	PointMultiplier float64      `gorm:"not null;default:1" json:"pointMultiplier"`
	IsEnabled       bool         `gorm:"not null;default:true" json:"isEnabled"`
	CreatedAt       time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updatedAt"`
}

// Summary is the public listing shape.
type Summary struct {
	ID              snowflake.ID `json:"id"`
	Name            string       `json:"name"`
	Description     *string      `json:"description,omitempty"`
	CardCount       int          `json:"cardCount"`
	PointMultiplier float64      `json:"pointMultiplier"`
}
