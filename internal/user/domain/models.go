package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an app account. Points is the spendable balance owned by the
// balance ledger; this package only reads it.
type User struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	UID         int64        `gorm:"column:uid;not null;uniqueIndex" json:"uid"`
	Nickname    string       `gorm:"not null" json:"nickname"`
	AvatarURL   *string      `gorm:"column:avatar_url" json:"avatarUrl"`
	Points      int64        `gorm:"not null;default:0" json:"points"`
	LastLoginAt *time.Time   `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updatedAt"`
}
