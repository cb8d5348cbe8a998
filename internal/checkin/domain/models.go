package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Checkin is one user's claim for one UTC calendar day.
type Checkin struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID       snowflake.ID `gorm:"not null;uniqueIndex:ux_user_checkins_user_date" json:"userId"`
	CheckinDate  time.Time    `gorm:"type:date;not null;uniqueIndex:ux_user_checkins_user_date" json:"checkinDate"`
	PointsEarned int64        `gorm:"not null" json:"pointsEarned"`
	CreatedAt    time.Time    `gorm:"not null" json:"createdAt"`
}

type Result struct {
	Checkin Checkin `json:"checkin"`
	Balance int64   `json:"balance"`
}

// Stats summarizes a user's check-in streak. The streak counts back from
// today, or from yesterday when today is not claimed yet.
type Stats struct {
	CheckedInToday  bool `json:"hasCheckedInToday"`
	ConsecutiveDays int  `json:"consecutiveDays"`
}
