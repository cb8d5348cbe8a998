package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/checkin/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, checkin *domain.Checkin) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO user_checkins (id, user_id, checkin_date, points_earned, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		checkin.ID,
		checkin.UserID,
		checkin.CheckinDate,
		checkin.PointsEarned,
		checkin.CreatedAt,
	).Error
}

func (r *repo) FindByUserAndDate(ctx context.Context, db *gorm.DB, userID snowflake.ID, day time.Time) (*domain.Checkin, error) {
	var checkin domain.Checkin
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, checkin_date, points_earned, created_at
		FROM user_checkins
		WHERE user_id = ? AND checkin_date = ?`,
		userID,
		day,
	).Scan(&checkin).Error
	if err != nil {
		return nil, err
	}
	if checkin.ID == 0 {
		return nil, nil
	}
	return &checkin, nil
}

func (r *repo) RecentDates(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]time.Time, error) {
	var rows []struct {
		CheckinDate time.Time
	}
	err := db.WithContext(ctx).Raw(
		`SELECT checkin_date
		FROM user_checkins
		WHERE user_id = ?
		ORDER BY checkin_date DESC
		LIMIT ?`,
		userID,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	days := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		days = append(days, row.CheckinDate)
	}
	return days, nil
}
