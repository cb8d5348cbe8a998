package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/balance/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type pointsRow struct {
	Points int64
}

func (r *repo) DebitIfSufficient(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) (int64, bool, error) {
	if !supportsReturning(db) {
		return r.debitThenRead(ctx, db, userID, amount, now)
	}

	var rows []pointsRow
	err := db.WithContext(ctx).Raw(
		`UPDATE users SET points = points - ?, updated_at = ?
		 WHERE id = ? AND points >= ?
		 RETURNING points`,
		amount,
		now,
		userID,
		amount,
	).Scan(&rows).Error
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Points, true, nil
}

// debitThenRead keeps the conditional update as the only serialization point
// on dialects without RETURNING; the follow-up read shares the transaction.
func (r *repo) debitThenRead(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) (int64, bool, error) {
	var (
		balance int64
		applied bool
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE users SET points = points - ?, updated_at = ?
			 WHERE id = ? AND points >= ?`,
			amount,
			now,
			userID,
			amount,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Raw(`SELECT points FROM users WHERE id = ?`, userID).Scan(&balance).Error
	})
	if err != nil {
		return 0, false, err
	}
	return balance, applied, nil
}

func (r *repo) Increment(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, now time.Time) (int64, bool, error) {
	if !supportsReturning(db) {
		res := db.WithContext(ctx).Exec(
			`UPDATE users SET points = points + ?, updated_at = ? WHERE id = ?`,
			amount,
			now,
			userID,
		)
		if res.Error != nil || res.RowsAffected == 0 {
			return 0, false, res.Error
		}
		return r.Balance(ctx, db, userID)
	}

	var rows []pointsRow
	err := db.WithContext(ctx).Raw(
		`UPDATE users SET points = points + ?, updated_at = ?
		 WHERE id = ?
		 RETURNING points`,
		amount,
		now,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Points, true, nil
}

func (r *repo) Balance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, bool, error) {
	var rows []pointsRow
	err := db.WithContext(ctx).Raw(
		`SELECT points FROM users WHERE id = ?`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Points, true, nil
}

func supportsReturning(db *gorm.DB) bool {
	return db.Dialector == nil || db.Dialector.Name() != "mysql"
}
