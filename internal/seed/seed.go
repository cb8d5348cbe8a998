package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type defaultSpread struct {
	name        string
	description string
	cardCount   int
	multiplier  float64
}

var defaultSpreads = []defaultSpread{
	{name: "Single Card", description: "One card for a quick answer.", cardCount: 1, multiplier: 1},
	{name: "Past Present Future", description: "Three cards tracing how a situation unfolds.", cardCount: 3, multiplier: 1.5},
	{name: "Celtic Cross", description: "Ten cards for a full reading.", cardCount: 10, multiplier: 3},
}

// EnsureDefaultSpreads fills an empty spread catalogue so a fresh install
// can serve readings. A catalogue with any rows is left alone.
func EnsureDefaultSpreads(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Raw(`SELECT COUNT(1) FROM tarot_spreads`).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for i, spread := range defaultSpreads {
			// Stagger created_at so the listing order is stable.
			createdAt := now.Add(time.Duration(i) * time.Millisecond)
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO tarot_spreads (id, name, description, card_count, point_multiplier, is_enabled, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				node.Generate(),
				spread.name,
				spread.description,
				spread.cardCount,
				spread.multiplier,
				true,
				createdAt,
				createdAt,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
