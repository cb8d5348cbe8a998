package migration

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/config"
	"github.com/smallbiznis/xingyu/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if !strings.EqualFold(strings.TrimSpace(cfg.DBType), "postgres") {
			log.Warn("schema migrations only run on postgres; expecting an existing schema",
				zap.String("db_type", cfg.DBType),
			)
		} else {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		return seed.EnsureDefaultSpreads(conn, node)
	}),
)
