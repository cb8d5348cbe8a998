package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/xingyu/internal/config"
	"github.com/smallbiznis/xingyu/internal/migration"
	"github.com/smallbiznis/xingyu/internal/observability"
	"github.com/smallbiznis/xingyu/internal/server"
	"github.com/smallbiznis/xingyu/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the ID node; each replica needs its own SNOWFLAKE_NODE_ID.
func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
