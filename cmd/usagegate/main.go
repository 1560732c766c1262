package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/usagegate/usagegate/internal/clock"
	"github.com/usagegate/usagegate/internal/config"
	"github.com/usagegate/usagegate/internal/logger"
	"github.com/usagegate/usagegate/internal/migration"
	"github.com/usagegate/usagegate/internal/observability"
	"github.com/usagegate/usagegate/internal/server"
	"github.com/usagegate/usagegate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
