package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/billorder/internal/clock"
	"github.com/smallbiznis/billorder/internal/config"
	"github.com/smallbiznis/billorder/internal/logger"
	"github.com/smallbiznis/billorder/internal/migration"
	"github.com/smallbiznis/billorder/internal/scheduler"
	"github.com/smallbiznis/billorder/internal/server"
	"github.com/smallbiznis/billorder/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// server.Module carries the bill and report modules.
		server.Module,
		scheduler.Module,
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
