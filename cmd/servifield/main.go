package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/servifield/servifield/internal/audit"
	"github.com/servifield/servifield/internal/clock"
	"github.com/servifield/servifield/internal/collections"
	"github.com/servifield/servifield/internal/config"
	"github.com/servifield/servifield/internal/ledger"
	"github.com/servifield/servifield/internal/logger"
	"github.com/servifield/servifield/internal/migration"
	obsmetrics "github.com/servifield/servifield/internal/observability/metrics"
	"github.com/servifield/servifield/internal/order"
	"github.com/servifield/servifield/internal/payment"
	"github.com/servifield/servifield/internal/policy"
	"github.com/servifield/servifield/internal/recurring"
	"github.com/servifield/servifield/internal/scheduler"
	"github.com/servifield/servifield/internal/server"
	"github.com/servifield/servifield/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		obsmetrics.Module,
		migration.Module,

		// Functional domains
		audit.Module,
		ledger.Module,
		payment.Module,
		recurring.Module,
		policy.Module,
		collections.Module,
		order.Module,

		scheduler.Module,
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
