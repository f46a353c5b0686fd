package main

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/quoteflow/internal/audit"
	"github.com/smallbiznis/quoteflow/internal/clock"
	"github.com/smallbiznis/quoteflow/internal/config"
	"github.com/smallbiznis/quoteflow/internal/docnumber"
	"github.com/smallbiznis/quoteflow/internal/events"
	"github.com/smallbiznis/quoteflow/internal/invoice"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	"github.com/smallbiznis/quoteflow/internal/migration"
	"github.com/smallbiznis/quoteflow/internal/observability/logger"
	"github.com/smallbiznis/quoteflow/internal/observability/tracing"
	"github.com/smallbiznis/quoteflow/internal/payment"
	"github.com/smallbiznis/quoteflow/internal/quote"
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
	"github.com/smallbiznis/quoteflow/internal/scheduler"
	"github.com/smallbiznis/quoteflow/internal/seed"
	"github.com/smallbiznis/quoteflow/internal/server"
	"github.com/smallbiznis/quoteflow/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,

		docnumber.Module,
		fx.Provide(events.NewOutbox),
		audit.Module,
		payment.Module,
		quote.Module,
		invoice.Module,

		fx.Invoke(runMigrations),
		fx.Invoke(runSeed),

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func runMigrations(conn *gorm.DB, cfg config.Config) error {
	if strings.EqualFold(cfg.Database.Driver, "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return migration.RunMigrations(sqlDB)
	}
	return migration.RunAutoMigrate(conn)
}

func runSeed(conn *gorm.DB, cfg config.Config, log *zap.Logger, clk clock.Clock, quotes quotedomain.Service, invoices invoicedomain.Service) error {
	if !cfg.Bootstrap.SeedDemoData {
		return nil
	}
	return seed.New(conn, log, clk, quotes, invoices).Run(context.Background())
}
