package main

import (
	"go.uber.org/fx"

	"github.com/nockworks/revenue-engine/internal/analytics"
	"github.com/nockworks/revenue-engine/internal/billing"
	"github.com/nockworks/revenue-engine/internal/bridge"
	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	"github.com/nockworks/revenue-engine/internal/enterprise"
	"github.com/nockworks/revenue-engine/internal/migration"
	"github.com/nockworks/revenue-engine/internal/observability"
	"github.com/nockworks/revenue-engine/internal/payment"
	"github.com/nockworks/revenue-engine/internal/ratelimit"
	"github.com/nockworks/revenue-engine/internal/revenue"
	"github.com/nockworks/revenue-engine/internal/scheduler"
	"github.com/nockworks/revenue-engine/internal/subscription"
	"github.com/nockworks/revenue-engine/pkg/db"
)

// Scheduler-only deployment. No HTTP server: it runs the batch jobs
// (billing cycles, usage resets, custody accrual, forecast refresh,
// cache sweep) against the shared database.
func main() {
	app := fx.New(
		fx.Provide(config.New),
		observability.Module,
		db.Module,
		clock.Module,
		migration.Module,

		payment.Module,
		ratelimit.Module,
		subscription.Module,
		analytics.Module,
		billing.Module,
		bridge.Module,
		enterprise.Module,
		revenue.Module,

		scheduler.Module,
	)
	app.Run()
}
