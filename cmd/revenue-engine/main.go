package main

import (
	"go.uber.org/fx"

	"github.com/nockworks/revenue-engine/internal/analytics"
	"github.com/nockworks/revenue-engine/internal/authorization"
	"github.com/nockworks/revenue-engine/internal/billing"
	"github.com/nockworks/revenue-engine/internal/bridge"
	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	"github.com/nockworks/revenue-engine/internal/enterprise"
	"github.com/nockworks/revenue-engine/internal/migration"
	"github.com/nockworks/revenue-engine/internal/observability"
	"github.com/nockworks/revenue-engine/internal/optimizer"
	"github.com/nockworks/revenue-engine/internal/payment"
	"github.com/nockworks/revenue-engine/internal/ratelimit"
	"github.com/nockworks/revenue-engine/internal/revenue"
	"github.com/nockworks/revenue-engine/internal/scheduler"
	"github.com/nockworks/revenue-engine/internal/server"
	"github.com/nockworks/revenue-engine/internal/subscription"
	"github.com/nockworks/revenue-engine/pkg/db"
)

// The monolith runs everything: HTTP API, scheduler and optimizer in
// one process. apps/api and apps/scheduler split the same modules
// across two deployments.
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
		optimizer.Module,
		authorization.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}
