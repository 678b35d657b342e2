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
	"github.com/nockworks/revenue-engine/internal/observability"
	"github.com/nockworks/revenue-engine/internal/optimizer"
	"github.com/nockworks/revenue-engine/internal/payment"
	"github.com/nockworks/revenue-engine/internal/ratelimit"
	"github.com/nockworks/revenue-engine/internal/revenue"
	"github.com/nockworks/revenue-engine/internal/server"
	"github.com/nockworks/revenue-engine/internal/subscription"
	"github.com/nockworks/revenue-engine/pkg/db"
)

// API-only deployment. No scheduler module: batch jobs run in
// apps/scheduler so horizontally scaled API pods never double-bill.
func main() {
	app := fx.New(
		fx.Provide(config.New),
		observability.Module,
		db.Module,
		clock.Module,

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

		server.Module,
	)
	app.Run()
}
