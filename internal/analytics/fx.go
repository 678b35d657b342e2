package analytics

import (
	"github.com/nockworks/revenue-engine/internal/analytics/service"
	"go.uber.org/fx"
)

var Module = fx.Module("analytics.service",
	fx.Provide(service.NewService),
)
