package billing

import (
	"github.com/nockworks/revenue-engine/internal/billing/render"
	"github.com/nockworks/revenue-engine/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(render.NewRenderer),
	fx.Provide(service.NewService),
)
