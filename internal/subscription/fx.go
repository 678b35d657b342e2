package subscription

import (
	"github.com/nockworks/revenue-engine/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(service.NewService),
)
