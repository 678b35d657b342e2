package bridge

import (
	"go.uber.org/fx"

	"github.com/nockworks/revenue-engine/internal/bridge/service"
)

var Module = fx.Module("bridge.service",
	fx.Provide(service.NewService),
)
