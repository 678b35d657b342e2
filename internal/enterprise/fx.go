package enterprise

import (
	"github.com/nockworks/revenue-engine/internal/enterprise/service"
	"go.uber.org/fx"
)

var Module = fx.Module("enterprise.service",
	fx.Provide(service.NewService),
)
