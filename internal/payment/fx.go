package payment

import (
	"errors"

	"github.com/nockworks/revenue-engine/internal/config"
	"github.com/nockworks/revenue-engine/internal/payment/adapters"
	"github.com/nockworks/revenue-engine/internal/payment/adapters/mock"
	"github.com/nockworks/revenue-engine/internal/payment/adapters/stripe"
	"github.com/nockworks/revenue-engine/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRegistry wires every known provider factory.
func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		mock.NewFactory(),
		stripe.NewFactory(),
	)
}

// NewProcessor builds the processor named by PAYMENT_PROVIDER. Anything
// other than a fully configured provider falls back to the mock adapter so
// local environments work without credentials.
func NewProcessor(cfg config.Config, registry *adapters.Registry, log *zap.Logger) (domain.Processor, error) {
	provider := cfg.PaymentProvider
	if provider == "" {
		provider = "mock"
	}

	adapterCfg := domain.AdapterConfig{Config: map[string]any{
		"api_key":        cfg.StripeAPIKey,
		"webhook_secret": cfg.StripeWebhookSecret,
	}}

	processor, err := registry.NewAdapter(provider, adapterCfg)
	if errors.Is(err, domain.ErrInvalidConfig) && provider != "mock" {
		log.Warn("payment provider credentials missing, falling back to mock adapter",
			zap.String("provider", provider))
		processor, err = registry.NewAdapter("mock", domain.AdapterConfig{})
	}
	if err != nil {
		return nil, err
	}

	log.Info("payment processor configured", zap.String("provider", processor.Provider()))
	return processor, nil
}

var Module = fx.Module("payment",
	fx.Provide(NewRegistry),
	fx.Provide(NewProcessor),
)
