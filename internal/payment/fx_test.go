package payment

import (
	"testing"

	"github.com/nockworks/revenue-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProcessorConfiguredStripe(t *testing.T) {
	cfg := config.Config{
		PaymentProvider:     "stripe",
		StripeAPIKey:        "sk_test_123",
		StripeWebhookSecret: "whsec_test",
	}

	processor, err := NewProcessor(cfg, NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "stripe", processor.Provider())
}

func TestNewProcessorFallsBackToMockWithoutCredentials(t *testing.T) {
	cfg := config.Config{PaymentProvider: "stripe"}

	processor, err := NewProcessor(cfg, NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "mock", processor.Provider())
}

func TestNewProcessorDefaultsToMock(t *testing.T) {
	processor, err := NewProcessor(config.Config{}, NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "mock", processor.Provider())
}

func TestNewProcessorRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{PaymentProvider: "square"}

	_, err := NewProcessor(cfg, NewRegistry(), zap.NewNop())
	assert.Error(t, err)
}
