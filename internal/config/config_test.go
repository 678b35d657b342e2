package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresDatabaseCredentials(t *testing.T) {
	cfg := Config{DBType: "postgres"}
	assert.Error(t, cfg.Validate())

	cfg.DatabaseURL = "postgres://localhost/revenue"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresStripeCredentialsInProduction(t *testing.T) {
	cfg := Config{
		Environment:     "production",
		DBType:          "postgres",
		DatabaseURL:     "postgres://localhost/revenue",
		PaymentProvider: "stripe",
	}
	assert.Error(t, cfg.Validate())

	cfg.StripeAPIKey = "sk_live_123"
	assert.Error(t, cfg.Validate())

	cfg.StripeWebhookSecret = "whsec_123"
	assert.NoError(t, cfg.Validate())
}

func TestValidateAllowsMissingStripeCredentialsInDevelopment(t *testing.T) {
	cfg := Config{
		Environment:     "development",
		DBType:          "postgres",
		DatabaseURL:     "postgres://localhost/revenue",
		PaymentProvider: "stripe",
	}
	assert.NoError(t, cfg.Validate())
}

func TestNewRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/revenue")
	t.Setenv("PAYMENT_PROVIDER", "stripe")
	t.Setenv("STRIPE_API_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := New()
	assert.Error(t, err)
}

func TestNewReturnsValidatedConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DATABASE_URL", "postgres://localhost/revenue")
	t.Setenv("PAYMENT_PROVIDER", "stripe")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "stripe", cfg.PaymentProvider)
	assert.Equal(t, "postgres://localhost/revenue", cfg.DatabaseURL)
}
