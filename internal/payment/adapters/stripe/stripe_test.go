package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nockworks/revenue-engine/internal/payment/domain"
)

const testSecret = "whsec_test"

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()

	processor, err := NewFactory().NewAdapter(domain.AdapterConfig{Config: map[string]any{
		"api_key":        "sk_test_123",
		"webhook_secret": testSecret,
	}})
	require.NoError(t, err)
	return processor.(*Adapter)
}

func signPayload(timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func signedHeader(timestamp string, payload []byte) http.Header {
	h := http.Header{}
	h.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", timestamp, signPayload(timestamp, payload)))
	return h
}

func TestNewAdapterRequiresCredentials(t *testing.T) {
	_, err := NewFactory().NewAdapter(domain.AdapterConfig{Config: map[string]any{
		"api_key": "sk_test_123",
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewFactory().NewAdapter(domain.AdapterConfig{Config: map[string]any{
		"webhook_secret": testSecret,
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"id":"evt_1"}`)

	err := adapter.Verify(context.Background(), payload, signedHeader("1756700000", payload))
	assert.NoError(t, err)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"id":"evt_1","amount":4999}`)
	headers := signedHeader("1756700000", payload)

	tampered := []byte(`{"id":"evt_1","amount":9999}`)
	err := adapter.Verify(context.Background(), tampered, headers)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyRejectsMissingOrMalformedHeader(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{}`)

	err := adapter.Verify(context.Background(), payload, http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	h := http.Header{}
	h.Set("Stripe-Signature", "v1=deadbeef")
	err = adapter.Verify(context.Background(), payload, h)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyAcceptsSecondSignature(t *testing.T) {
	// Secret rotation sends one v1 entry per active secret.
	adapter := newTestAdapter(t)
	payload := []byte(`{"id":"evt_1"}`)
	timestamp := "1756700000"

	h := http.Header{}
	h.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s,v1=%s",
		timestamp, "0000", signPayload(timestamp, payload)))
	assert.NoError(t, adapter.Verify(context.Background(), payload, h))
}

func TestParseSucceededIntent(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"created": 1756700000,
		"data": {"object": {"id": "pi_123", "amount": 4999, "currency": "usd", "status": "succeeded"}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "stripe", event.Provider)
	assert.Equal(t, "evt_1", event.ProviderEventID)
	assert.Equal(t, domain.EventTypePaymentSucceeded, event.Type)
	assert.Equal(t, "pi_123", event.IntentID)
	assert.Equal(t, int64(4999), event.Amount)
	assert.Equal(t, "USD", event.Currency)
	assert.Equal(t, int64(1756700000), event.OccurredAt.Unix())
}

func TestParseFailedIntentCarriesReason(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.payment_failed",
		"created": 1756700000,
		"data": {"object": {
			"id": "pi_123",
			"amount": 4999,
			"currency": "usd",
			"last_payment_error": {"message": "card declined"}
		}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypePaymentFailed, event.Type)
	assert.Equal(t, "card declined", event.FailureReason)
}

func TestParseIgnoresUnhandledEventTypes(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"id":"evt_3","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	_, err := adapter.Parse(context.Background(), payload)
	assert.ErrorIs(t, err, domain.ErrEventIgnored)
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.Parse(context.Background(), []byte(`{"id":`))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = adapter.Parse(context.Background(), []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	_, err = adapter.Parse(context.Background(), []byte(`{"id":"evt_4","type":"payment_intent.succeeded","data":{"object":{}}}`))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}
