// Package domain defines the payment processor contract. The billing service
// talks to this interface only; concrete providers live under adapters/.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrProviderNotFound is returned when no factory matches the provider name.
	ErrProviderNotFound = errors.New("payment provider not found")

	// ErrInvalidConfig is returned when a factory receives incomplete config.
	ErrInvalidConfig = errors.New("invalid payment adapter config")

	// ErrInvalidSignature is returned for webhook payloads that fail verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrInvalidPayload is returned for webhook payloads that cannot be decoded.
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrInvalidEvent is returned for decoded events missing required fields.
	ErrInvalidEvent = errors.New("invalid webhook event")

	// ErrEventIgnored is returned for event types the processor does not handle.
	ErrEventIgnored = errors.New("webhook event ignored")

	// ErrIntentNotFound is returned when the referenced intent does not exist.
	ErrIntentNotFound = errors.New("payment intent not found")
)

// IntentStatus mirrors the processor-side state of a payment intent.
type IntentStatus string

const (
	IntentStatusPending    IntentStatus = "pending"
	IntentStatusProcessing IntentStatus = "processing"
	IntentStatusSucceeded  IntentStatus = "succeeded"
	IntentStatusFailed     IntentStatus = "failed"
)

// CreateIntentRequest asks the processor to open a payment intent.
type CreateIntentRequest struct {
	AmountCents    int64
	Currency       string
	CustomerID     string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentIntent is the processor's view of an in-flight payment.
type PaymentIntent struct {
	ID         string
	Status     IntentStatus
	Amount     int64
	Currency   string
	CustomerID string
	CreatedAt  time.Time
}

// Customer is the processor-side customer record.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// Refund is the processor's view of a completed refund.
type Refund struct {
	ID        string
	IntentID  string
	Amount    int64
	Status    string
	CreatedAt time.Time
}

// EventType classifies webhook events after provider-specific parsing.
type EventType string

const (
	EventTypePaymentSucceeded EventType = "payment.succeeded"
	EventTypePaymentFailed    EventType = "payment.failed"
	EventTypeRefunded         EventType = "payment.refunded"
)

// PaymentEvent is a normalized webhook event.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	Type            EventType
	IntentID        string
	Amount          int64
	Currency        string
	FailureReason   string
	OccurredAt      time.Time
	RawPayload      []byte
}

// Processor is the outbound payment interface. Every call takes a context
// and must respect its deadline; callers wrap calls in a timeout.
type Processor interface {
	Provider() string
	CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)
	CreateCustomer(ctx context.Context, email, name string) (*Customer, error)
	ProcessRefund(ctx context.Context, intentID string, amountCents int64) (*Refund, error)
}

// WebhookHandler is implemented by processors that deliver asynchronous
// payment results over HTTP.
type WebhookHandler interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

// AdapterConfig carries provider credentials and tuning.
type AdapterConfig struct {
	Config map[string]any
}

// AdapterFactory builds a Processor for one provider.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Processor, error)
}
