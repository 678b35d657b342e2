// Package mock provides an in-memory payment processor. Intents confirm
// immediately, which keeps local development and tests synchronous.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nockworks/revenue-engine/internal/payment/domain"
	"github.com/oklog/ulid/v2"
)

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Provider() string { return "mock" }

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Processor, error) {
	return NewAdapter(), nil
}

type Adapter struct {
	mu      sync.Mutex
	intents map[string]*domain.PaymentIntent

	// FailNext makes the next intent fail. Tests use it to exercise the
	// failure path without a real provider.
	FailNext bool
}

func NewAdapter() *Adapter {
	return &Adapter{intents: map[string]*domain.PaymentIntent{}}
}

func (a *Adapter) Provider() string { return "mock" }

func (a *Adapter) CreatePaymentIntent(ctx context.Context, req domain.CreateIntentRequest) (*domain.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	status := domain.IntentStatusSucceeded
	if a.FailNext {
		status = domain.IntentStatusFailed
		a.FailNext = false
	}

	intent := &domain.PaymentIntent{
		ID:         "pi_mock_" + strings.ToLower(ulid.Make().String()),
		Status:     status,
		Amount:     req.AmountCents,
		Currency:   strings.ToUpper(req.Currency),
		CustomerID: req.CustomerID,
		CreatedAt:  time.Now().UTC(),
	}
	a.intents[intent.ID] = intent
	return intent, nil
}

func (a *Adapter) ConfirmPaymentIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	intent, ok := a.intents[intentID]
	if !ok {
		return nil, domain.ErrIntentNotFound
	}
	if intent.Status == domain.IntentStatusPending || intent.Status == domain.IntentStatusProcessing {
		intent.Status = domain.IntentStatusSucceeded
	}
	return intent, nil
}

func (a *Adapter) CreateCustomer(ctx context.Context, email, name string) (*domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.Customer{
		ID:    "cus_mock_" + strings.ToLower(ulid.Make().String()),
		Email: email,
		Name:  name,
	}, nil
}

func (a *Adapter) ProcessRefund(ctx context.Context, intentID string, amountCents int64) (*domain.Refund, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.intents[intentID]; !ok {
		return nil, domain.ErrIntentNotFound
	}
	return &domain.Refund{
		ID:        "re_mock_" + strings.ToLower(ulid.Make().String()),
		IntentID:  intentID,
		Amount:    amountCents,
		Status:    "succeeded",
		CreatedAt: time.Now().UTC(),
	}, nil
}
