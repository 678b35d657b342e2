// Package stripe implements the payment processor against the Stripe REST
// API. Outbound calls use the form-encoded v1 endpoints; inbound webhooks
// are verified with the signed-payload HMAC scheme.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nockworks/revenue-engine/internal/payment/domain"
)

const apiBase = "https://api.stripe.com/v1"

type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) Provider() string { return "stripe" }

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Processor, error) {
	apiKey, _ := readString(cfg.Config, "api_key")
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.ErrInvalidConfig
	}

	secret, _ := readString(cfg.Config, "webhook_secret")
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, domain.ErrInvalidConfig
	}

	return &Adapter{
		apiKey:        apiKey,
		webhookSecret: secret,
		httpClient:    &http.Client{},
	}, nil
}

type Adapter struct {
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
}

func (a *Adapter) Provider() string { return "stripe" }

func (a *Adapter) CreatePaymentIntent(ctx context.Context, req domain.CreateIntentRequest) (*domain.PaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", strings.ToLower(req.Currency))
	if req.CustomerID != "" {
		form.Set("customer", req.CustomerID)
	}
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var out stripeIntent
	if err := a.call(ctx, http.MethodPost, "/payment_intents", form, req.IdempotencyKey, &out); err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

func (a *Adapter) ConfirmPaymentIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	var out stripeIntent
	path := "/payment_intents/" + url.PathEscape(intentID) + "/confirm"
	if err := a.call(ctx, http.MethodPost, path, url.Values{}, "", &out); err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

func (a *Adapter) CreateCustomer(ctx context.Context, email, name string) (*domain.Customer, error) {
	form := url.Values{}
	form.Set("email", email)
	form.Set("name", name)

	var out stripeCustomer
	if err := a.call(ctx, http.MethodPost, "/customers", form, "", &out); err != nil {
		return nil, err
	}
	return &domain.Customer{ID: out.ID, Email: out.Email, Name: out.Name}, nil
}

func (a *Adapter) ProcessRefund(ctx context.Context, intentID string, amountCents int64) (*domain.Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)
	if amountCents > 0 {
		form.Set("amount", strconv.FormatInt(amountCents, 10))
	}

	var out stripeRefund
	if err := a.call(ctx, http.MethodPost, "/refunds", form, "", &out); err != nil {
		return nil, err
	}
	return &domain.Refund{
		ID:        out.ID,
		IntentID:  out.PaymentIntent,
		Amount:    out.Amount,
		Status:    out.Status,
		CreatedAt: time.Unix(out.Created, 0).UTC(),
	}, nil
}

func (a *Adapter) call(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr stripeError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe: %s (%s)", apiErr.Error.Message, apiErr.Error.Code)
		}
		return fmt.Errorf("stripe: http %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

// Verify checks the Stripe-Signature header against the webhook secret.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return domain.ErrInvalidSignature
}

// Parse normalizes a verified webhook payload into a PaymentEvent.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	var eventType domain.EventType
	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		eventType = domain.EventTypePaymentSucceeded
	case "payment_intent.payment_failed":
		eventType = domain.EventTypePaymentFailed
	case "charge.refunded":
		eventType = domain.EventTypeRefunded
	default:
		return nil, domain.ErrEventIgnored
	}

	var intent stripeIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	failureReason := ""
	if intent.LastPaymentError != nil {
		failureReason = strings.TrimSpace(intent.LastPaymentError.Message)
	}

	return &domain.PaymentEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		Type:            eventType,
		IntentID:        intent.ID,
		Amount:          intent.Amount,
		Currency:        strings.ToUpper(strings.TrimSpace(intent.Currency)),
		FailureReason:   failureReason,
		OccurredAt:      time.Unix(event.Created, 0).UTC(),
		RawPayload:      payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, domain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeIntent struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Customer         string            `json:"customer"`
	Created          int64             `json:"created"`
	LastPaymentError *lastPaymentError `json:"last_payment_error"`
}

func (i stripeIntent) toDomain() *domain.PaymentIntent {
	status := domain.IntentStatusProcessing
	switch i.Status {
	case "succeeded":
		status = domain.IntentStatusSucceeded
	case "requires_payment_method", "canceled":
		status = domain.IntentStatusFailed
	case "requires_confirmation", "requires_action":
		status = domain.IntentStatusPending
	}
	return &domain.PaymentIntent{
		ID:         i.ID,
		Status:     status,
		Amount:     i.Amount,
		Currency:   strings.ToUpper(i.Currency),
		CustomerID: i.Customer,
		CreatedAt:  time.Unix(i.Created, 0).UTC(),
	}
}

type stripeCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type stripeRefund struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	Created       int64  `json:"created"`
}

type stripeError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type lastPaymentError struct {
	Message string `json:"message"`
}

func readString(cfg map[string]any, key string) (string, bool) {
	if cfg == nil {
		return "", false
	}
	value, ok := cfg[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}
