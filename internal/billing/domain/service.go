package domain

import (
	"context"
	"errors"
	"time"

	paymentdomain "github.com/nockworks/revenue-engine/internal/payment/domain"
)

var (
	// ErrInvoiceNotFound is returned when the invoice id does not exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrPaymentNotFound is returned when the payment id does not exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidAmount is returned for non-positive or malformed amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvoiceNotPayable is returned when an invoice is in a state that
	// cannot accept payments.
	ErrInvoiceNotPayable = errors.New("invoice is not payable")

	// ErrPaymentExceedsBalance is returned when a payment would overpay
	// the invoice's remaining balance.
	ErrPaymentExceedsBalance = errors.New("payment exceeds invoice balance")
)

// LineItemInput describes one line of an invoice to be created.
type LineItemInput struct {
	Description string  `json:"description" binding:"required"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price" binding:"required"`
}

// CreateInvoiceRequest creates a subscription invoice with tax applied.
// When line items are given the invoice amount is their sum; a non-zero
// Amount that disagrees with that sum is rejected.
type CreateInvoiceRequest struct {
	SubscriptionID *string         `json:"subscription_id"`
	UserID         string          `json:"user_id" binding:"required"`
	Amount         float64         `json:"amount"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description"`
	PeriodStart    *time.Time      `json:"period_start"`
	PeriodEnd      *time.Time      `json:"period_end"`
	LineItems      []LineItemInput `json:"line_items"`
}

// ProcessPaymentRequest settles part or all of an invoice.
type ProcessPaymentRequest struct {
	InvoiceID         string  `json:"invoice_id" binding:"required"`
	Amount            float64 `json:"amount" binding:"required"`
	PaymentMethodType string  `json:"payment_method_type"`
	PaymentMethodID   *string `json:"payment_method_id"`
	IdempotencyKey    string  `json:"idempotency_key"`
}

// BillingCycleResult summarizes one advance-billing-cycles run.
type BillingCycleResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// BillingAnalytics aggregates invoice and payment totals for a period.
type BillingAnalytics struct {
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	TotalInvoiced    float64   `json:"total_invoiced"`
	TotalCollected   float64   `json:"total_collected"`
	TotalOutstanding float64   `json:"total_outstanding"`
	InvoiceCount     int64     `json:"invoice_count"`
	PaidCount        int64     `json:"paid_count"`
	CollectionRate   float64   `json:"collection_rate"`
}

// Service exposes invoicing, payment processing and billing cycle operations.
type Service interface {
	CreateSubscriptionInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoices(ctx context.Context, userID string, status *InvoiceStatus) ([]*Invoice, error)
	GetInvoiceLineItems(ctx context.Context, invoiceID string) ([]*InvoiceLineItem, error)
	RenderInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error)

	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	ApplyPaymentEvent(ctx context.Context, event *paymentdomain.PaymentEvent) (*Payment, error)

	ProcessBillingCycles(ctx context.Context, now time.Time) (*BillingCycleResult, error)
	GetBillingAnalytics(ctx context.Context, start, end time.Time) (*BillingAnalytics, error)
}
