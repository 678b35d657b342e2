package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/nockworks/revenue-engine/internal/billing/domain"
	"github.com/nockworks/revenue-engine/internal/billing/render"
	billingservice "github.com/nockworks/revenue-engine/internal/billing/service"
	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	"github.com/nockworks/revenue-engine/internal/payment/adapters/mock"
	paymentdomain "github.com/nockworks/revenue-engine/internal/payment/domain"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&billingdomain.Invoice{},
		&billingdomain.InvoiceLineItem{},
		&billingdomain.InvoiceSequence{},
		&billingdomain.Payment{},
		&billingdomain.PaymentMethod{},
		&subscriptiondomain.Subscription{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newBillingService(t *testing.T, db *gorm.DB, clk clock.Clock, processor *mock.Adapter) billingdomain.Service {
	t.Helper()
	return billingservice.NewService(billingservice.ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clk,
		Cfg:       config.Config{PaymentTimeoutSec: 5},
		Revenue:   config.NewStaticRevenueConfigHolder(config.DefaultRevenueConfig()),
		Processor: processor,
		Metrics:   nil,
		Renderer:  render.NewRenderer(),
	})
}

func TestCreateInvoiceArithmetic(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, invoice.Amount)
	assert.Equal(t, 8.75, invoice.TaxAmount)
	assert.Equal(t, 108.75, invoice.TotalAmount)
	assert.Equal(t, billingdomain.InvoiceStatusPending, invoice.Status)
	assert.Equal(t, "net_15", invoice.PaymentTerms)
	assert.Equal(t, clk.Now().AddDate(0, 0, 15), invoice.DueDate)
}

func TestCreateInvoiceRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	_, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 0,
	})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidAmount)

	_, err = svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: -10,
	})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidAmount)
}

func TestInvoiceNumbersAreMonotonicAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	first, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", first.InvoiceNumber)

	second, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-000002", second.InvoiceNumber)

	// A fresh service over the same database simulates a process restart.
	// The counter lives in the database, so numbering keeps going.
	restarted := newBillingService(t, db, clk, mock.NewAdapter())
	third, err := restarted.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-000003", third.InvoiceNumber)
}

func TestCreateInvoiceWithLineItems(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 250,
		LineItems: []billingdomain.LineItemInput{
			{Description: "API access", Quantity: 2, UnitPrice: 100},
			{Description: "Support", UnitPrice: 50},
		},
	})
	require.NoError(t, err)

	items, err := svc.GetInvoiceLineItems(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 200.0, items[0].TotalPrice)
	assert.Equal(t, 1.0, items[1].Quantity)
	assert.Equal(t, 50.0, items[1].TotalPrice)
}

func TestCreateInvoiceDerivesAmountFromLineItems(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		LineItems: []billingdomain.LineItemInput{
			{Description: "API access", UnitPrice: 120},
			{Description: "Support", UnitPrice: 80},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 200.0, invoice.Amount)
	assert.Equal(t, 17.5, invoice.TaxAmount)
	assert.Equal(t, 217.5, invoice.TotalAmount)
}

func TestCreateInvoiceRejectsAmountLineItemMismatch(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	// The stated amount disagrees with the line items, so tax would be
	// computed on the wrong base.
	_, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
		LineItems: []billingdomain.LineItemInput{
			{Description: "API access", UnitPrice: 999},
		},
	})
	assert.ErrorIs(t, err, billingdomain.ErrInvalidAmount)
}

func TestCreateInvoiceRecordsBillingPeriod(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID:      "2a7b5c3d-0000-4000-8000-000000000001",
		Amount:      99,
		Description: "Professional subscription",
		PeriodStart: &start,
		PeriodEnd:   &end,
	})
	require.NoError(t, err)

	items, err := svc.GetInvoiceLineItems(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Professional subscription - 2026-01-01 to 2026-01-31", items[0].Description)
	assert.Equal(t, "2026-01-01T00:00:00Z", items[0].Metadata["billing_period_start"])
	assert.Equal(t, "2026-01-31T00:00:00Z", items[0].Metadata["billing_period_end"])
}

func TestProcessPaymentFullSettlesInvoice(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	payment, err := svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    invoice.TotalAmount,
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.PaymentStatusSucceeded, payment.Status)
	require.NotNil(t, payment.ProcessedAt)
	require.NotNil(t, payment.StripePaymentIntentID)

	settled, err := svc.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billingdomain.InvoiceStatusPaid, settled.Status)
	require.NotNil(t, settled.PaidAt)
}

func TestProcessPaymentPartialMarksPartiallyPaid(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	payment, err := svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    50,
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.PaymentStatusSucceeded, payment.Status)

	partial, err := svc.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billingdomain.InvoiceStatusPartiallyPaid, partial.Status)
	assert.Nil(t, partial.PaidAt)

	// Paying the remainder settles the invoice.
	_, err = svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    58.75,
	})
	require.NoError(t, err)

	settled, err := svc.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billingdomain.InvoiceStatusPaid, settled.Status)
}

func TestProcessPaymentRejectsOverpayment(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	_, err = svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    invoice.TotalAmount + 0.01,
	})
	assert.ErrorIs(t, err, billingdomain.ErrPaymentExceedsBalance)
}

func TestProcessPaymentFailureKeepsInvoicePending(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	adapter := mock.NewAdapter()
	svc := newBillingService(t, db, clk, adapter)

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	adapter.FailNext = true
	payment, err := svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    invoice.TotalAmount,
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.PaymentStatusFailed, payment.Status)
	require.NotNil(t, payment.FailureReason)

	unchanged, err := svc.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billingdomain.InvoiceStatusPending, unchanged.Status)
}

func TestProcessPaymentRejectsPaidInvoice(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	_, err = svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    invoice.TotalAmount,
	})
	require.NoError(t, err)

	_, err = svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    1,
	})
	assert.ErrorIs(t, err, billingdomain.ErrInvoiceNotPayable)
}

func TestProcessPaymentIdempotencyKeyReturnsPriorPayment(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	first, err := svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID:      invoice.ID,
		Amount:         invoice.TotalAmount,
		IdempotencyKey: "retry-key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.PaymentStatusSucceeded, first.Status)

	// A network retry replays the same request. It gets the payment that
	// was already minted instead of charging the invoice again.
	second, err := svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID:      invoice.ID,
		Amount:         invoice.TotalAmount,
		IdempotencyKey: "retry-key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&billingdomain.Payment{}).Where("invoice_id = ?", invoice.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// A different key against the settled invoice is still rejected.
	_, err = svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID:      invoice.ID,
		Amount:         1,
		IdempotencyKey: "retry-key-2",
	})
	assert.ErrorIs(t, err, billingdomain.ErrInvoiceNotPayable)
}

func TestProcessBillingCyclesAdvancesDueSubscriptions(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	monthly := &subscriptiondomain.Subscription{
		ID:              "3b8c6d4e-0000-4000-8000-000000000010",
		UserID:          "2a7b5c3d-0000-4000-8000-000000000001",
		Tier:            subscriptiondomain.TierProfessional,
		Status:          subscriptiondomain.StatusActive,
		BillingCycle:    subscriptiondomain.BillingCycleMonthly,
		Amount:          99,
		Currency:        "USD",
		NextBillingDate: now.AddDate(0, 0, -1),
	}
	annual := &subscriptiondomain.Subscription{
		ID:              "3b8c6d4e-0000-4000-8000-000000000011",
		UserID:          "2a7b5c3d-0000-4000-8000-000000000002",
		Tier:            subscriptiondomain.TierEnterprise,
		Status:          subscriptiondomain.StatusActive,
		BillingCycle:    subscriptiondomain.BillingCycleAnnual,
		Amount:          4999,
		Currency:        "USD",
		NextBillingDate: now,
	}
	future := &subscriptiondomain.Subscription{
		ID:              "3b8c6d4e-0000-4000-8000-000000000012",
		UserID:          "2a7b5c3d-0000-4000-8000-000000000003",
		Tier:            subscriptiondomain.TierBasic,
		Status:          subscriptiondomain.StatusActive,
		BillingCycle:    subscriptiondomain.BillingCycleMonthly,
		Amount:          29,
		Currency:        "USD",
		NextBillingDate: now.AddDate(0, 0, 10),
	}
	require.NoError(t, db.Create([]*subscriptiondomain.Subscription{monthly, annual, future}).Error)

	result, err := svc.ProcessBillingCycles(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Failed)

	var reloaded subscriptiondomain.Subscription
	require.NoError(t, db.First(&reloaded, "id = ?", monthly.ID).Error)
	assert.True(t, reloaded.NextBillingDate.After(now))
	assert.Equal(t, monthly.NextBillingDate.AddDate(0, 0, 30).Unix(), reloaded.NextBillingDate.Unix())

	reloaded = subscriptiondomain.Subscription{}
	require.NoError(t, db.First(&reloaded, "id = ?", annual.ID).Error)
	assert.Equal(t, now.AddDate(0, 0, 365).Unix(), reloaded.NextBillingDate.Unix())

	reloaded = subscriptiondomain.Subscription{}
	require.NoError(t, db.First(&reloaded, "id = ?", future.ID).Error)
	assert.Equal(t, future.NextBillingDate.Unix(), reloaded.NextBillingDate.Unix())

	invoices, err := svc.ListInvoices(ctx, monthly.UserID, nil)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, 99.0, invoices[0].Amount)
	assert.Equal(t, &monthly.ID, invoices[0].SubscriptionID)

	// The invoice covers the thirty days ending at the billing date that
	// came due.
	items, err := svc.GetInvoiceLineItems(ctx, invoices[0].ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	expected := fmt.Sprintf("%s plan (%s) - 2026-01-01 to 2026-01-31",
		subscriptiondomain.TierProfessional, subscriptiondomain.BillingCycleMonthly)
	assert.Equal(t, expected, items[0].Description)
	assert.Equal(t, "2026-01-31T00:00:00Z", items[0].Metadata["billing_period_end"])
}

func TestBillingAnalytics(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)
	_, err = svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000002",
		Amount: 200,
	})
	require.NoError(t, err)

	_, err = svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    invoice.TotalAmount,
	})
	require.NoError(t, err)

	analytics, err := svc.GetBillingAnalytics(ctx, now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), analytics.InvoiceCount)
	assert.Equal(t, int64(1), analytics.PaidCount)
	assert.Equal(t, 326.25, analytics.TotalInvoiced)
	assert.Equal(t, 108.75, analytics.TotalCollected)
	assert.Equal(t, 217.50, analytics.TotalOutstanding)
}

func TestRenderInvoicePDF(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID:      "2a7b5c3d-0000-4000-8000-000000000001",
		Amount:      100,
		Description: "Monthly platform fee",
	})
	require.NoError(t, err)

	pdf, err := svc.RenderInvoicePDF(ctx, invoice.ID)
	require.NoError(t, err)
	assert.True(t, len(pdf) > 0)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestApplyPaymentEventSettlesFailedPayment(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	adapter := mock.NewAdapter()
	svc := newBillingService(t, db, clk, adapter)

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	adapter.FailNext = true
	payment, err := svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    invoice.TotalAmount,
	})
	require.NoError(t, err)
	require.NotNil(t, payment.StripePaymentIntentID)

	// The processor later confirms the payment asynchronously.
	applied, err := svc.ApplyPaymentEvent(ctx, &paymentdomain.PaymentEvent{
		Provider: "mock",
		Type:     paymentdomain.EventTypePaymentSucceeded,
		IntentID: *payment.StripePaymentIntentID,
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.PaymentStatusSucceeded, applied.Status)

	settled, err := svc.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billingdomain.InvoiceStatusPaid, settled.Status)
}

func TestApplyPaymentEventReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	payment, err := svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    invoice.TotalAmount,
	})
	require.NoError(t, err)
	require.Equal(t, billingdomain.PaymentStatusSucceeded, payment.Status)

	event := &paymentdomain.PaymentEvent{
		Provider: "mock",
		Type:     paymentdomain.EventTypePaymentSucceeded,
		IntentID: *payment.StripePaymentIntentID,
	}
	first, err := svc.ApplyPaymentEvent(ctx, event)
	require.NoError(t, err)
	second, err := svc.ApplyPaymentEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	settled, err := svc.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billingdomain.InvoiceStatusPaid, settled.Status)
}

func TestApplyPaymentEventFailureDefaultsReason(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	adapter := mock.NewAdapter()
	svc := newBillingService(t, db, clk, adapter)

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	adapter.FailNext = true
	payment, err := svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    invoice.TotalAmount,
	})
	require.NoError(t, err)

	applied, err := svc.ApplyPaymentEvent(ctx, &paymentdomain.PaymentEvent{
		Provider: "mock",
		Type:     paymentdomain.EventTypePaymentFailed,
		IntentID: *payment.StripePaymentIntentID,
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.PaymentStatusFailed, applied.Status)
	require.NotNil(t, applied.FailureReason)
	assert.Equal(t, "payment failed", *applied.FailureReason)
}

func TestApplyPaymentEventRefund(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	invoice, err := svc.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
		UserID: "2a7b5c3d-0000-4000-8000-000000000001",
		Amount: 100,
	})
	require.NoError(t, err)

	payment, err := svc.ProcessPayment(ctx, billingdomain.ProcessPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    invoice.TotalAmount,
	})
	require.NoError(t, err)

	applied, err := svc.ApplyPaymentEvent(ctx, &paymentdomain.PaymentEvent{
		Provider: "mock",
		Type:     paymentdomain.EventTypeRefunded,
		IntentID: *payment.StripePaymentIntentID,
	})
	require.NoError(t, err)
	assert.Equal(t, billingdomain.PaymentStatusRefunded, applied.Status)
}

func TestApplyPaymentEventRejectsBadEvents(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Now())
	svc := newBillingService(t, db, clk, mock.NewAdapter())

	_, err := svc.ApplyPaymentEvent(ctx, nil)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)

	_, err = svc.ApplyPaymentEvent(ctx, &paymentdomain.PaymentEvent{
		Type: paymentdomain.EventTypePaymentSucceeded,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)

	_, err = svc.ApplyPaymentEvent(ctx, &paymentdomain.PaymentEvent{
		Type:     paymentdomain.EventTypePaymentSucceeded,
		IntentID: "pi_never_created",
	})
	assert.ErrorIs(t, err, billingdomain.ErrPaymentNotFound)
}
