package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	billingdomain "github.com/nockworks/revenue-engine/internal/billing/domain"
	"github.com/nockworks/revenue-engine/internal/billing/render"
	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	"github.com/nockworks/revenue-engine/internal/observability/metrics"
	paymentdomain "github.com/nockworks/revenue-engine/internal/payment/domain"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
	"github.com/nockworks/revenue-engine/pkg/db/option"
	"github.com/nockworks/revenue-engine/pkg/money"
	"github.com/nockworks/revenue-engine/pkg/repository"
)

const invoiceSequenceName = "invoice_number"

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Cfg       config.Config
	Revenue   *config.RevenueConfigHolder
	Processor paymentdomain.Processor
	Metrics   *metrics.Metrics
	Renderer  *render.Renderer
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.Config
	revenue *config.RevenueConfigHolder

	processor paymentdomain.Processor
	metrics   *metrics.Metrics
	renderer  *render.Renderer

	invoicerepo  repository.Repository[billingdomain.Invoice]
	lineitemrepo repository.Repository[billingdomain.InvoiceLineItem]
	paymentrepo  repository.Repository[billingdomain.Payment]
	subrepo      repository.Repository[subscriptiondomain.Subscription]
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("billing.service"),
		clock:   p.Clock,
		cfg:     p.Cfg,
		revenue: p.Revenue,

		processor: p.Processor,
		metrics:   p.Metrics,
		renderer:  p.Renderer,

		invoicerepo:  repository.ProvideStore[billingdomain.Invoice](p.DB),
		lineitemrepo: repository.ProvideStore[billingdomain.InvoiceLineItem](p.DB),
		paymentrepo:  repository.ProvideStore[billingdomain.Payment](p.DB),
		subrepo:      repository.ProvideStore[subscriptiondomain.Subscription](p.DB),
	}
}

// CreateSubscriptionInvoice writes the invoice, its line items and the
// sequence bump in one transaction. The invoice number is only visible
// once the whole write commits, so numbers never repeat after a crash.
func (s *Service) CreateSubscriptionInvoice(ctx context.Context, req billingdomain.CreateInvoiceRequest) (*billingdomain.Invoice, error) {
	for _, item := range req.LineItems {
		if item.UnitPrice < 0 || item.Quantity < 0 {
			return nil, billingdomain.ErrInvalidAmount
		}
	}

	amount := money.Round(req.Amount)
	if len(req.LineItems) > 0 {
		// Line items define the invoice amount. A caller supplying
		// both must agree with their sum, or tax lands on the wrong
		// base.
		sum := lineItemsTotal(req.LineItems)
		if amount != 0 && amount != sum {
			return nil, billingdomain.ErrInvalidAmount
		}
		amount = sum
	}
	if amount <= 0 {
		return nil, billingdomain.ErrInvalidAmount
	}

	rc := s.revenue.Get()
	now := s.clock.Now()

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	taxAmount := money.ApplyRate(amount, rc.TaxRate)
	totalAmount := money.Sum(amount, taxAmount)
	dueDate := now.AddDate(0, 0, rc.PaymentTermDays)

	invoice := &billingdomain.Invoice{
		ID:             uuid.NewString(),
		SubscriptionID: req.SubscriptionID,
		UserID:         req.UserID,
		Amount:         amount,
		Currency:       currency,
		TaxAmount:      taxAmount,
		TotalAmount:    totalAmount,
		Status:         billingdomain.InvoiceStatusPending,
		DueDate:        dueDate,
		PaymentTerms:   billingdomain.PaymentTermsNet15,
		Metadata:       datatypes.JSONMap{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := s.nextInvoiceNumber(tx)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = fmt.Sprintf("INV-%06d", seq)

		if err := s.invoicerepo.WithTrx(tx).Create(ctx, invoice); err != nil {
			return err
		}

		items := buildLineItems(invoice, req, rc.TaxRate, now)
		return s.lineitemrepo.WithTrx(tx).BatchCreate(ctx, items)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Float64("total_amount", invoice.TotalAmount),
	)
	return invoice, nil
}

// nextInvoiceNumber bumps the durable counter row and reads the new value.
// Must run inside the invoice-insert transaction.
func (s *Service) nextInvoiceNumber(tx *gorm.DB) (int64, error) {
	res := tx.Model(&billingdomain.InvoiceSequence{}).
		Where("name = ?", invoiceSequenceName).
		Updates(map[string]any{
			"value":      gorm.Expr("value + 1"),
			"updated_at": s.clock.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		seed := &billingdomain.InvoiceSequence{Name: invoiceSequenceName, Value: 1, UpdatedAt: s.clock.Now()}
		if err := tx.Create(seed).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}

	var seq billingdomain.InvoiceSequence
	if err := tx.Where("name = ?", invoiceSequenceName).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.Value, nil
}

// lineItemsTotal sums the line totals with the same quantity defaulting
// the persisted items use.
func lineItemsTotal(items []billingdomain.LineItemInput) float64 {
	totals := make([]float64, 0, len(items))
	for _, in := range items {
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		totals = append(totals, money.Mul(in.UnitPrice, qty))
	}
	return money.Sum(totals...)
}

func buildLineItems(invoice *billingdomain.Invoice, req billingdomain.CreateInvoiceRequest, taxRate float64, now time.Time) []*billingdomain.InvoiceLineItem {
	if len(req.LineItems) == 0 {
		description := req.Description
		if description == "" {
			description = "Subscription charge"
		}
		metadata := datatypes.JSONMap{}
		if req.PeriodStart != nil && req.PeriodEnd != nil {
			description = fmt.Sprintf("%s - %s to %s",
				description,
				req.PeriodStart.UTC().Format("2006-01-02"),
				req.PeriodEnd.UTC().Format("2006-01-02"),
			)
			metadata["billing_period_start"] = req.PeriodStart.UTC().Format(time.RFC3339)
			metadata["billing_period_end"] = req.PeriodEnd.UTC().Format(time.RFC3339)
		}
		return []*billingdomain.InvoiceLineItem{{
			ID:          uuid.NewString(),
			InvoiceID:   invoice.ID,
			Description: description,
			Quantity:    1,
			UnitPrice:   invoice.Amount,
			TotalPrice:  invoice.Amount,
			TaxRate:     taxRate,
			Metadata:    metadata,
			CreatedAt:   now,
		}}
	}

	items := make([]*billingdomain.InvoiceLineItem, 0, len(req.LineItems))
	for _, in := range req.LineItems {
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		items = append(items, &billingdomain.InvoiceLineItem{
			ID:          uuid.NewString(),
			InvoiceID:   invoice.ID,
			Description: in.Description,
			Quantity:    qty,
			UnitPrice:   money.Round(in.UnitPrice),
			TotalPrice:  money.Mul(in.UnitPrice, qty),
			TaxRate:     taxRate,
			Metadata:    datatypes.JSONMap{},
			CreatedAt:   now,
		})
	}
	return items
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*billingdomain.Invoice, error) {
	invoice, err := s.invoicerepo.FindOne(ctx, &billingdomain.Invoice{ID: id})
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, billingdomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, userID string, status *billingdomain.InvoiceStatus) ([]*billingdomain.Invoice, error) {
	filter := &billingdomain.Invoice{UserID: userID}
	if status != nil {
		filter.Status = *status
	}
	return s.invoicerepo.Find(ctx, filter, option.OrderBy("created_at DESC"))
}

func (s *Service) GetInvoiceLineItems(ctx context.Context, invoiceID string) ([]*billingdomain.InvoiceLineItem, error) {
	if _, err := s.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.lineitemrepo.Find(ctx, &billingdomain.InvoiceLineItem{InvoiceID: invoiceID}, option.OrderBy("created_at ASC"))
}

func (s *Service) RenderInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	items, err := s.lineitemrepo.Find(ctx, &billingdomain.InvoiceLineItem{InvoiceID: invoiceID}, option.OrderBy("created_at ASC"))
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(invoice, items)
}

// ProcessPayment records a payment attempt and drives it through the
// configured processor. The processor call runs under a deadline so a
// slow provider cannot wedge the request.
func (s *Service) ProcessPayment(ctx context.Context, req billingdomain.ProcessPaymentRequest) (*billingdomain.Payment, error) {
	if req.Amount <= 0 {
		return nil, billingdomain.ErrInvalidAmount
	}

	invoice, err := s.GetInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	// A retried request with the same idempotency key returns the payment
	// it already minted instead of charging the invoice again.
	if req.IdempotencyKey != "" {
		prior, err := s.paymentrepo.FindOne(ctx, &billingdomain.Payment{
			InvoiceID:      invoice.ID,
			IdempotencyKey: &req.IdempotencyKey,
		})
		if err != nil {
			return nil, err
		}
		if prior != nil {
			return prior, nil
		}
	}

	switch invoice.Status {
	case billingdomain.InvoiceStatusPending, billingdomain.InvoiceStatusPartiallyPaid, billingdomain.InvoiceStatusFailed:
	default:
		return nil, billingdomain.ErrInvoiceNotPayable
	}

	settled, err := s.settledAmount(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	remaining := money.Sum(invoice.TotalAmount, -settled)
	if money.Round(req.Amount) > remaining {
		return nil, billingdomain.ErrPaymentExceedsBalance
	}

	now := s.clock.Now()
	methodType := req.PaymentMethodType
	if methodType == "" {
		methodType = "card"
	}

	payment := &billingdomain.Payment{
		ID:                uuid.NewString(),
		InvoiceID:         invoice.ID,
		SubscriptionID:    invoice.SubscriptionID,
		UserID:            invoice.UserID,
		Amount:            money.Round(req.Amount),
		Currency:          invoice.Currency,
		Status:            billingdomain.PaymentStatusPending,
		PaymentMethodType: methodType,
		PaymentMethodDetails: datatypes.JSONMap{
			"type": methodType,
		},
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.PaymentMethodID != nil {
		payment.PaymentMethodDetails["payment_method_id"] = *req.PaymentMethodID
	}
	if req.IdempotencyKey != "" {
		payment.IdempotencyKey = &req.IdempotencyKey
	}
	if err := s.paymentrepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	intentCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.PaymentTimeoutSec)*time.Second)
	defer cancel()

	intent, err := s.processor.CreatePaymentIntent(intentCtx, paymentdomain.CreateIntentRequest{
		AmountCents:    int64(money.Mul(payment.Amount, 100)),
		Currency:       payment.Currency,
		Description:    "Invoice " + invoice.InvoiceNumber,
		IdempotencyKey: req.IdempotencyKey,
		Metadata: map[string]string{
			"invoice_id": invoice.ID,
			"payment_id": payment.ID,
		},
	})
	if err != nil {
		reason := err.Error()
		payment.Status = billingdomain.PaymentStatusFailed
		payment.FailureReason = &reason
		payment.UpdatedAt = s.clock.Now()
		if updateErr := s.paymentrepo.Update(ctx, payment.ID, payment); updateErr != nil {
			s.log.Error("mark payment failed", zap.Error(updateErr), zap.String("payment_id", payment.ID))
		}
		s.metrics.RecordPaymentEvent(ctx, s.processor.Provider(), "failed")
		s.log.Warn("payment intent failed",
			zap.String("payment_id", payment.ID),
			zap.String("invoice_id", invoice.ID),
			zap.Error(err),
		)
		return payment, nil
	}

	payment.StripePaymentIntentID = &intent.ID

	switch intent.Status {
	case paymentdomain.IntentStatusSucceeded:
		if err := s.applySuccessfulPayment(ctx, invoice, payment, settled); err != nil {
			return nil, err
		}
		s.metrics.RecordPaymentEvent(ctx, s.processor.Provider(), "succeeded")
	case paymentdomain.IntentStatusFailed:
		reason := "payment declined"
		payment.Status = billingdomain.PaymentStatusFailed
		payment.FailureReason = &reason
		payment.UpdatedAt = s.clock.Now()
		if err := s.paymentrepo.Update(ctx, payment.ID, payment); err != nil {
			return nil, err
		}
		s.metrics.RecordPaymentEvent(ctx, s.processor.Provider(), "failed")
	default:
		payment.Status = billingdomain.PaymentStatusProcessing
		payment.UpdatedAt = s.clock.Now()
		if err := s.paymentrepo.Update(ctx, payment.ID, payment); err != nil {
			return nil, err
		}
		s.metrics.RecordPaymentEvent(ctx, s.processor.Provider(), "processing")
	}

	return payment, nil
}

// applySuccessfulPayment flips the payment to succeeded and moves the
// invoice to paid or partially_paid in the same transaction.
func (s *Service) applySuccessfulPayment(ctx context.Context, invoice *billingdomain.Invoice, payment *billingdomain.Payment, previouslySettled float64) error {
	now := s.clock.Now()
	payment.Status = billingdomain.PaymentStatusSucceeded
	payment.ProcessedAt = &now
	payment.UpdatedAt = now

	settled := money.Sum(previouslySettled, payment.Amount)
	if settled >= invoice.TotalAmount {
		invoice.Status = billingdomain.InvoiceStatusPaid
		invoice.PaidAt = &now
	} else {
		invoice.Status = billingdomain.InvoiceStatusPartiallyPaid
	}
	invoice.UpdatedAt = now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentrepo.WithTrx(tx).Update(ctx, payment.ID, payment); err != nil {
			return err
		}
		return s.invoicerepo.WithTrx(tx).Update(ctx, invoice.ID, invoice)
	})
}

func (s *Service) settledAmount(ctx context.Context, invoiceID string) (float64, error) {
	payments, err := s.paymentrepo.Find(ctx, &billingdomain.Payment{
		InvoiceID: invoiceID,
		Status:    billingdomain.PaymentStatusSucceeded,
	})
	if err != nil {
		return 0, err
	}
	amounts := make([]float64, 0, len(payments))
	for _, p := range payments {
		amounts = append(amounts, p.Amount)
	}
	return money.Sum(amounts...), nil
}

// ApplyPaymentEvent settles a payment from a verified webhook event.
// Events for intents we never recorded and replays of an already-settled
// payment are both no-ops on the invoice.
func (s *Service) ApplyPaymentEvent(ctx context.Context, event *paymentdomain.PaymentEvent) (*billingdomain.Payment, error) {
	if event == nil || event.IntentID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	payment, err := s.paymentrepo.FindOne(ctx, &billingdomain.Payment{}, option.Where("stripe_payment_intent_id = ?", event.IntentID))
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, billingdomain.ErrPaymentNotFound
	}

	now := s.clock.Now()
	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		if payment.Status == billingdomain.PaymentStatusSucceeded {
			return payment, nil
		}
		invoice, err := s.GetInvoice(ctx, payment.InvoiceID)
		if err != nil {
			return nil, err
		}
		settled, err := s.settledAmount(ctx, invoice.ID)
		if err != nil {
			return nil, err
		}
		if err := s.applySuccessfulPayment(ctx, invoice, payment, settled); err != nil {
			return nil, err
		}
		s.metrics.RecordPaymentEvent(ctx, event.Provider, "succeeded")
	case paymentdomain.EventTypePaymentFailed:
		reason := event.FailureReason
		if reason == "" {
			reason = "payment failed"
		}
		payment.Status = billingdomain.PaymentStatusFailed
		payment.FailureReason = &reason
		payment.UpdatedAt = now
		if err := s.paymentrepo.Update(ctx, payment.ID, payment); err != nil {
			return nil, err
		}
		s.metrics.RecordPaymentEvent(ctx, event.Provider, "failed")
	case paymentdomain.EventTypeRefunded:
		payment.Status = billingdomain.PaymentStatusRefunded
		payment.UpdatedAt = now
		if err := s.paymentrepo.Update(ctx, payment.ID, payment); err != nil {
			return nil, err
		}
		s.metrics.RecordPaymentEvent(ctx, event.Provider, "refunded")
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	s.log.Info("payment event applied",
		zap.String("payment_id", payment.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("provider", event.Provider),
	)
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (*billingdomain.Payment, error) {
	payment, err := s.paymentrepo.FindOne(ctx, &billingdomain.Payment{ID: id})
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, billingdomain.ErrPaymentNotFound
	}
	return payment, nil
}

// ProcessBillingCycles invoices every active subscription whose billing
// date has arrived and advances it to the next period. A failure on one
// subscription is logged and does not stop the rest of the batch.
func (s *Service) ProcessBillingCycles(ctx context.Context, now time.Time) (*billingdomain.BillingCycleResult, error) {
	due, err := s.subrepo.Find(ctx,
		&subscriptiondomain.Subscription{Status: subscriptiondomain.StatusActive},
		option.Where("next_billing_date <= ?", now),
		option.OrderBy("next_billing_date ASC"),
	)
	if err != nil {
		return nil, err
	}

	result := &billingdomain.BillingCycleResult{}
	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.processBillingCycle(ctx, sub, now); err != nil {
			result.Failed++
			s.log.Error("billing cycle failed",
				zap.String("subscription_id", sub.ID),
				zap.Error(err),
			)
			continue
		}
		result.Processed++
	}

	if result.Processed > 0 || result.Failed > 0 {
		s.log.Info("billing cycles processed",
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

func (s *Service) processBillingCycle(ctx context.Context, sub *subscriptiondomain.Subscription, now time.Time) error {
	days := 30
	if sub.BillingCycle == subscriptiondomain.BillingCycleAnnual {
		days = 365
	}

	if sub.Amount > 0 {
		// Billing is in arrears: the period just served ends at the
		// billing date that came due.
		periodEnd := sub.NextBillingDate
		periodStart := periodEnd.AddDate(0, 0, -days)
		description := fmt.Sprintf("%s plan (%s)", sub.Tier, sub.BillingCycle)
		if _, err := s.CreateSubscriptionInvoice(ctx, billingdomain.CreateInvoiceRequest{
			SubscriptionID: &sub.ID,
			UserID:         sub.UserID,
			Amount:         sub.Amount,
			Currency:       sub.Currency,
			Description:    description,
			PeriodStart:    &periodStart,
			PeriodEnd:      &periodEnd,
		}); err != nil {
			return err
		}
	}

	next := sub.NextBillingDate
	// Catch up if the scheduler was down across multiple periods.
	for !next.After(now) {
		next = next.AddDate(0, 0, days)
	}

	sub.NextBillingDate = next
	sub.UpdatedAt = now
	return s.subrepo.Update(ctx, sub.ID, sub)
}

func (s *Service) GetBillingAnalytics(ctx context.Context, start, end time.Time) (*billingdomain.BillingAnalytics, error) {
	analytics := &billingdomain.BillingAnalytics{PeriodStart: start, PeriodEnd: end}

	type invoiceAgg struct {
		TotalInvoiced float64
		InvoiceCount  int64
		PaidCount     int64
	}
	var inv invoiceAgg
	err := s.db.WithContext(ctx).Model(&billingdomain.Invoice{}).
		Select(
			"COALESCE(SUM(total_amount), 0) AS total_invoiced, "+
				"COUNT(*) AS invoice_count, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS paid_count",
			billingdomain.InvoiceStatusPaid,
		).
		Where("created_at >= ? AND created_at < ?", start, end).
		Where("status <> ?", billingdomain.InvoiceStatusCancelled).
		Scan(&inv).Error
	if err != nil {
		return nil, err
	}

	var collected float64
	err = s.db.WithContext(ctx).Model(&billingdomain.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ?", billingdomain.PaymentStatusSucceeded).
		Where("created_at >= ? AND created_at < ?", start, end).
		Scan(&collected).Error
	if err != nil {
		return nil, err
	}

	analytics.TotalInvoiced = money.Round(inv.TotalInvoiced)
	analytics.TotalCollected = money.Round(collected)
	analytics.TotalOutstanding = money.Sum(inv.TotalInvoiced, -collected)
	analytics.InvoiceCount = inv.InvoiceCount
	analytics.PaidCount = inv.PaidCount
	if inv.TotalInvoiced > 0 {
		analytics.CollectionRate = money.Round(collected / inv.TotalInvoiced * 100)
	}
	return analytics, nil
}
