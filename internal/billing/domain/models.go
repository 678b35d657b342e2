// Package domain contains persistence models for invoicing and payments.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusPending       InvoiceStatus = "pending"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusFailed        InvoiceStatus = "failed"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

// PaymentStatus represents payment lifecycle states.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

const PaymentTermsNet15 = "net_15"

// Invoice is a persisted bill with a unique number and a status lifecycle.
type Invoice struct {
	ID               string            `gorm:"type:uuid;primaryKey"`
	SubscriptionID   *string           `gorm:"type:uuid;index:idx_invoices_subscription"`
	UserID           string            `gorm:"type:uuid;not null;index:idx_invoices_user_id"`
	ClientID         *string           `gorm:"type:uuid"`
	InvoiceNumber    string            `gorm:"not null;uniqueIndex"`
	Amount           float64           `gorm:"type:decimal(15,2);not null"`
	Currency         string            `gorm:"type:varchar(10);not null;default:'USD'"`
	TaxAmount        float64           `gorm:"type:decimal(15,2);not null;default:0"`
	TotalAmount      float64           `gorm:"type:decimal(15,2);not null"`
	Status           InvoiceStatus     `gorm:"not null;default:'draft';index:idx_invoices_status"`
	DueDate          time.Time         `gorm:"not null;index:idx_invoices_due_date"`
	PaidAt           *time.Time        `gorm:""`
	StripeInvoiceID  *string           `gorm:"uniqueIndex"`
	StripeCustomerID *string           `gorm:""`
	PaymentTerms     string            `gorm:"default:'net_30'"`
	Notes            *string           `gorm:"type:text"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt        time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceLineItem is one immutable line on an invoice.
type InvoiceLineItem struct {
	ID          string            `gorm:"type:uuid;primaryKey"`
	InvoiceID   string            `gorm:"type:uuid;not null;index:idx_line_items_invoice"`
	Description string            `gorm:"not null"`
	Quantity    float64           `gorm:"type:decimal(10,2);not null;default:1"`
	UnitPrice   float64           `gorm:"type:decimal(15,2);not null"`
	TotalPrice  float64           `gorm:"type:decimal(15,2);not null"`
	TaxRate     float64           `gorm:"type:decimal(5,4);not null;default:0"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

// InvoiceSequence backs durable monotonic invoice numbering.
type InvoiceSequence struct {
	Name      string    `gorm:"primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }

// Payment records an attempt to settle an invoice through the processor.
type Payment struct {
	ID                    string            `gorm:"type:uuid;primaryKey"`
	InvoiceID             string            `gorm:"type:uuid;not null;index:idx_payments_invoice"`
	SubscriptionID        *string           `gorm:"type:uuid"`
	UserID                string            `gorm:"type:uuid;not null;index:idx_payments_user"`
	Amount                float64           `gorm:"type:decimal(15,2);not null"`
	Currency              string            `gorm:"type:varchar(10);not null;default:'USD'"`
	Status                PaymentStatus     `gorm:"not null;default:'pending';index:idx_payments_status"`
	PaymentMethodType     string            `gorm:"not null"`
	PaymentMethodDetails  datatypes.JSONMap `gorm:"type:jsonb;not null"`
	StripePaymentIntentID *string           `gorm:"index:idx_payments_stripe_intent"`
	StripeChargeID        *string           `gorm:""`
	IdempotencyKey        *string           `gorm:"index:idx_payments_idempotency"`
	FailureReason         *string           `gorm:"type:text"`
	ProcessedAt           *time.Time        `gorm:""`
	Metadata              datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt             time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// PaymentMethod is a stored payment instrument descriptor.
type PaymentMethod struct {
	ID                    string            `gorm:"type:uuid;primaryKey"`
	UserID                string            `gorm:"type:uuid;not null;index:idx_payment_methods_user"`
	StripePaymentMethodID string            `gorm:"not null;index:idx_payment_methods_stripe"`
	MethodType            string            `gorm:"not null"`
	IsDefault             bool              `gorm:"default:false"`
	CardLastFour          *string           `gorm:"type:varchar(4)"`
	CardBrand             *string           `gorm:"type:varchar(20)"`
	CardExpMonth          *int              `gorm:""`
	CardExpYear           *int              `gorm:""`
	BankName              *string           `gorm:"type:varchar(100)"`
	BankLastFour          *string           `gorm:"type:varchar(4)"`
	IsActive              bool              `gorm:"default:true"`
	Metadata              datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt             time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PaymentMethod) TableName() string { return "payment_methods" }
