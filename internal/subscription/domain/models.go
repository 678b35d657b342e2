// Package domain contains persistence models for platform subscriptions.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Tier identifies a platform subscription plan.
type Tier string

const (
	TierFree         Tier = "free"
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Status represents subscription lifecycle states.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusPastDue   Status = "past_due"
)

// BillingCycle is how often a subscription renews.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

// Subscription is a recurring platform plan attached to a user.
type Subscription struct {
	ID                   string            `gorm:"type:uuid;primaryKey"`
	UserID               string            `gorm:"type:uuid;not null;index:idx_subscriptions_user_id"`
	Tier                 Tier              `gorm:"not null;index:idx_subscriptions_tier"`
	Status               Status            `gorm:"not null;default:'active';index:idx_subscriptions_status"`
	BillingCycle         BillingCycle      `gorm:"not null;default:'monthly'"`
	Amount               float64           `gorm:"type:decimal(10,2);not null"`
	Currency             string            `gorm:"type:varchar(10);not null;default:'USD'"`
	NextBillingDate      time.Time         `gorm:"not null;index:idx_subscriptions_billing_date"`
	StripeSubscriptionID *string           `gorm:"uniqueIndex"`
	StripeCustomerID     *string           `gorm:""`
	TrialEndDate         *time.Time        `gorm:""`
	CancelledAt          *time.Time        `gorm:""`
	PausedAt             *time.Time        `gorm:""`
	Metadata             datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt            time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// SubscriptionUsage tracks metered usage for one subscription and period.
type SubscriptionUsage struct {
	ID             string            `gorm:"type:uuid;primaryKey"`
	SubscriptionID string            `gorm:"type:uuid;not null;index:idx_usage_subscription"`
	UserID         string            `gorm:"type:uuid;not null"`
	UsageType      string            `gorm:"not null;index:idx_usage_type"`
	UsageCount     int64             `gorm:"not null;default:0"`
	PeriodStart    time.Time         `gorm:"not null;index:idx_usage_period"`
	PeriodEnd      time.Time         `gorm:"not null;index:idx_usage_period"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SubscriptionUsage) TableName() string { return "subscription_usage" }

// SubscriptionEvent is an append-only record of a lifecycle change.
type SubscriptionEvent struct {
	ID             string            `gorm:"type:uuid;primaryKey"`
	SubscriptionID string            `gorm:"type:uuid;not null;index:idx_events_subscription"`
	UserID         string            `gorm:"type:uuid;not null"`
	EventType      string            `gorm:"not null;index:idx_events_type"`
	OldTier        *string           `gorm:""`
	NewTier        *string           `gorm:""`
	OldAmount      *float64          `gorm:"type:decimal(10,2)"`
	NewAmount      *float64          `gorm:"type:decimal(10,2)"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"default:CURRENT_TIMESTAMP;index:idx_events_created"`
}

// TableName sets the database table name.
func (SubscriptionEvent) TableName() string { return "subscription_events" }
