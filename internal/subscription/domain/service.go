package domain

import (
	"context"
	"errors"
)

var (
	// ErrSubscriptionNotFound is returned when the subscription id does not exist.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrUnknownTier is returned for tiers outside the plan catalog.
	ErrUnknownTier = errors.New("unknown subscription tier")

	// ErrAlreadyCancelled is returned when cancelling a cancelled subscription.
	ErrAlreadyCancelled = errors.New("subscription already cancelled")
)

// CreateSubscriptionRequest opens a new platform subscription. A custom
// amount overrides the catalog price; trial days push out the first bill.
type CreateSubscriptionRequest struct {
	UserID          string       `json:"user_id" binding:"required"`
	Tier            Tier         `json:"tier" binding:"required"`
	BillingCycle    BillingCycle `json:"billing_cycle"`
	CustomAmountUSD *float64     `json:"custom_amount_usd"`
	TrialDays       *int         `json:"trial_days"`
}

// ChangeTierRequest moves a subscription to a different plan.
type ChangeTierRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
	NewTier        Tier   `json:"new_tier" binding:"required"`
}

// SubscriptionAnalytics summarizes the subscriber base.
type SubscriptionAnalytics struct {
	TotalActive       int64            `json:"total_active"`
	ByTier            map[Tier]int64   `json:"by_tier"`
	MonthlyRecurring  float64          `json:"monthly_recurring_usd"`
	ChurnRatePct      float64          `json:"churn_rate_pct"`
	GrowthRatePct     float64          `json:"growth_rate_pct"`
	ConversionRatePct float64          `json:"conversion_rate_pct"`
	RevenueByTier     map[Tier]float64 `json:"revenue_by_tier"`
}

// Service manages platform subscription lifecycles.
type Service interface {
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]*Subscription, error)
	ChangeTier(ctx context.Context, req ChangeTierRequest) (*Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*Subscription, error)
	GetAnalytics(ctx context.Context) (*SubscriptionAnalytics, error)
}
