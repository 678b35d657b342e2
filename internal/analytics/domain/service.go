package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSubscriptionNotFound is returned when a user has no analytics
	// subscription.
	ErrSubscriptionNotFound = errors.New("analytics subscription not found")

	// ErrUnknownTier is returned for tiers outside the plan catalog.
	ErrUnknownTier = errors.New("unknown analytics tier")

	// ErrSubscriptionInactive is returned when metering against a
	// suspended or expired subscription.
	ErrSubscriptionInactive = errors.New("analytics subscription inactive")

	// ErrInvalidAPIKey is returned when an API key does not match.
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// CreateSubscriptionRequest purchases an analytics plan.
type CreateSubscriptionRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	Tier           Tier   `json:"tier" binding:"required"`
	DurationMonths int    `json:"duration_months"`
}

// CreateSubscriptionResponse carries the one-time plaintext API key.
// Only the bcrypt hash is stored.
type CreateSubscriptionResponse struct {
	Subscription *AnalyticsSubscription `json:"subscription"`
	APIKey       string                 `json:"api_key"`
}

// TrackUsageRequest meters one usage increment.
type TrackUsageRequest struct {
	UserID    string         `json:"user_id" binding:"required"`
	UsageType string         `json:"usage_type" binding:"required"`
	Count     int64          `json:"count"`
	Endpoint  *string        `json:"endpoint"`
	Metadata  map[string]any `json:"metadata"`
}

// UsageResetResult summarizes one periodic counter reset run.
type UsageResetResult struct {
	Reset   int `json:"reset"`
	Skipped int `json:"skipped"`
}

// Service manages analytics subscriptions and usage metering.
type Service interface {
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*CreateSubscriptionResponse, error)
	GetUserSubscription(ctx context.Context, userID string) (*AnalyticsSubscription, error)
	VerifyAPIKey(ctx context.Context, userID, apiKey string) error

	// TrackUsage returns whether the increment was within limits. A
	// rejected increment writes no log row.
	TrackUsage(ctx context.Context, req TrackUsageRequest) (bool, error)
	GetHourlyAPIUsage(ctx context.Context, userID string, now time.Time) (int64, error)

	// ResetUsageCounters zeroes cached counters for subscriptions whose
	// last reset is older than one month.
	ResetUsageCounters(ctx context.Context, now time.Time) (*UsageResetResult, error)
}
