// Package domain contains persistence models for analytics subscriptions
// and their usage metering.
package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SubscriptionStatus represents analytics subscription lifecycle states.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusSuspended SubscriptionStatus = "suspended"
	StatusExpired   SubscriptionStatus = "expired"
	StatusTrial     SubscriptionStatus = "trial"
)

// Usage types metered against subscription limits.
const (
	UsageAPIRequest       = "api_request"
	UsageIndicatorCreated = "indicator_created"
	UsageDashboardCreated = "dashboard_created"
	UsageAlertCreated     = "alert_created"
)

// UsageLimits is the per-tier quota set stored on the subscription row.
type UsageLimits struct {
	APIRequestsPerHour int64  `json:"api_requests_per_hour"`
	CustomIndicators   int64  `json:"custom_indicators"`
	DashboardCount     int64  `json:"dashboard_count"`
	AlertCount         int64  `json:"alert_count"`
	ReportFrequency    string `json:"report_frequency"`
}

// CurrentUsage is the cached counter set stored on the subscription row.
// The usage log remains the source of truth; these are fast-path copies.
type CurrentUsage struct {
	APIRequestsToday  int64     `json:"api_requests_today"`
	IndicatorsCreated int64     `json:"indicators_created"`
	DashboardsCreated int64     `json:"dashboards_created"`
	AlertsActive      int64     `json:"alerts_active"`
	LastReset         time.Time `json:"last_reset"`
}

// AnalyticsSubscription grants a user a tier of API quotas and features.
type AnalyticsSubscription struct {
	ID              string             `gorm:"type:uuid;primaryKey"`
	UserID          string             `gorm:"type:uuid;not null;index:idx_analytics_subscriptions_user"`
	Tier            Tier               `gorm:"not null;index:idx_analytics_subscriptions_tier"`
	Status          SubscriptionStatus `gorm:"not null;default:'active';index:idx_analytics_subscriptions_status"`
	FeaturesEnabled datatypes.JSON     `gorm:""`
	UsageLimits     datatypes.JSON     `gorm:"not null"`
	CurrentUsage    datatypes.JSON     `gorm:""`
	APIKeyHash      *string            `gorm:""`
	CreatedAt       time.Time          `gorm:"default:CURRENT_TIMESTAMP"`
	ExpiresAt       time.Time          `gorm:"not null"`
	UpdatedAt       time.Time          `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AnalyticsSubscription) TableName() string { return "analytics_subscriptions" }

// Limits decodes the usage_limits column.
func (s *AnalyticsSubscription) Limits() (UsageLimits, error) {
	var limits UsageLimits
	err := json.Unmarshal(s.UsageLimits, &limits)
	return limits, err
}

// Usage decodes the current_usage column.
func (s *AnalyticsSubscription) Usage() (CurrentUsage, error) {
	var usage CurrentUsage
	if len(s.CurrentUsage) == 0 {
		return usage, nil
	}
	err := json.Unmarshal(s.CurrentUsage, &usage)
	return usage, err
}

// AnalyticsUsageLog is one append-only metering record.
type AnalyticsUsageLog struct {
	ID             string            `gorm:"type:uuid;primaryKey"`
	UserID         string            `gorm:"type:uuid;not null;index:idx_analytics_usage_user"`
	SubscriptionID string            `gorm:"type:uuid;not null;index:idx_analytics_usage_subscription"`
	UsageType      string            `gorm:"not null;index:idx_analytics_usage_type"`
	UsageCount     int64             `gorm:"default:1"`
	Endpoint       *string           `gorm:""`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"default:CURRENT_TIMESTAMP;index:idx_analytics_usage_created"`
}

// TableName sets the database table name.
func (AnalyticsUsageLog) TableName() string { return "analytics_usage_logs" }
