package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StreamMiningPool              = "mining_pool"
	StreamPremiumAnalytics        = "premium_analytics"
	StreamBridgeFees              = "bridge_fees"
	StreamOTCTrading              = "otc_trading"
	StreamEnterpriseServices      = "enterprise_services"
	StreamPerformanceOptimization = "performance_optimization"
	StreamCustody                 = "custody"
	StreamAPILicensing            = "api_licensing"
)

// StreamTypes lists every journaled revenue stream.
var StreamTypes = []string{
	StreamMiningPool,
	StreamPremiumAnalytics,
	StreamBridgeFees,
	StreamOTCTrading,
	StreamEnterpriseServices,
	StreamPerformanceOptimization,
	StreamCustody,
	StreamAPILicensing,
}

// RevenueStream is one journaled revenue event.
type RevenueStream struct {
	ID            string  `gorm:"primaryKey;type:uuid"`
	StreamType    string  `gorm:"not null;index"`
	Amount        float64 `gorm:"not null"`
	Currency      string  `gorm:"size:10;not null;default:USD"`
	UserID        *string `gorm:"type:uuid;index"`
	ClientID      *string `gorm:"type:uuid"`
	TransactionID *string `gorm:"type:uuid"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"index"`
}

func (RevenueStream) TableName() string { return "revenue_streams" }

// AnalyticsCacheEntry mirrors a cached analytics payload so the cache
// survives a redis flush.
type AnalyticsCacheEntry struct {
	ID            string         `gorm:"primaryKey;type:uuid"`
	AnalyticsType string         `gorm:"not null;index"`
	PeriodStart   time.Time      `gorm:"not null"`
	PeriodEnd     time.Time      `gorm:"not null"`
	AnalyticsData datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time
	ExpiresAt     time.Time `gorm:"not null"`
}

func (AnalyticsCacheEntry) TableName() string { return "revenue_analytics_cache" }

// ForecastingModel records one forecast run and the parameters behind it.
type ForecastingModel struct {
	ID              string         `gorm:"primaryKey;type:uuid"`
	ModelName       string         `gorm:"not null;index"`
	ModelType       string         `gorm:"not null"`
	ModelParameters datatypes.JSON `gorm:"type:jsonb;not null"`
	AccuracyScore   *float64
	LastTrained     *time.Time
	IsActive        bool `gorm:"default:true;index"`
	CreatedAt       time.Time
}

func (ForecastingModel) TableName() string { return "revenue_forecasting_models" }
