package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownStreamType is returned for stream types outside the journal set.
	ErrUnknownStreamType = errors.New("unknown revenue stream type")

	// ErrInvalidAmount is returned for non-positive stream amounts.
	ErrInvalidAmount = errors.New("stream amount must be positive")
)

// OptimizerTrigger receives a nudge when a single stream event is large
// enough to warrant a re-optimization pass.
type OptimizerTrigger interface {
	TriggerOptimization(ctx context.Context, streamType string)
}

// RecordStreamRequest journals one revenue event.
type RecordStreamRequest struct {
	StreamType    string         `json:"stream_type" binding:"required"`
	Amount        float64        `json:"amount" binding:"required"`
	Currency      string         `json:"currency"`
	UserID        *string        `json:"user_id"`
	ClientID      *string        `json:"client_id"`
	TransactionID *string        `json:"transaction_id"`
	Metadata      map[string]any `json:"metadata"`
}

// Progress reports month-to-date revenue against targets.
type Progress struct {
	TotalProgressPct        float64 `json:"total_progress_pct"`
	SubscriptionProgressPct float64 `json:"subscription_progress_pct"`
	TransactionProgressPct  float64 `json:"transaction_progress_pct"`
	EnterpriseProgressPct   float64 `json:"enterprise_progress_pct"`
	MonthlyTargetUSD        float64 `json:"monthly_target_usd"`
	CurrentRevenueUSD       float64 `json:"current_revenue_usd"`
	ProjectedMonthlyUSD     float64 `json:"projected_monthly_usd"`
}

// Forecast is a trailing-mean extrapolation of the daily revenue series.
// It is baseline arithmetic, not a trained model.
type Forecast struct {
	WindowDays       int       `json:"window_days"`
	HorizonDays      int       `json:"horizon_days"`
	SampleDays       int       `json:"sample_days"`
	AvgDailyUSD      float64   `json:"avg_daily_usd"`
	TrendPct         float64   `json:"trend_pct"`
	PredictedUSD     float64   `json:"predicted_usd"`
	ConfidenceLowUSD float64   `json:"confidence_low_usd"`
	ConfidenceHighUSD float64  `json:"confidence_high_usd"`
	AccuracyScore    float64   `json:"accuracy_score"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// RevenueAnalytics is the cached cross-stream summary.
type RevenueAnalytics struct {
	TotalRevenueUSD         float64            `json:"total_revenue_usd"`
	MonthlyRecurringUSD     float64            `json:"monthly_recurring_usd"`
	AnnualRecurringUSD      float64            `json:"annual_recurring_usd"`
	RevenueByStream         map[string]float64 `json:"revenue_by_stream"`
	ActiveCustomers         int64              `json:"active_customers"`
	AvgRevenuePerUserUSD    float64            `json:"avg_revenue_per_user_usd"`
	CustomerLifetimeUSD     float64            `json:"customer_lifetime_usd"`
	ChurnRatePct            float64            `json:"churn_rate_pct"`
	GrowthRatePct           float64            `json:"growth_rate_pct"`
	ConversionRatePct       float64            `json:"conversion_rate_pct"`
	Forecast30dUSD          float64            `json:"forecast_30d_usd"`
	Forecast90dUSD          float64            `json:"forecast_90d_usd"`
	Forecast12mUSD          float64            `json:"forecast_12m_usd"`
	Timestamp               time.Time          `json:"timestamp"`
}

// Dashboard aggregates the live revenue picture for the API.
type Dashboard struct {
	Targets   Targets          `json:"targets"`
	Progress  Progress         `json:"progress"`
	Analytics RevenueAnalytics `json:"analytics"`
}

// Service journals revenue streams and reports progress and forecasts.
type Service interface {
	RecordStream(ctx context.Context, req RecordStreamRequest) (*RevenueStream, error)
	ListStreams(ctx context.Context, streamType string, limit int) ([]*RevenueStream, error)
	GetProgress(ctx context.Context, now time.Time) (*Progress, error)

	// GenerateForecast extrapolates the trailing windowDays of daily
	// revenue over horizonDays and persists the run.
	GenerateForecast(ctx context.Context, windowDays, horizonDays int, now time.Time) (*Forecast, error)

	GetAnalytics(ctx context.Context, now time.Time) (*RevenueAnalytics, error)
	GetDashboard(ctx context.Context, now time.Time) (*Dashboard, error)

	// SweepCache removes expired analytics cache rows and returns the count.
	SweepCache(ctx context.Context, now time.Time) (int64, error)
}
