package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	revenuedomain "github.com/nockworks/revenue-engine/internal/revenue/domain"
	revenueservice "github.com/nockworks/revenue-engine/internal/revenue/service"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&revenuedomain.RevenueStream{},
		&revenuedomain.AnalyticsCacheEntry{},
		&revenuedomain.ForecastingModel{},
		&subscriptiondomain.Subscription{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

type triggerRecorder struct {
	mu      sync.Mutex
	streams []string
}

func (r *triggerRecorder) TriggerOptimization(_ context.Context, streamType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams = append(r.streams, streamType)
}

func (r *triggerRecorder) fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.streams...)
}

func newRevenueService(t *testing.T, db *gorm.DB, clk clock.Clock, trigger revenuedomain.OptimizerTrigger) revenuedomain.Service {
	t.Helper()
	return revenueservice.NewService(revenueservice.ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clk,
		Revenue:   config.NewStaticRevenueConfigHolder(config.DefaultRevenueConfig()),
		Optimizer: trigger,
	})
}

func TestRecordStream(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	trigger := &triggerRecorder{}
	svc := newRevenueService(t, db, clock.NewFakeClock(now), trigger)

	stream, err := svc.RecordStream(ctx, revenuedomain.RecordStreamRequest{
		StreamType: revenuedomain.StreamBridgeFees,
		Amount:     12.505,
	})
	require.NoError(t, err)
	assert.Equal(t, 12.51, stream.Amount)
	assert.Equal(t, "USD", stream.Currency)
	require.NotNil(t, stream.ProcessedAt)

	var count int64
	require.NoError(t, db.Model(&revenuedomain.RevenueStream{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Empty(t, trigger.fired())
}

func TestRecordStreamValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newRevenueService(t, db, clock.NewFakeClock(time.Now()), nil)

	_, err := svc.RecordStream(ctx, revenuedomain.RecordStreamRequest{
		StreamType: "lemonade_stand",
		Amount:     10,
	})
	assert.ErrorIs(t, err, revenuedomain.ErrUnknownStreamType)

	_, err = svc.RecordStream(ctx, revenuedomain.RecordStreamRequest{
		StreamType: revenuedomain.StreamCustody,
		Amount:     0,
	})
	assert.ErrorIs(t, err, revenuedomain.ErrInvalidAmount)
}

func TestRecordStreamTriggersOptimizerAboveThreshold(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	trigger := &triggerRecorder{}
	svc := newRevenueService(t, db, clock.NewFakeClock(time.Now()), trigger)

	// At the threshold: no trigger.
	_, err := svc.RecordStream(ctx, revenuedomain.RecordStreamRequest{
		StreamType: revenuedomain.StreamOTCTrading,
		Amount:     1000,
	})
	require.NoError(t, err)
	assert.Empty(t, trigger.fired())

	_, err = svc.RecordStream(ctx, revenuedomain.RecordStreamRequest{
		StreamType: revenuedomain.StreamEnterpriseServices,
		Amount:     1000.01,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{revenuedomain.StreamEnterpriseServices}, trigger.fired())
}

func TestForecastTrendArithmetic(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	svc := newRevenueService(t, db, clk, nil)

	// Four days of revenue: 100, 100, 150, 150.
	for _, amount := range []float64{100, 100, 150, 150} {
		_, err := svc.RecordStream(ctx, revenuedomain.RecordStreamRequest{
			StreamType: revenuedomain.StreamPremiumAnalytics,
			Amount:     amount,
		})
		require.NoError(t, err)
		clk.Advance(24 * time.Hour)
	}

	forecast, err := svc.GenerateForecast(ctx, 30, 30, clk.Now())
	require.NoError(t, err)

	// First half 200, second half 300: trend +50%. Average daily 125.
	assert.Equal(t, 4, forecast.SampleDays)
	assert.InDelta(t, 50.0, forecast.TrendPct, 0.001)
	assert.Equal(t, 125.0, forecast.AvgDailyUSD)
	// 125 x 1.5 x 30 days.
	assert.Equal(t, 5625.0, forecast.PredictedUSD)
	assert.Equal(t, 0.50, forecast.AccuracyScore)
	assert.Equal(t, 2812.5, forecast.ConfidenceLowUSD)
	assert.Equal(t, 8437.5, forecast.ConfidenceHighUSD)

	// The run is journaled as the single active model.
	var models []revenuedomain.ForecastingModel
	require.NoError(t, db.Order("created_at ASC").Find(&models).Error)
	require.Len(t, models, 1)
	assert.True(t, models[0].IsActive)
	require.NotNil(t, models[0].AccuracyScore)
	assert.Equal(t, 0.50, *models[0].AccuracyScore)

	_, err = svc.GenerateForecast(ctx, 30, 90, clk.Now())
	require.NoError(t, err)
	require.NoError(t, db.Order("created_at ASC").Find(&models).Error)
	require.Len(t, models, 2)
	assert.False(t, models[0].IsActive)
	assert.True(t, models[1].IsActive)
}

func TestForecastEmptyWindow(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	svc := newRevenueService(t, db, clock.NewFakeClock(now), nil)

	forecast, err := svc.GenerateForecast(ctx, 30, 30, now)
	require.NoError(t, err)
	assert.Equal(t, 0, forecast.SampleDays)
	assert.Equal(t, 0.0, forecast.PredictedUSD)
	assert.Equal(t, 0.50, forecast.AccuracyScore)
}

func TestGetProgress(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	// Day 15 of a 30-day month.
	now := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	svc := newRevenueService(t, db, clock.NewFakeClock(now), nil)

	seeds := []struct {
		streamType string
		amount     float64
	}{
		{revenuedomain.StreamPremiumAnalytics, 19_500},
		{revenuedomain.StreamBridgeFees, 64_500},
		{revenuedomain.StreamEnterpriseServices, 30_000},
	}
	for _, seed := range seeds {
		_, err := svc.RecordStream(ctx, revenuedomain.RecordStreamRequest{
			StreamType: seed.streamType,
			Amount:     seed.amount,
		})
		require.NoError(t, err)
	}

	progress, err := svc.GetProgress(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, 114_000.0, progress.CurrentRevenueUSD)
	assert.Equal(t, 2_095_000.0, progress.MonthlyTargetUSD)
	assert.InDelta(t, 5.44, progress.TotalProgressPct, 0.01)
	assert.Equal(t, 10.0, progress.SubscriptionProgressPct)
	assert.Equal(t, 10.0, progress.TransactionProgressPct)
	assert.Equal(t, 10.0, progress.EnterpriseProgressPct)
	// Half the month elapsed: projection doubles the current total.
	assert.Equal(t, 228_000.0, progress.ProjectedMonthlyUSD)
}

func TestGetAnalyticsMirrorsCacheTable(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	svc := newRevenueService(t, db, clock.NewFakeClock(now), nil)

	_, err := svc.RecordStream(ctx, revenuedomain.RecordStreamRequest{
		StreamType: revenuedomain.StreamCustody,
		Amount:     5000,
	})
	require.NoError(t, err)

	require.NoError(t, db.Create(&subscriptiondomain.Subscription{
		ID:              "a11ce806-0000-4000-8000-000000000001",
		UserID:          "a11ce806-0000-4000-8000-000000000002",
		Tier:            subscriptiondomain.TierProfessional,
		Status:          subscriptiondomain.StatusActive,
		BillingCycle:    subscriptiondomain.BillingCycleMonthly,
		Amount:          99,
		Currency:        "USD",
		NextBillingDate: now.AddDate(0, 0, 30),
		CreatedAt:       now,
		UpdatedAt:       now,
	}).Error)

	analytics, err := svc.GetAnalytics(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, analytics.TotalRevenueUSD)
	assert.Equal(t, 99.0, analytics.MonthlyRecurringUSD)
	assert.Equal(t, 1188.0, analytics.AnnualRecurringUSD)
	assert.Equal(t, 5000.0, analytics.RevenueByStream[revenuedomain.StreamCustody])
	assert.Equal(t, int64(1), analytics.ActiveCustomers)
	assert.Equal(t, 5000.0, analytics.AvgRevenuePerUserUSD)
	assert.Equal(t, 120_000.0, analytics.CustomerLifetimeUSD)

	var entries []revenuedomain.AnalyticsCacheEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "revenue_summary", entries[0].AnalyticsType)
	assert.Equal(t, now.Add(5*time.Minute), entries[0].ExpiresAt)
}

func TestSweepCache(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	svc := newRevenueService(t, db, clock.NewFakeClock(now), nil)

	entries := []revenuedomain.AnalyticsCacheEntry{
		{
			ID:            "b22ce806-0000-4000-8000-000000000001",
			AnalyticsType: "revenue_summary",
			PeriodStart:   now.Add(-time.Hour),
			PeriodEnd:     now,
			AnalyticsData: []byte(`{}`),
			ExpiresAt:     now.Add(-time.Minute),
		},
		{
			ID:            "b22ce806-0000-4000-8000-000000000002",
			AnalyticsType: "revenue_summary",
			PeriodStart:   now.Add(-time.Hour),
			PeriodEnd:     now,
			AnalyticsData: []byte(`{}`),
			ExpiresAt:     now.Add(time.Minute),
		},
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}

	removed, err := svc.SweepCache(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var remaining []revenuedomain.AnalyticsCacheEntry
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "b22ce806-0000-4000-8000-000000000002", remaining[0].ID)
}
