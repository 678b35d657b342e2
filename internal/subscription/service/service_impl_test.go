package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nockworks/revenue-engine/internal/clock"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
	subscriptionservice "github.com/nockworks/revenue-engine/internal/subscription/service"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.SubscriptionEvent{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newSubscriptionService(t *testing.T, db *gorm.DB, clk clock.Clock) subscriptiondomain.Service {
	t.Helper()
	return subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
	})
}

func countEvents(t *testing.T, db *gorm.DB, subscriptionID, eventType string) int64 {
	t.Helper()
	var count int64
	err := db.Model(&subscriptiondomain.SubscriptionEvent{}).
		Where("subscription_id = ? AND event_type = ?", subscriptionID, eventType).
		Count(&count).Error
	require.NoError(t, err)
	return count
}

func TestCreateSubscriptionUsesCatalogPrice(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := newSubscriptionService(t, db, clock.NewFakeClock(now))

	subscription, err := svc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID: "5daef806-0000-4000-8000-000000000001",
		Tier:   subscriptiondomain.TierProfessional,
	})
	require.NoError(t, err)

	assert.Equal(t, 99.0, subscription.Amount)
	assert.Equal(t, subscriptiondomain.BillingCycleMonthly, subscription.BillingCycle)
	assert.Equal(t, now.AddDate(0, 0, 30), subscription.NextBillingDate)
	assert.Equal(t, int64(1), countEvents(t, db, subscription.ID, "subscription_created"))
}

func TestCreateSubscriptionTrialDefersFirstBill(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := newSubscriptionService(t, db, clock.NewFakeClock(now))

	amount := 299.0
	trial := 14
	subscription, err := svc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID:          "5daef806-0000-4000-8000-000000000002",
		Tier:            subscriptiondomain.TierProfessional,
		CustomAmountUSD: &amount,
		TrialDays:       &trial,
	})
	require.NoError(t, err)

	assert.Equal(t, 299.0, subscription.Amount)
	require.NotNil(t, subscription.TrialEndDate)
	assert.Equal(t, now.AddDate(0, 0, 14), *subscription.TrialEndDate)
	// Trial shorter than the cycle keeps the normal billing date.
	assert.Equal(t, now.AddDate(0, 0, 30), subscription.NextBillingDate)
}

func TestCreateSubscriptionRejectsUnknownTier(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newSubscriptionService(t, db, clock.NewFakeClock(time.Now()))

	_, err := svc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID: "5daef806-0000-4000-8000-000000000003",
		Tier:   subscriptiondomain.Tier("platinum"),
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrUnknownTier)
}

func TestChangeTier(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newSubscriptionService(t, db, clock.NewFakeClock(time.Now()))

	subscription, err := svc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID: "5daef806-0000-4000-8000-000000000004",
		Tier:   subscriptiondomain.TierBasic,
	})
	require.NoError(t, err)

	upgraded, err := svc.ChangeTier(ctx, subscriptiondomain.ChangeTierRequest{
		SubscriptionID: subscription.ID,
		NewTier:        subscriptiondomain.TierEnterprise,
	})
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.TierEnterprise, upgraded.Tier)
	assert.Equal(t, 499.0, upgraded.Amount)
	assert.Equal(t, int64(1), countEvents(t, db, subscription.ID, "tier_changed"))

	var event subscriptiondomain.SubscriptionEvent
	require.NoError(t, db.Where("subscription_id = ? AND event_type = ?", subscription.ID, "tier_changed").First(&event).Error)
	require.NotNil(t, event.OldTier)
	assert.Equal(t, "basic", *event.OldTier)
	require.NotNil(t, event.NewAmount)
	assert.Equal(t, 499.0, *event.NewAmount)
}

func TestCancelSubscription(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newSubscriptionService(t, db, clock.NewFakeClock(time.Now()))

	subscription, err := svc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID: "5daef806-0000-4000-8000-000000000005",
		Tier:   subscriptiondomain.TierBasic,
	})
	require.NoError(t, err)

	cancelled, err := svc.CancelSubscription(ctx, subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = svc.CancelSubscription(ctx, subscription.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrAlreadyCancelled)
}

func TestSubscriptionAnalytics(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newSubscriptionService(t, db, clock.NewFakeClock(time.Now()))

	_, err := svc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID: "5daef806-0000-4000-8000-000000000006",
		Tier:   subscriptiondomain.TierBasic,
	})
	require.NoError(t, err)
	_, err = svc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID:       "5daef806-0000-4000-8000-000000000007",
		Tier:         subscriptiondomain.TierProfessional,
		BillingCycle: subscriptiondomain.BillingCycleAnnual,
	})
	require.NoError(t, err)
	dropped, err := svc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID: "5daef806-0000-4000-8000-000000000008",
		Tier:   subscriptiondomain.TierBasic,
	})
	require.NoError(t, err)
	_, err = svc.CancelSubscription(ctx, dropped.ID)
	require.NoError(t, err)

	analytics, err := svc.GetAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), analytics.TotalActive)
	assert.Equal(t, int64(1), analytics.ByTier[subscriptiondomain.TierBasic])
	assert.Equal(t, 29.0, analytics.RevenueByTier[subscriptiondomain.TierBasic])
	assert.Equal(t, 83.25, analytics.RevenueByTier[subscriptiondomain.TierProfessional])
	assert.Equal(t, 5.0, analytics.ChurnRatePct)
}
