package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	analyticsdomain "github.com/nockworks/revenue-engine/internal/analytics/domain"
	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	"github.com/nockworks/revenue-engine/internal/observability/metrics"
	"github.com/nockworks/revenue-engine/internal/ratelimit"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
	"github.com/nockworks/revenue-engine/pkg/db/option"
	"github.com/nockworks/revenue-engine/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Revenue *config.RevenueConfigHolder
	Metrics *metrics.Metrics
	Window  *ratelimit.HourlyWindow `optional:"true"`
	SubSvc  subscriptiondomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	revenue *config.RevenueConfigHolder
	metrics *metrics.Metrics
	window  *ratelimit.HourlyWindow
	subSvc  subscriptiondomain.Service

	subrepo repository.Repository[analyticsdomain.AnalyticsSubscription]
	logrepo repository.Repository[analyticsdomain.AnalyticsUsageLog]
}

func NewService(p ServiceParam) analyticsdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("analytics.service"),
		clock:   p.Clock,
		revenue: p.Revenue,
		metrics: p.Metrics,
		window:  p.Window,
		subSvc:  p.SubSvc,

		subrepo: repository.ProvideStore[analyticsdomain.AnalyticsSubscription](p.DB),
		logrepo: repository.ProvideStore[analyticsdomain.AnalyticsUsageLog](p.DB),
	}
}

// CreateSubscription grants the analytics tier and opens the billing
// subscription that pays for it. The plaintext API key is returned once;
// only its bcrypt hash is stored.
func (s *Service) CreateSubscription(ctx context.Context, req analyticsdomain.CreateSubscriptionRequest) (*analyticsdomain.CreateSubscriptionResponse, error) {
	price, ok := req.Tier.MonthlyPriceUSD()
	if !ok {
		return nil, analyticsdomain.ErrUnknownTier
	}

	duration := req.DurationMonths
	if duration <= 0 {
		duration = 1
	}

	now := s.clock.Now()
	apiKey := "ak_" + strings.ToLower(ulid.Make().String())
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	hashStr := string(hash)

	limits, err := json.Marshal(req.Tier.DefaultLimits())
	if err != nil {
		return nil, err
	}
	usage, err := json.Marshal(analyticsdomain.CurrentUsage{LastReset: now})
	if err != nil {
		return nil, err
	}
	features, err := json.Marshal(req.Tier.Features())
	if err != nil {
		return nil, err
	}

	subscription := &analyticsdomain.AnalyticsSubscription{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Tier:            req.Tier,
		Status:          analyticsdomain.StatusActive,
		FeaturesEnabled: features,
		UsageLimits:     limits,
		CurrentUsage:    usage,
		APIKeyHash:      &hashStr,
		CreatedAt:       now,
		ExpiresAt:       now.AddDate(0, 0, duration*30),
		UpdatedAt:       now,
	}
	if err := s.subrepo.Create(ctx, subscription); err != nil {
		return nil, err
	}

	// Analytics plans bill through a platform subscription with a trial.
	trialDays := s.revenue.Get().TrialPeriodDays
	billingTier := billingTierFor(req.Tier)
	if _, err := s.subSvc.CreateSubscription(ctx, subscriptiondomain.CreateSubscriptionRequest{
		UserID:          req.UserID,
		Tier:            billingTier,
		BillingCycle:    subscriptiondomain.BillingCycleMonthly,
		CustomAmountUSD: &price,
		TrialDays:       &trialDays,
	}); err != nil {
		return nil, err
	}

	s.log.Info("analytics subscription created",
		zap.String("subscription_id", subscription.ID),
		zap.String("tier", string(subscription.Tier)),
	)
	return &analyticsdomain.CreateSubscriptionResponse{
		Subscription: subscription,
		APIKey:       apiKey,
	}, nil
}

func billingTierFor(tier analyticsdomain.Tier) subscriptiondomain.Tier {
	switch tier {
	case analyticsdomain.TierBasic:
		return subscriptiondomain.TierBasic
	case analyticsdomain.TierProfessional, analyticsdomain.TierAPI:
		return subscriptiondomain.TierProfessional
	case analyticsdomain.TierEnterprise:
		return subscriptiondomain.TierEnterprise
	default:
		return subscriptiondomain.TierBasic
	}
}

func (s *Service) GetUserSubscription(ctx context.Context, userID string) (*analyticsdomain.AnalyticsSubscription, error) {
	subscription, err := s.subrepo.FindOne(ctx,
		&analyticsdomain.AnalyticsSubscription{UserID: userID},
		option.OrderBy("created_at DESC"),
	)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, analyticsdomain.ErrSubscriptionNotFound
	}
	return subscription, nil
}

func (s *Service) VerifyAPIKey(ctx context.Context, userID, apiKey string) error {
	subscription, err := s.GetUserSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if subscription.APIKeyHash == nil {
		return analyticsdomain.ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*subscription.APIKeyHash), []byte(apiKey)); err != nil {
		return analyticsdomain.ErrInvalidAPIKey
	}
	return nil
}

// TrackUsage checks the limit first and only then writes. A rejected
// increment leaves no trace in the usage log.
func (s *Service) TrackUsage(ctx context.Context, req analyticsdomain.TrackUsageRequest) (bool, error) {
	count := req.Count
	if count <= 0 {
		count = 1
	}

	subscription, err := s.GetUserSubscription(ctx, req.UserID)
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	if subscription.Status != analyticsdomain.StatusActive && subscription.Status != analyticsdomain.StatusTrial {
		return false, analyticsdomain.ErrSubscriptionInactive
	}
	if subscription.ExpiresAt.Before(now) {
		return false, analyticsdomain.ErrSubscriptionInactive
	}

	limits, err := subscription.Limits()
	if err != nil {
		return false, err
	}
	usage, err := subscription.Usage()
	if err != nil {
		return false, err
	}

	within := true
	switch req.UsageType {
	case analyticsdomain.UsageAPIRequest:
		hourly, err := s.GetHourlyAPIUsage(ctx, req.UserID, now)
		if err != nil {
			return false, err
		}
		within = hourly+count <= limits.APIRequestsPerHour
	case analyticsdomain.UsageIndicatorCreated:
		within = usage.IndicatorsCreated+count <= limits.CustomIndicators
	case analyticsdomain.UsageDashboardCreated:
		within = usage.DashboardsCreated+count <= limits.DashboardCount
	case analyticsdomain.UsageAlertCreated:
		within = usage.AlertsActive+count <= limits.AlertCount
	}

	if !within {
		s.metrics.RecordUsageTracked(ctx, req.UsageType, false)
		s.metrics.RecordRateLimitDenied(ctx, string(subscription.Tier), req.UsageType, "limit_exceeded")
		s.log.Warn("usage limit exceeded",
			zap.String("user_id", req.UserID),
			zap.String("usage_type", req.UsageType),
		)
		return false, nil
	}

	entry := &analyticsdomain.AnalyticsUsageLog{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		SubscriptionID: subscription.ID,
		UsageType:      req.UsageType,
		UsageCount:     count,
		Endpoint:       req.Endpoint,
		Metadata:       datatypes.JSONMap(req.Metadata),
		CreatedAt:      now,
	}

	switch req.UsageType {
	case analyticsdomain.UsageIndicatorCreated:
		usage.IndicatorsCreated += count
	case analyticsdomain.UsageDashboardCreated:
		usage.DashboardsCreated += count
	case analyticsdomain.UsageAlertCreated:
		usage.AlertsActive += count
	case analyticsdomain.UsageAPIRequest:
		usage.APIRequestsToday += count
	}
	updatedUsage, err := json.Marshal(usage)
	if err != nil {
		return false, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.logrepo.WithTrx(tx).Create(ctx, entry); err != nil {
			return err
		}
		return tx.Model(&analyticsdomain.AnalyticsSubscription{}).
			Where("id = ?", subscription.ID).
			Updates(map[string]any{
				"current_usage": datatypes.JSON(updatedUsage),
				"updated_at":    now,
			}).Error
	})
	if err != nil {
		return false, err
	}

	if req.UsageType == analyticsdomain.UsageAPIRequest && s.window != nil {
		if _, err := s.window.Incr(ctx, req.UserID, now, count); err != nil {
			// The counter reseeds itself from the log on the next read.
			s.log.Warn("hourly window increment failed", zap.Error(err))
		}
	}

	s.metrics.RecordUsageTracked(ctx, req.UsageType, true)
	s.metrics.RecordRateLimitAllowed(ctx, string(subscription.Tier), req.UsageType)
	return true, nil
}

// GetHourlyAPIUsage reads the cached hourly counter, seeding it from the
// usage log on a cold start so the hot path never scans log rows.
func (s *Service) GetHourlyAPIUsage(ctx context.Context, userID string, now time.Time) (int64, error) {
	if s.window != nil {
		cached, ok, err := s.window.Current(ctx, userID, now)
		if err == nil && ok {
			return cached, nil
		}
		if err != nil {
			s.log.Warn("hourly window read failed", zap.Error(err))
		}
	}

	total, err := s.hourlyUsageFromLogs(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	if s.window != nil {
		if err := s.window.Seed(ctx, userID, now, total); err != nil {
			s.log.Warn("hourly window seed failed", zap.Error(err))
		}
	}
	return total, nil
}

func (s *Service) hourlyUsageFromLogs(ctx context.Context, userID string, now time.Time) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&analyticsdomain.AnalyticsUsageLog{}).
		Select("COALESCE(SUM(usage_count), 0)").
		Where("user_id = ? AND usage_type = ?", userID, analyticsdomain.UsageAPIRequest).
		Where("created_at >= ?", now.Add(-time.Hour)).
		Scan(&total).Error
	return total, err
}

// ResetUsageCounters zeroes the cached counters once a calendar month has
// passed since last_reset. Alert counts survive the reset because alerts
// stay active across periods.
func (s *Service) ResetUsageCounters(ctx context.Context, now time.Time) (*analyticsdomain.UsageResetResult, error) {
	subscriptions, err := s.subrepo.Find(ctx, &analyticsdomain.AnalyticsSubscription{})
	if err != nil {
		return nil, err
	}

	result := &analyticsdomain.UsageResetResult{}
	for _, subscription := range subscriptions {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		usage, err := subscription.Usage()
		if err != nil {
			result.Skipped++
			s.log.Error("usage decode failed",
				zap.String("subscription_id", subscription.ID),
				zap.Error(err),
			)
			continue
		}
		if usage.LastReset.AddDate(0, 1, 0).After(now) {
			result.Skipped++
			continue
		}

		usage.APIRequestsToday = 0
		usage.IndicatorsCreated = 0
		usage.DashboardsCreated = 0
		usage.LastReset = now

		updated, err := json.Marshal(usage)
		if err != nil {
			result.Skipped++
			continue
		}
		err = s.db.WithContext(ctx).Model(&analyticsdomain.AnalyticsSubscription{}).
			Where("id = ?", subscription.ID).
			Updates(map[string]any{
				"current_usage": datatypes.JSON(updated),
				"updated_at":    now,
			}).Error
		if err != nil {
			result.Skipped++
			s.log.Error("usage reset failed",
				zap.String("subscription_id", subscription.ID),
				zap.Error(err),
			)
			continue
		}
		result.Reset++
	}

	if result.Reset > 0 {
		s.log.Info("usage counters reset", zap.Int("reset", result.Reset))
	}
	return result, nil
}
