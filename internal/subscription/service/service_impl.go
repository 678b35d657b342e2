package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nockworks/revenue-engine/internal/clock"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
	"github.com/nockworks/revenue-engine/pkg/db/option"
	"github.com/nockworks/revenue-engine/pkg/money"
	"github.com/nockworks/revenue-engine/pkg/repository"
)

const cacheTTL = time.Hour

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	redis *redis.Client

	subrepo   repository.Repository[subscriptiondomain.Subscription]
	eventrepo repository.Repository[subscriptiondomain.SubscriptionEvent]
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		clock: p.Clock,
		redis: p.Redis,

		subrepo:   repository.ProvideStore[subscriptiondomain.Subscription](p.DB),
		eventrepo: repository.ProvideStore[subscriptiondomain.SubscriptionEvent](p.DB),
	}
}

// CreateSubscription opens a plan and journals the creation event in the
// same transaction. Trial days push the first bill past the trial end.
func (s *Service) CreateSubscription(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	cycle := req.BillingCycle
	if cycle == "" {
		cycle = subscriptiondomain.BillingCycleMonthly
	}

	amount, ok := subscriptiondomain.PriceFor(req.Tier, cycle)
	if !ok {
		return nil, subscriptiondomain.ErrUnknownTier
	}
	if req.CustomAmountUSD != nil {
		amount = *req.CustomAmountUSD
	}

	now := s.clock.Now()
	periodDays := 30
	if cycle == subscriptiondomain.BillingCycleAnnual {
		periodDays = 365
	}
	nextBilling := now.AddDate(0, 0, periodDays)

	var trialEnd *time.Time
	if req.TrialDays != nil && *req.TrialDays > 0 {
		end := now.AddDate(0, 0, *req.TrialDays)
		trialEnd = &end
		if end.After(nextBilling) {
			nextBilling = end
		}
	}

	subscription := &subscriptiondomain.Subscription{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Tier:            req.Tier,
		Status:          subscriptiondomain.StatusActive,
		BillingCycle:    cycle,
		Amount:          money.Round(amount),
		Currency:        "USD",
		NextBillingDate: nextBilling,
		TrialEndDate:    trialEnd,
		Metadata:        datatypes.JSONMap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	newTier := string(req.Tier)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.subrepo.WithTrx(tx).Create(ctx, subscription); err != nil {
			return err
		}
		return s.logEvent(ctx, tx, subscription, "subscription_created", nil, &newTier, nil, &subscription.Amount)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", subscription.ID),
		zap.String("tier", string(subscription.Tier)),
		zap.String("billing_cycle", string(subscription.BillingCycle)),
	)
	return subscription, nil
}

func (s *Service) GetSubscription(ctx context.Context, id string) (*subscriptiondomain.Subscription, error) {
	if cached := s.readCache(ctx, id); cached != nil {
		return cached, nil
	}

	subscription, err := s.subrepo.FindOne(ctx, &subscriptiondomain.Subscription{ID: id})
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}

	s.writeCache(ctx, subscription)
	return subscription, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, userID string) ([]*subscriptiondomain.Subscription, error) {
	filter := &subscriptiondomain.Subscription{}
	if userID != "" {
		filter.UserID = userID
	}
	return s.subrepo.Find(ctx, filter, option.OrderBy("created_at DESC"))
}

// ChangeTier moves the subscription to a new plan at the current cycle's
// price and journals the old and new values.
func (s *Service) ChangeTier(ctx context.Context, req subscriptiondomain.ChangeTierRequest) (*subscriptiondomain.Subscription, error) {
	newAmount, ok := subscriptiondomain.PriceFor(req.NewTier, subscriptiondomain.BillingCycleMonthly)
	if !ok {
		return nil, subscriptiondomain.ErrUnknownTier
	}

	subscription, err := s.GetSubscription(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if subscription.Status == subscriptiondomain.StatusCancelled {
		return nil, subscriptiondomain.ErrAlreadyCancelled
	}

	if subscription.BillingCycle == subscriptiondomain.BillingCycleAnnual {
		newAmount, _ = subscriptiondomain.PriceFor(req.NewTier, subscriptiondomain.BillingCycleAnnual)
	}

	oldTier := string(subscription.Tier)
	oldAmount := subscription.Amount
	newTier := string(req.NewTier)

	subscription.Tier = req.NewTier
	subscription.Amount = money.Round(newAmount)
	subscription.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.subrepo.WithTrx(tx).Update(ctx, subscription.ID, subscription); err != nil {
			return err
		}
		return s.logEvent(ctx, tx, subscription, "tier_changed", &oldTier, &newTier, &oldAmount, &subscription.Amount)
	})
	if err != nil {
		return nil, err
	}

	s.dropCache(ctx, subscription.ID)
	return subscription, nil
}

func (s *Service) CancelSubscription(ctx context.Context, id string) (*subscriptiondomain.Subscription, error) {
	subscription, err := s.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription.Status == subscriptiondomain.StatusCancelled {
		return nil, subscriptiondomain.ErrAlreadyCancelled
	}

	now := s.clock.Now()
	oldTier := string(subscription.Tier)
	subscription.Status = subscriptiondomain.StatusCancelled
	subscription.CancelledAt = &now
	subscription.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := map[string]any{
			"status":       subscription.Status,
			"cancelled_at": now,
			"updated_at":   now,
		}
		if err := tx.Model(&subscriptiondomain.Subscription{}).
			Where("id = ?", subscription.ID).Updates(update).Error; err != nil {
			return err
		}
		return s.logEvent(ctx, tx, subscription, "subscription_cancelled", &oldTier, nil, &subscription.Amount, nil)
	})
	if err != nil {
		return nil, err
	}

	s.dropCache(ctx, subscription.ID)
	s.log.Info("subscription cancelled", zap.String("subscription_id", subscription.ID))
	return subscription, nil
}

func (s *Service) GetAnalytics(ctx context.Context) (*subscriptiondomain.SubscriptionAnalytics, error) {
	analytics := &subscriptiondomain.SubscriptionAnalytics{
		ByTier:            map[subscriptiondomain.Tier]int64{},
		RevenueByTier:     map[subscriptiondomain.Tier]float64{},
		ChurnRatePct:      subscriptiondomain.DefaultChurnRatePct,
		GrowthRatePct:     subscriptiondomain.DefaultGrowthRatePct,
		ConversionRatePct: subscriptiondomain.DefaultConversionRatePct,
	}

	type tierRow struct {
		Tier    subscriptiondomain.Tier
		Total   int64
		Revenue float64
	}
	var rows []tierRow
	err := s.db.WithContext(ctx).Model(&subscriptiondomain.Subscription{}).
		Select(
			"tier, COUNT(*) AS total, " +
				"COALESCE(SUM(CASE WHEN billing_cycle = 'annual' THEN amount / 12 ELSE amount END), 0) AS revenue",
		).
		Where("status = ?", subscriptiondomain.StatusActive).
		Group("tier").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		analytics.TotalActive += row.Total
		analytics.ByTier[row.Tier] = row.Total
		analytics.RevenueByTier[row.Tier] = money.Round(row.Revenue)
		analytics.MonthlyRecurring = money.Sum(analytics.MonthlyRecurring, row.Revenue)
	}
	return analytics, nil
}

func (s *Service) logEvent(ctx context.Context, tx *gorm.DB, subscription *subscriptiondomain.Subscription, eventType string, oldTier, newTier *string, oldAmount, newAmount *float64) error {
	event := &subscriptiondomain.SubscriptionEvent{
		ID:             uuid.NewString(),
		SubscriptionID: subscription.ID,
		UserID:         subscription.UserID,
		EventType:      eventType,
		OldTier:        oldTier,
		NewTier:        newTier,
		OldAmount:      oldAmount,
		NewAmount:      newAmount,
		Metadata:       datatypes.JSONMap{},
		CreatedAt:      s.clock.Now(),
	}
	return s.eventrepo.WithTrx(tx).Create(ctx, event)
}

func cacheKey(id string) string { return "subscription:" + id }

func (s *Service) readCache(ctx context.Context, id string) *subscriptiondomain.Subscription {
	if s.redis == nil {
		return nil
	}
	payload, err := s.redis.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var subscription subscriptiondomain.Subscription
	if err := json.Unmarshal(payload, &subscription); err != nil {
		return nil
	}
	return &subscription
}

func (s *Service) writeCache(ctx context.Context, subscription *subscriptiondomain.Subscription) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(subscription)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(subscription.ID), payload, cacheTTL).Err(); err != nil {
		s.log.Debug("subscription cache write failed", zap.Error(err))
	}
}

func (s *Service) dropCache(ctx context.Context, id string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, cacheKey(id)).Err(); err != nil {
		s.log.Debug("subscription cache invalidation failed", zap.Error(err))
	}
}
