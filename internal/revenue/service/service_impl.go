package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	"github.com/nockworks/revenue-engine/internal/observability/metrics"
	revenuedomain "github.com/nockworks/revenue-engine/internal/revenue/domain"
	subscriptiondomain "github.com/nockworks/revenue-engine/internal/subscription/domain"
	"github.com/nockworks/revenue-engine/pkg/db/option"
	"github.com/nockworks/revenue-engine/pkg/money"
	"github.com/nockworks/revenue-engine/pkg/repository"
)

const (
	analyticsCacheKey = "revenue:analytics:current"
	analyticsCacheTTL = 5 * time.Minute

	forecastModelName = "trailing_mean_baseline"
	forecastModelType = "baseline_extrapolation"

	defaultListLimit = 100
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Revenue   *config.RevenueConfigHolder
	Metrics   *metrics.Metrics
	Redis     *redis.Client                  `optional:"true"`
	Optimizer revenuedomain.OptimizerTrigger `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	revenue   *config.RevenueConfigHolder
	metrics   *metrics.Metrics
	redis     *redis.Client
	optimizer revenuedomain.OptimizerTrigger

	streamrepo repository.Repository[revenuedomain.RevenueStream]
	cacherepo  repository.Repository[revenuedomain.AnalyticsCacheEntry]
	modelrepo  repository.Repository[revenuedomain.ForecastingModel]
}

func NewService(p ServiceParam) revenuedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("revenue.service"),
		clock:     p.Clock,
		revenue:   p.Revenue,
		metrics:   p.Metrics,
		redis:     p.Redis,
		optimizer: p.Optimizer,

		streamrepo: repository.ProvideStore[revenuedomain.RevenueStream](p.DB),
		cacherepo:  repository.ProvideStore[revenuedomain.AnalyticsCacheEntry](p.DB),
		modelrepo:  repository.ProvideStore[revenuedomain.ForecastingModel](p.DB),
	}
}

// RecordStream journals one revenue event. Events above the optimize
// threshold nudge the optimizer for a re-optimization pass.
func (s *Service) RecordStream(ctx context.Context, req revenuedomain.RecordStreamRequest) (*revenuedomain.RevenueStream, error) {
	if !validStreamType(req.StreamType) {
		return nil, revenuedomain.ErrUnknownStreamType
	}
	if req.Amount <= 0 {
		return nil, revenuedomain.ErrInvalidAmount
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	now := s.clock.Now()
	stream := &revenuedomain.RevenueStream{
		ID:            uuid.NewString(),
		StreamType:    req.StreamType,
		Amount:        money.Round(req.Amount),
		Currency:      currency,
		UserID:        req.UserID,
		ClientID:      req.ClientID,
		TransactionID: req.TransactionID,
		Metadata:      datatypes.JSONMap(req.Metadata),
		ProcessedAt:   &now,
		CreatedAt:     now,
	}
	if err := s.streamrepo.Create(ctx, stream); err != nil {
		return nil, err
	}

	s.metrics.RecordRevenueStream(ctx, stream.StreamType, stream.Amount)

	if stream.Amount > s.revenue.Get().OptimizeThreshold && s.optimizer != nil {
		s.optimizer.TriggerOptimization(ctx, stream.StreamType)
	}

	s.log.Info("revenue stream recorded",
		zap.String("stream_type", stream.StreamType),
		zap.Float64("amount", stream.Amount),
	)
	return stream, nil
}

func (s *Service) ListStreams(ctx context.Context, streamType string, limit int) ([]*revenuedomain.RevenueStream, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	filter := &revenuedomain.RevenueStream{}
	if streamType != "" {
		if !validStreamType(streamType) {
			return nil, revenuedomain.ErrUnknownStreamType
		}
		filter.StreamType = streamType
	}
	return s.streamrepo.Find(ctx, filter,
		option.OrderBy("created_at DESC"),
		option.Limit(limit),
	)
}

// GetProgress reports month-to-date revenue against targets, projecting
// the month total from the elapsed fraction of the month.
func (s *Service) GetProgress(ctx context.Context, now time.Time) (*revenuedomain.Progress, error) {
	targets := revenuedomain.DefaultTargets(s.revenue.Get().MonthlyTargetUSD)

	byCategory, total, err := s.monthToDateByCategory(ctx, now)
	if err != nil {
		return nil, err
	}

	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	elapsed := float64(now.Day()) / float64(daysInMonth)
	projected := 0.0
	if elapsed > 0 {
		projected = money.Round(total / elapsed)
	}

	return &revenuedomain.Progress{
		TotalProgressPct:        pct(total, targets.MonthlyTargetUSD),
		SubscriptionProgressPct: pct(byCategory["subscription"], targets.AnalyticsUSD),
		TransactionProgressPct:  pct(byCategory["transaction"], targets.BridgeUSD),
		EnterpriseProgressPct:   pct(byCategory["enterprise"], targets.EnterpriseUSD),
		MonthlyTargetUSD:        targets.MonthlyTargetUSD,
		CurrentRevenueUSD:       money.Round(total),
		ProjectedMonthlyUSD:     projected,
	}, nil
}

// GenerateForecast extrapolates the trailing daily revenue series and
// records the run in the forecasting model journal.
func (s *Service) GenerateForecast(ctx context.Context, windowDays, horizonDays int, now time.Time) (*revenuedomain.Forecast, error) {
	forecast, err := s.extrapolate(ctx, windowDays, horizonDays, now)
	if err != nil {
		return nil, err
	}

	params, err := json.Marshal(forecast)
	if err != nil {
		return nil, err
	}
	accuracy := forecast.AccuracyScore
	model := &revenuedomain.ForecastingModel{
		ID:              uuid.NewString(),
		ModelName:       forecastModelName,
		ModelType:       forecastModelType,
		ModelParameters: params,
		AccuracyScore:   &accuracy,
		LastTrained:     &now,
		IsActive:        true,
		CreatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&revenuedomain.ForecastingModel{}).
			Where("model_name = ? AND is_active = ?", forecastModelName, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return s.modelrepo.WithTrx(tx).Create(ctx, model)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("revenue forecast generated",
		zap.Int("window_days", windowDays),
		zap.Int("horizon_days", horizonDays),
		zap.Float64("predicted_usd", forecast.PredictedUSD),
	)
	return forecast, nil
}

// extrapolate is the baseline arithmetic: average the daily series over
// the window, lean it by the half-over-half trend, multiply by horizon.
func (s *Service) extrapolate(ctx context.Context, windowDays, horizonDays int, now time.Time) (*revenuedomain.Forecast, error) {
	since := now.AddDate(0, 0, -windowDays)

	var streams []*revenuedomain.RevenueStream
	err := s.db.WithContext(ctx).Model(&revenuedomain.RevenueStream{}).
		Where("created_at >= ? AND created_at <= ?", since, now).
		Order("created_at ASC").
		Find(&streams).Error
	if err != nil {
		return nil, err
	}

	daily := map[string]float64{}
	for _, stream := range streams {
		day := stream.CreatedAt.UTC().Format("2006-01-02")
		daily[day] = money.Sum(daily[day], stream.Amount)
	}
	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)

	forecast := &revenuedomain.Forecast{
		WindowDays:  windowDays,
		HorizonDays: horizonDays,
		SampleDays:  len(days),
		GeneratedAt: now,
	}

	switch {
	case len(days) > 30:
		forecast.AccuracyScore = 0.85
	case len(days) > 10:
		forecast.AccuracyScore = 0.70
	default:
		forecast.AccuracyScore = 0.50
	}

	if len(days) == 0 {
		return forecast, nil
	}

	var total, firstHalf, secondHalf float64
	for i, day := range days {
		total = money.Sum(total, daily[day])
		if i < len(days)/2 {
			firstHalf = money.Sum(firstHalf, daily[day])
		} else {
			secondHalf = money.Sum(secondHalf, daily[day])
		}
	}

	trend := 0.0
	if len(days) >= 2 && firstHalf > 0 {
		trend = (secondHalf - firstHalf) / firstHalf
	}

	avgDaily := total / float64(len(days))
	predicted := money.Round(avgDaily * (1 + trend) * float64(horizonDays))
	margin := money.Round(predicted * (1 - forecast.AccuracyScore))

	forecast.AvgDailyUSD = money.Round(avgDaily)
	forecast.TrendPct = trend * 100
	forecast.PredictedUSD = predicted
	forecast.ConfidenceLowUSD = money.Sum(predicted, -margin)
	forecast.ConfidenceHighUSD = money.Sum(predicted, margin)
	return forecast, nil
}

// GetAnalytics serves the cross-stream summary from cache when fresh,
// computing and re-caching otherwise.
func (s *Service) GetAnalytics(ctx context.Context, now time.Time) (*revenuedomain.RevenueAnalytics, error) {
	if cached := s.readAnalyticsCache(ctx); cached != nil {
		return cached, nil
	}

	analytics, err := s.calculateAnalytics(ctx, now)
	if err != nil {
		return nil, err
	}

	s.writeAnalyticsCache(ctx, analytics, now)
	return analytics, nil
}

func (s *Service) calculateAnalytics(ctx context.Context, now time.Time) (*revenuedomain.RevenueAnalytics, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	type streamRow struct {
		StreamType string
		Revenue    float64
	}
	var rows []streamRow
	err := s.db.WithContext(ctx).Model(&revenuedomain.RevenueStream{}).
		Select("stream_type, COALESCE(SUM(amount), 0) AS revenue").
		Where("created_at >= ?", monthStart).
		Group("stream_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byStream := map[string]float64{}
	total := 0.0
	for _, row := range rows {
		byStream[row.StreamType] = money.Round(row.Revenue)
		total = money.Sum(total, row.Revenue)
	}

	var mrr float64
	err = s.db.WithContext(ctx).Model(&subscriptiondomain.Subscription{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ? AND billing_cycle = ?",
			subscriptiondomain.StatusActive, subscriptiondomain.BillingCycleMonthly).
		Scan(&mrr).Error
	if err != nil {
		return nil, err
	}

	var customers int64
	err = s.db.WithContext(ctx).Model(&subscriptiondomain.Subscription{}).
		Where("status = ?", subscriptiondomain.StatusActive).
		Distinct("user_id").
		Count(&customers).Error
	if err != nil {
		return nil, err
	}

	arpu := 0.0
	if customers > 0 {
		arpu = money.Round(total / float64(customers))
	}

	forecast30, err := s.extrapolate(ctx, 90, 30, now)
	if err != nil {
		return nil, err
	}
	forecast90, err := s.extrapolate(ctx, 90, 90, now)
	if err != nil {
		return nil, err
	}
	forecast12m, err := s.extrapolate(ctx, 90, 365, now)
	if err != nil {
		return nil, err
	}

	return &revenuedomain.RevenueAnalytics{
		TotalRevenueUSD:      money.Round(total),
		MonthlyRecurringUSD:  money.Round(mrr),
		AnnualRecurringUSD:   money.Round(mrr * 12),
		RevenueByStream:      byStream,
		ActiveCustomers:      customers,
		AvgRevenuePerUserUSD: arpu,
		CustomerLifetimeUSD:  money.Round(arpu * 24),
		ChurnRatePct:         subscriptiondomain.DefaultChurnRatePct,
		GrowthRatePct:        subscriptiondomain.DefaultGrowthRatePct,
		ConversionRatePct:    subscriptiondomain.DefaultConversionRatePct,
		Forecast30dUSD:       forecast30.PredictedUSD,
		Forecast90dUSD:       forecast90.PredictedUSD,
		Forecast12mUSD:       forecast12m.PredictedUSD,
		Timestamp:            now,
	}, nil
}

func (s *Service) GetDashboard(ctx context.Context, now time.Time) (*revenuedomain.Dashboard, error) {
	progress, err := s.GetProgress(ctx, now)
	if err != nil {
		return nil, err
	}
	analytics, err := s.GetAnalytics(ctx, now)
	if err != nil {
		return nil, err
	}
	return &revenuedomain.Dashboard{
		Targets:   revenuedomain.DefaultTargets(s.revenue.Get().MonthlyTargetUSD),
		Progress:  *progress,
		Analytics: *analytics,
	}, nil
}

// SweepCache removes expired analytics cache rows.
func (s *Service) SweepCache(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&revenuedomain.AnalyticsCacheEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Info("analytics cache swept", zap.Int64("removed", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

func (s *Service) monthToDateByCategory(ctx context.Context, now time.Time) (map[string]float64, float64, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	type streamRow struct {
		StreamType string
		Revenue    float64
	}
	var rows []streamRow
	err := s.db.WithContext(ctx).Model(&revenuedomain.RevenueStream{}).
		Select("stream_type, COALESCE(SUM(amount), 0) AS revenue").
		Where("created_at >= ?", monthStart).
		Group("stream_type").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	byCategory := map[string]float64{}
	total := 0.0
	for _, row := range rows {
		byCategory[revenuedomain.Category(row.StreamType)] = money.Sum(
			byCategory[revenuedomain.Category(row.StreamType)], row.Revenue)
		total = money.Sum(total, row.Revenue)
	}
	return byCategory, total, nil
}

func (s *Service) readAnalyticsCache(ctx context.Context) *revenuedomain.RevenueAnalytics {
	if s.redis == nil {
		return nil
	}
	compressed, err := s.redis.Get(ctx, analyticsCacheKey).Bytes()
	if err != nil {
		return nil
	}
	payload, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil
	}
	var analytics revenuedomain.RevenueAnalytics
	if err := json.Unmarshal(payload, &analytics); err != nil {
		return nil
	}
	return &analytics
}

func (s *Service) writeAnalyticsCache(ctx context.Context, analytics *revenuedomain.RevenueAnalytics, now time.Time) {
	payload, err := json.Marshal(analytics)
	if err != nil {
		return
	}

	if s.redis != nil {
		compressed := snappy.Encode(nil, payload)
		if err := s.redis.Set(ctx, analyticsCacheKey, compressed, analyticsCacheTTL).Err(); err != nil {
			s.log.Debug("analytics cache write failed", zap.Error(err))
		}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	entry := &revenuedomain.AnalyticsCacheEntry{
		ID:            uuid.NewString(),
		AnalyticsType: "revenue_summary",
		PeriodStart:   monthStart,
		PeriodEnd:     now,
		AnalyticsData: payload,
		CreatedAt:     now,
		ExpiresAt:     now.Add(analyticsCacheTTL),
	}
	if err := s.cacherepo.Create(ctx, entry); err != nil {
		s.log.Debug("analytics cache mirror failed", zap.Error(err))
	}
}

func pct(current, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return money.Round(current / target * 100)
}

func validStreamType(streamType string) bool {
	for _, known := range revenuedomain.StreamTypes {
		if streamType == known {
			return true
		}
	}
	return false
}
