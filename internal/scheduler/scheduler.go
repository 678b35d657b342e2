package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	analyticsdomain "github.com/nockworks/revenue-engine/internal/analytics/domain"
	billingdomain "github.com/nockworks/revenue-engine/internal/billing/domain"
	"github.com/nockworks/revenue-engine/internal/clock"
	enterprisedomain "github.com/nockworks/revenue-engine/internal/enterprise/domain"
	obsmetrics "github.com/nockworks/revenue-engine/internal/observability/metrics"
	revenuedomain "github.com/nockworks/revenue-engine/internal/revenue/domain"
)

var ErrInvalidConfig = errors.New("scheduler: missing required dependency")

const (
	forecastWindowDays  = 90
	forecastHorizonDays = 30
)

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	BillingSvc    billingdomain.Service
	AnalyticsSvc  analyticsdomain.Service
	EnterpriseSvc enterprisedomain.Service
	RevenueSvc    revenuedomain.Service
	Config        Config `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	billingSvc    billingdomain.Service
	analyticsSvc  analyticsdomain.Service
	enterpriseSvc enterprisedomain.Service
	revenueSvc    revenuedomain.Service

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.BillingSvc == nil || p.AnalyticsSvc == nil || p.EnterpriseSvc == nil || p.RevenueSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		billingSvc:    p.BillingSvc,
		analyticsSvc:  p.AnalyticsSvc,
		enterpriseSvc: p.EnterpriseSvc,
		revenueSvc:    p.RevenueSvc,
		lastRun:       map[string]time.Time{},
	}, nil
}

type job struct {
	name  string
	every time.Duration
	run   func(ctx context.Context, now time.Time) error
}

func (s *Scheduler) jobs() []job {
	return []job{
		{"billing_cycles", time.Hour, s.BillingCyclesJob},
		{"usage_reset", time.Hour, s.UsageResetJob},
		{"custody_accrual", 24 * time.Hour, s.CustodyAccrualJob},
		{"forecast_refresh", 6 * time.Hour, s.ForecastRefreshJob},
		{"cache_sweep", 5 * time.Minute, s.CacheSweepJob},
	}
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(run)
	}

	err := fn(ctx)
	obsmetrics.Scheduler().ObserveJobRun(name, time.Since(start), err)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(run)
	}
	if err == nil {
		return nil
	}

	// A deadline or cancel is a soft timeout: the next due tick picks
	// up where the batch stopped.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.String("run_id", run.runID),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job that is due at the current clock
// reading. A job is due when its interval has elapsed since its last
// attempt; failures wait for the next interval rather than retrying hot.
func (s *Scheduler) RunOnce(parent context.Context) error {
	now := s.clock.Now()
	var err error

	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.name) || !s.isDue(j, now) {
			continue
		}
		s.markRun(j.name, now)
		jobErr := s.runJob(parent, j.name, s.cfg.JobTimeout, func(ctx context.Context) error {
			return j.run(ctx, now)
		})
		err = errors.Join(err, jobErr)
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs enables everything (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) isDue(j job, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastRun[j.name]
	return !ok || now.Sub(last) >= j.every
}

func (s *Scheduler) markRun(name string, now time.Time) {
	s.mu.Lock()
	s.lastRun[name] = now
	s.mu.Unlock()
}

func (s *Scheduler) BillingCyclesJob(ctx context.Context, now time.Time) error {
	ctx, run, owner := s.ensureJobRun(ctx, "billing_cycles")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	result, err := s.billingSvc.ProcessBillingCycles(ctx, now)
	if err != nil {
		s.logSchedulerError(run, "scheduler.billing.process.failed", "billing_cycles", err)
		return err
	}
	run.AddProcessed(result.Processed)
	obsmetrics.Scheduler().ObserveBatch("billing_cycles", "subscriptions", result.Processed)
	if result.Failed > 0 {
		run.IncError()
		s.log.Warn("billing cycle batch had failures",
			zap.String("run_id", run.runID),
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed),
		)
	}
	return nil
}

func (s *Scheduler) UsageResetJob(ctx context.Context, now time.Time) error {
	ctx, run, owner := s.ensureJobRun(ctx, "usage_reset")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	result, err := s.analyticsSvc.ResetUsageCounters(ctx, now)
	if err != nil {
		s.logSchedulerError(run, "scheduler.usage.reset.failed", "usage_reset", err)
		return err
	}
	run.AddProcessed(result.Reset)
	obsmetrics.Scheduler().ObserveBatch("usage_reset", "subscriptions", result.Reset)
	return nil
}

func (s *Scheduler) CustodyAccrualJob(ctx context.Context, now time.Time) error {
	ctx, run, owner := s.ensureJobRun(ctx, "custody_accrual")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	result, err := s.enterpriseSvc.AccrueCustodyFees(ctx, now)
	if err != nil {
		s.logSchedulerError(run, "scheduler.custody.accrual.failed", "custody_accrual", err)
		return err
	}
	run.AddProcessed(result.Accrued)
	obsmetrics.Scheduler().ObserveBatch("custody_accrual", "custody_accounts", result.Accrued)
	return nil
}

func (s *Scheduler) ForecastRefreshJob(ctx context.Context, now time.Time) error {
	ctx, run, owner := s.ensureJobRun(ctx, "forecast_refresh")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	forecast, err := s.revenueSvc.GenerateForecast(ctx, forecastWindowDays, forecastHorizonDays, now)
	if err != nil {
		s.logSchedulerError(run, "scheduler.forecast.refresh.failed", "forecast_refresh", err)
		return err
	}
	run.AddProcessed(1)
	obsmetrics.Scheduler().ObserveBatch("forecast_refresh", "forecasts", 1)
	s.log.Debug("forecast refreshed",
		zap.String("run_id", run.runID),
		zap.Int("sample_days", forecast.SampleDays),
		zap.Float64("predicted_usd", forecast.PredictedUSD),
	)
	return nil
}

func (s *Scheduler) CacheSweepJob(ctx context.Context, now time.Time) error {
	ctx, run, owner := s.ensureJobRun(ctx, "cache_sweep")
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	removed, err := s.revenueSvc.SweepCache(ctx, now)
	if err != nil {
		s.logSchedulerError(run, "scheduler.cache.sweep.failed", "cache_sweep", err)
		return err
	}
	run.AddProcessed(int(removed))
	obsmetrics.Scheduler().ObserveBatch("cache_sweep", "cache_entries", int(removed))
	return nil
}
