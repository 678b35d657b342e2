package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	enterprisedomain "github.com/nockworks/revenue-engine/internal/enterprise/domain"
	"github.com/nockworks/revenue-engine/internal/observability/metrics"
	"github.com/nockworks/revenue-engine/pkg/db/option"
	"github.com/nockworks/revenue-engine/pkg/money"
	"github.com/nockworks/revenue-engine/pkg/repository"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Revenue *config.RevenueConfigHolder
	Metrics *metrics.Metrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	revenue *config.RevenueConfigHolder
	metrics *metrics.Metrics

	contractrepo repository.Repository[enterprisedomain.EnterpriseContract]
	otcrepo      repository.Repository[enterprisedomain.OTCTradingOrder]
	custodyrepo  repository.Repository[enterprisedomain.CustodyService]
	eventrepo    repository.Repository[enterprisedomain.RevenueEvent]
}

func NewService(p ServiceParam) enterprisedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("enterprise.service"),
		clock:   p.Clock,
		revenue: p.Revenue,
		metrics: p.Metrics,

		contractrepo: repository.ProvideStore[enterprisedomain.EnterpriseContract](p.DB),
		otcrepo:      repository.ProvideStore[enterprisedomain.OTCTradingOrder](p.DB),
		custodyrepo:  repository.ProvideStore[enterprisedomain.CustodyService](p.DB),
		eventrepo:    repository.ProvideStore[enterprisedomain.RevenueEvent](p.DB),
	}
}

// CreateContract persists the contract and its contract_signed revenue
// event in one transaction so the journal never lags the book.
func (s *Service) CreateContract(ctx context.Context, req enterprisedomain.CreateContractRequest) (*enterprisedomain.EnterpriseContract, error) {
	minimum, ok := req.ContractTier.MinimumAnnualValue()
	if !ok {
		return nil, enterprisedomain.ErrUnknownTier
	}
	if req.AnnualValue < minimum {
		return nil, fmt.Errorf("%w: tier %s requires at least $%.0f",
			enterprisedomain.ErrBelowTierMinimum, req.ContractTier, minimum)
	}

	now := s.clock.Now()
	startDate := now
	if req.StartDate != nil {
		startDate = *req.StartDate
	}
	duration := req.DurationMonths
	if duration <= 0 {
		duration = 12
	}

	services, err := json.Marshal(req.Services)
	if err != nil {
		return nil, err
	}
	resources, err := json.Marshal(req.ContractTier.DefaultResources(req.AnnualValue))
	if err != nil {
		return nil, err
	}
	compliance, err := json.Marshal([]string{"SOC2", "ISO27001"})
	if err != nil {
		return nil, err
	}

	contract := &enterprisedomain.EnterpriseContract{
		ID:                     uuid.NewString(),
		ClientID:               req.ClientID,
		ClientName:             req.ClientName,
		ContractTier:           req.ContractTier,
		Services:               services,
		AnnualValue:            money.Round(req.AnnualValue),
		MonthlyValue:           money.Round(req.AnnualValue / 12),
		PaymentTerms:           "monthly",
		StartDate:              startDate,
		EndDate:                startDate.AddDate(0, 0, duration*30),
		AutoRenewal:            true,
		Status:                 enterprisedomain.ContractStatusActive,
		ComplianceRequirements: compliance,
		DedicatedResources:     resources,
		Metadata: datatypes.JSONMap{
			"contract_ref":  fmt.Sprintf("%s-%d", slug.Make(req.ClientName), startDate.Year()),
			"tier_benefits": req.ContractTier.ServiceLevelAgreement(),
			"setup_fee":     money.ApplyRate(req.AnnualValue, 0.05),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.contractrepo.WithTrx(tx).Create(ctx, contract); err != nil {
			return err
		}
		return s.logRevenueEvent(ctx, tx, contract.ClientID, &contract.ID,
			enterprisedomain.EventContractSigned, nil, contract.AnnualValue, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRevenueStream(ctx, enterprisedomain.EventContractSigned, contract.AnnualValue)
	s.log.Info("enterprise contract created",
		zap.String("contract_id", contract.ID),
		zap.String("tier", string(contract.ContractTier)),
		zap.Float64("annual_value", contract.AnnualValue),
	)
	return contract, nil
}

func (s *Service) GetContract(ctx context.Context, id string) (*enterprisedomain.EnterpriseContract, error) {
	contract, err := s.contractrepo.FindOne(ctx, &enterprisedomain.EnterpriseContract{ID: id})
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, enterprisedomain.ErrContractNotFound
	}
	return contract, nil
}

func (s *Service) ListContracts(ctx context.Context, clientID string) ([]*enterprisedomain.EnterpriseContract, error) {
	filter := &enterprisedomain.EnterpriseContract{}
	if clientID != "" {
		filter.ClientID = clientID
	}
	return s.contractrepo.Find(ctx, filter, option.OrderBy("created_at DESC"))
}

func (s *Service) UpdateContractStatus(ctx context.Context, id string, status enterprisedomain.ContractStatus) (*enterprisedomain.EnterpriseContract, error) {
	switch status {
	case enterprisedomain.ContractStatusDraft, enterprisedomain.ContractStatusActive,
		enterprisedomain.ContractStatusSuspended, enterprisedomain.ContractStatusTerminated,
		enterprisedomain.ContractStatusExpired, enterprisedomain.ContractStatusRenewal:
	default:
		return nil, enterprisedomain.ErrInvalidStatusTransition
	}

	contract, err := s.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}

	contract.Status = status
	contract.UpdatedAt = s.clock.Now()
	if err := s.contractrepo.Update(ctx, contract.ID, contract); err != nil {
		return nil, err
	}
	return contract, nil
}

// ProcessOTCOrder prices the trade, applies the volume-tiered commission
// and journals the commission in the same transaction as the order.
func (s *Service) ProcessOTCOrder(ctx context.Context, req enterprisedomain.ProcessOTCOrderRequest) (*enterprisedomain.OTCTradingOrder, error) {
	if req.Amount <= 0 {
		return nil, enterprisedomain.ErrInvalidAmount
	}
	if req.OrderType != enterprisedomain.OTCOrderBuy && req.OrderType != enterprisedomain.OTCOrderSell {
		return nil, enterprisedomain.ErrInvalidStatusTransition
	}

	marketPrice := s.revenue.Get().MarketPriceUSD
	if req.Price != nil && *req.Price > 0 {
		marketPrice = *req.Price
	}

	totalValue := money.Mul(req.Amount, marketPrice)
	commissionRate := enterprisedomain.CommissionRate(totalValue)
	commissionAmount := money.ApplyRate(totalValue, commissionRate)

	now := s.clock.Now()
	order := &enterprisedomain.OTCTradingOrder{
		ID:               uuid.NewString(),
		ClientID:         req.ClientID,
		OrderType:        req.OrderType,
		BaseCurrency:     req.BaseCurrency,
		QuoteCurrency:    req.QuoteCurrency,
		Amount:           req.Amount,
		Price:            req.Price,
		TotalValue:       totalValue,
		CommissionRate:   commissionRate,
		CommissionAmount: commissionAmount,
		Status:           enterprisedomain.OTCStatusPending,
		Metadata: datatypes.JSONMap{
			"market_price":    marketPrice,
			"execution_venue": "internal",
		},
		CreatedAt: now,
	}

	serviceType := "OTCTrading"
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.otcrepo.WithTrx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.logRevenueEvent(ctx, tx, order.ClientID, nil,
			enterprisedomain.EventOTCCommission, &serviceType, commissionAmount, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRevenueStream(ctx, enterprisedomain.EventOTCCommission, commissionAmount)
	s.log.Info("otc order processed",
		zap.String("order_id", order.ID),
		zap.Float64("total_value", totalValue),
		zap.Float64("commission", commissionAmount),
	)
	return order, nil
}

func (s *Service) ExecuteOTCOrder(ctx context.Context, id string) (*enterprisedomain.OTCTradingOrder, error) {
	return s.transitionOTCOrder(ctx, id, enterprisedomain.OTCStatusPending, enterprisedomain.OTCStatusExecuted)
}

func (s *Service) SettleOTCOrder(ctx context.Context, id string) (*enterprisedomain.OTCTradingOrder, error) {
	return s.transitionOTCOrder(ctx, id, enterprisedomain.OTCStatusExecuted, enterprisedomain.OTCStatusSettled)
}

func (s *Service) transitionOTCOrder(ctx context.Context, id string, from, to enterprisedomain.OTCOrderStatus) (*enterprisedomain.OTCTradingOrder, error) {
	order, err := s.otcrepo.FindOne(ctx, &enterprisedomain.OTCTradingOrder{ID: id})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, enterprisedomain.ErrOrderNotFound
	}
	if order.Status != from {
		return nil, fmt.Errorf("%w: %s -> %s", enterprisedomain.ErrInvalidStatusTransition, order.Status, to)
	}

	now := s.clock.Now()
	order.Status = to
	switch to {
	case enterprisedomain.OTCStatusExecuted:
		order.ExecutionDate = &now
	case enterprisedomain.OTCStatusSettled:
		order.SettlementDate = &now
	}
	if err := s.otcrepo.Update(ctx, order.ID, order); err != nil {
		return nil, err
	}
	return order, nil
}

// SetupCustodyService onboards a client. The monthly fee derives from AUM
// and the annualized rate, so a fresh record with zero AUM carries a zero
// fee until the first AUM update.
func (s *Service) SetupCustodyService(ctx context.Context, req enterprisedomain.SetupCustodyRequest) (*enterprisedomain.CustodyService, error) {
	feeRate := req.CustodyFeeRate
	if feeRate <= 0 {
		feeRate = s.revenue.Get().CustodyAnnualRate
	}

	storageType := req.StorageType
	if storageType == "" {
		storageType = "cold"
	}
	securityLevel := req.SecurityLevel
	if securityLevel == "" {
		securityLevel = "institutional"
	}

	compliance, err := json.Marshal([]string{"SOC2", "ISO27001", "FIPS140-2"})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	service := &enterprisedomain.CustodyService{
		ID:                  uuid.NewString(),
		ClientID:            req.ClientID,
		AssetType:           req.AssetType,
		TotalAUM:            0,
		CustodyFeeRate:      feeRate,
		MonthlyFee:          monthlyCustodyFee(0, feeRate),
		InsuranceCoverage:   req.InsuranceCoverage,
		StorageType:         storageType,
		SecurityLevel:       securityLevel,
		ComplianceFramework: compliance,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.custodyrepo.Create(ctx, service); err != nil {
		return nil, err
	}

	s.log.Info("custody service setup",
		zap.String("custody_id", service.ID),
		zap.String("asset_type", service.AssetType),
		zap.Float64("fee_rate", service.CustodyFeeRate),
	)
	return service, nil
}

func (s *Service) UpdateCustodyAUM(ctx context.Context, id string, totalAUM float64) (*enterprisedomain.CustodyService, error) {
	if totalAUM < 0 {
		return nil, enterprisedomain.ErrInvalidAmount
	}

	service, err := s.custodyrepo.FindOne(ctx, &enterprisedomain.CustodyService{ID: id})
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, enterprisedomain.ErrCustodyNotFound
	}

	service.TotalAUM = totalAUM
	service.MonthlyFee = monthlyCustodyFee(totalAUM, service.CustodyFeeRate)
	service.UpdatedAt = s.clock.Now()

	update := map[string]any{
		"total_aum":   service.TotalAUM,
		"monthly_fee": service.MonthlyFee,
		"updated_at":  service.UpdatedAt,
	}
	err = s.db.WithContext(ctx).Model(&enterprisedomain.CustodyService{}).
		Where("id = ?", service.ID).Updates(update).Error
	if err != nil {
		return nil, err
	}
	return service, nil
}

// AccrueCustodyFees journals one custody_fee event per funded custody
// record for the month ending at now.
func (s *Service) AccrueCustodyFees(ctx context.Context, now time.Time) (*enterprisedomain.CustodyAccrualResult, error) {
	services, err := s.custodyrepo.Find(ctx, &enterprisedomain.CustodyService{})
	if err != nil {
		return nil, err
	}

	result := &enterprisedomain.CustodyAccrualResult{}
	periodStart := now.AddDate(0, -1, 0)
	serviceType := "CustodyServices"

	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		fee := monthlyCustodyFee(svc.TotalAUM, svc.CustodyFeeRate)
		if fee <= 0 {
			result.Skipped++
			continue
		}

		// One accrual per client per period, no matter how often the job runs.
		accrued, err := s.custodyFeeAccruedSince(ctx, svc.ClientID, periodStart)
		if err != nil {
			result.Skipped++
			s.log.Error("custody fee accrual check failed",
				zap.String("custody_id", svc.ID),
				zap.Error(err),
			)
			continue
		}
		if accrued {
			result.Skipped++
			continue
		}

		err = s.logRevenueEvent(ctx, s.db, svc.ClientID, nil,
			enterprisedomain.EventCustodyFee, &serviceType, fee, &periodStart, &now)
		if err != nil {
			result.Skipped++
			s.log.Error("custody fee accrual failed",
				zap.String("custody_id", svc.ID),
				zap.Error(err),
			)
			continue
		}

		s.metrics.RecordRevenueStream(ctx, enterprisedomain.EventCustodyFee, fee)
		result.Accrued++
		result.Total = money.Sum(result.Total, fee)
	}

	if result.Accrued > 0 {
		s.log.Info("custody fees accrued",
			zap.Int("accrued", result.Accrued),
			zap.Float64("total", result.Total),
		)
	}
	return result, nil
}

// monthlyCustodyFee computes the fee from assets under management and an
// annualized percentage rate.
func monthlyCustodyFee(aum, annualRatePct float64) float64 {
	return money.Round(aum * annualRatePct / 12 / 100)
}

func (s *Service) ListRevenueEvents(ctx context.Context, clientID string) ([]*enterprisedomain.RevenueEvent, error) {
	filter := &enterprisedomain.RevenueEvent{}
	if clientID != "" {
		filter.ClientID = clientID
	}
	return s.eventrepo.Find(ctx, filter, option.OrderBy("created_at DESC"))
}

func (s *Service) custodyFeeAccruedSince(ctx context.Context, clientID string, periodStart time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&enterprisedomain.RevenueEvent{}).
		Where("client_id = ? AND event_type = ? AND billing_period_end > ?",
			clientID, enterprisedomain.EventCustodyFee, periodStart).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) logRevenueEvent(ctx context.Context, tx *gorm.DB, clientID string, contractID *string, eventType string, serviceType *string, amount float64, periodStart, periodEnd *time.Time) error {
	event := &enterprisedomain.RevenueEvent{
		ID:                 uuid.NewString(),
		ClientID:           clientID,
		ContractID:         contractID,
		EventType:          eventType,
		ServiceType:        serviceType,
		RevenueAmount:      money.Round(amount),
		Currency:           "USD",
		BillingPeriodStart: periodStart,
		BillingPeriodEnd:   periodEnd,
		Metadata:           datatypes.JSONMap{},
		CreatedAt:          s.clock.Now(),
	}
	return s.eventrepo.WithTrx(tx).Create(ctx, event)
}

func (s *Service) GetAnalytics(ctx context.Context) (*enterprisedomain.EnterpriseAnalytics, error) {
	analytics := &enterprisedomain.EnterpriseAnalytics{
		RevenueByTier: map[enterprisedomain.ContractTier]float64{},
	}

	type contractAgg struct {
		TotalContracts       int64
		ActiveContracts      int64
		TotalAnnualValue     float64
		MonthlyRecurring     float64
		AverageContractValue float64
	}
	var agg contractAgg
	err := s.db.WithContext(ctx).Model(&enterprisedomain.EnterpriseContract{}).
		Select(
			"COUNT(*) AS total_contracts, " +
				"COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0) AS active_contracts, " +
				"COALESCE(SUM(annual_value), 0) AS total_annual_value, " +
				"COALESCE(SUM(CASE WHEN status = 'active' THEN monthly_value ELSE 0 END), 0) AS monthly_recurring, " +
				"COALESCE(AVG(annual_value), 0) AS average_contract_value",
		).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	analytics.TotalContracts = agg.TotalContracts
	analytics.ActiveContracts = agg.ActiveContracts
	analytics.TotalAnnualValue = money.Round(agg.TotalAnnualValue)
	analytics.MonthlyRecurringRevenue = money.Round(agg.MonthlyRecurring)
	analytics.AverageContractValue = money.Round(agg.AverageContractValue)

	type tierRow struct {
		ContractTier enterprisedomain.ContractTier
		Revenue      float64
	}
	var tiers []tierRow
	err = s.db.WithContext(ctx).Model(&enterprisedomain.EnterpriseContract{}).
		Select("contract_tier, COALESCE(SUM(monthly_value), 0) AS revenue").
		Where("status = ?", enterprisedomain.ContractStatusActive).
		Group("contract_tier").
		Scan(&tiers).Error
	if err != nil {
		return nil, err
	}
	for _, row := range tiers {
		analytics.RevenueByTier[row.ContractTier] = money.Round(row.Revenue)
	}

	var totalAUM float64
	err = s.db.WithContext(ctx).Model(&enterprisedomain.CustodyService{}).
		Select("COALESCE(SUM(total_aum), 0)").
		Scan(&totalAUM).Error
	if err != nil {
		return nil, err
	}
	analytics.TotalAssetsUnderCustody = totalAUM

	var otcVolume float64
	err = s.db.WithContext(ctx).Model(&enterprisedomain.OTCTradingOrder{}).
		Select("COALESCE(SUM(total_value), 0)").
		Where("status IN ?", []enterprisedomain.OTCOrderStatus{
			enterprisedomain.OTCStatusExecuted,
			enterprisedomain.OTCStatusSettled,
		}).
		Scan(&otcVolume).Error
	if err != nil {
		return nil, err
	}
	analytics.OTCTradingVolume = otcVolume

	return analytics, nil
}
