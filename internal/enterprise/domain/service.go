package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrContractNotFound is returned when the contract id does not exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrOrderNotFound is returned when the OTC order id does not exist.
	ErrOrderNotFound = errors.New("otc order not found")

	// ErrCustodyNotFound is returned when the custody service id does not exist.
	ErrCustodyNotFound = errors.New("custody service not found")

	// ErrUnknownTier is returned for tiers outside the contract catalog.
	ErrUnknownTier = errors.New("unknown contract tier")

	// ErrBelowTierMinimum is returned when the annual value does not meet
	// the tier's minimum.
	ErrBelowTierMinimum = errors.New("annual value below tier minimum")

	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidStatusTransition is returned when an order cannot move to
	// the requested status from its current one.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// CreateContractRequest opens an enterprise contract.
type CreateContractRequest struct {
	ClientID       string       `json:"client_id" binding:"required"`
	ClientName     string       `json:"client_name" binding:"required"`
	ContractTier   ContractTier `json:"contract_tier" binding:"required"`
	Services       []string     `json:"services"`
	AnnualValue    float64      `json:"annual_value" binding:"required"`
	DurationMonths int          `json:"duration_months"`
	StartDate      *time.Time   `json:"start_date"`
}

// ProcessOTCOrderRequest submits a block trade to the desk.
type ProcessOTCOrderRequest struct {
	ClientID      string       `json:"client_id" binding:"required"`
	OrderType     OTCOrderType `json:"order_type" binding:"required"`
	BaseCurrency  string       `json:"base_currency" binding:"required"`
	QuoteCurrency string       `json:"quote_currency" binding:"required"`
	Amount        float64      `json:"amount" binding:"required"`
	Price         *float64     `json:"price"`
}

// SetupCustodyRequest onboards a client into custody.
type SetupCustodyRequest struct {
	ClientID          string  `json:"client_id" binding:"required"`
	AssetType         string  `json:"asset_type" binding:"required"`
	CustodyFeeRate    float64 `json:"custody_fee_rate"`
	InsuranceCoverage float64 `json:"insurance_coverage"`
	StorageType       string  `json:"storage_type"`
	SecurityLevel     string  `json:"security_level"`
}

// EnterpriseAnalytics summarizes the enterprise book.
type EnterpriseAnalytics struct {
	TotalContracts          int64                    `json:"total_contracts"`
	ActiveContracts         int64                    `json:"active_contracts"`
	TotalAnnualValue        float64                  `json:"total_annual_value"`
	MonthlyRecurringRevenue float64                  `json:"monthly_recurring_revenue"`
	AverageContractValue    float64                  `json:"average_contract_value"`
	RevenueByTier           map[ContractTier]float64 `json:"revenue_by_tier"`
	TotalAssetsUnderCustody float64                  `json:"total_assets_under_custody"`
	OTCTradingVolume        float64                  `json:"otc_trading_volume"`
}

// CustodyAccrualResult summarizes one monthly custody fee accrual run.
type CustodyAccrualResult struct {
	Accrued int     `json:"accrued"`
	Skipped int     `json:"skipped"`
	Total   float64 `json:"total_fees"`
}

// Service manages contracts, the OTC desk and custody.
type Service interface {
	CreateContract(ctx context.Context, req CreateContractRequest) (*EnterpriseContract, error)
	GetContract(ctx context.Context, id string) (*EnterpriseContract, error)
	ListContracts(ctx context.Context, clientID string) ([]*EnterpriseContract, error)
	UpdateContractStatus(ctx context.Context, id string, status ContractStatus) (*EnterpriseContract, error)

	ProcessOTCOrder(ctx context.Context, req ProcessOTCOrderRequest) (*OTCTradingOrder, error)
	ExecuteOTCOrder(ctx context.Context, id string) (*OTCTradingOrder, error)
	SettleOTCOrder(ctx context.Context, id string) (*OTCTradingOrder, error)

	SetupCustodyService(ctx context.Context, req SetupCustodyRequest) (*CustodyService, error)
	UpdateCustodyAUM(ctx context.Context, id string, totalAUM float64) (*CustodyService, error)
	AccrueCustodyFees(ctx context.Context, now time.Time) (*CustodyAccrualResult, error)

	ListRevenueEvents(ctx context.Context, clientID string) ([]*RevenueEvent, error)
	GetAnalytics(ctx context.Context) (*EnterpriseAnalytics, error)
}
