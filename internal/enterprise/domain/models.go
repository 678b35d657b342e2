// Package domain contains persistence models for enterprise contracts,
// the OTC desk and custody services.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ContractTier is the named bracket an enterprise contract falls into.
type ContractTier string

const (
	TierStandard   ContractTier = "standard"
	TierPremium    ContractTier = "premium"
	TierEnterprise ContractTier = "enterprise"
	TierCustom     ContractTier = "custom"
)

// ContractStatus represents contract lifecycle states.
type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "draft"
	ContractStatusActive     ContractStatus = "active"
	ContractStatusSuspended  ContractStatus = "suspended"
	ContractStatusTerminated ContractStatus = "terminated"
	ContractStatusExpired    ContractStatus = "expired"
	ContractStatusRenewal    ContractStatus = "renewal"
)

// OTCOrderStatus represents OTC order lifecycle states.
type OTCOrderStatus string

const (
	OTCStatusPending   OTCOrderStatus = "pending"
	OTCStatusQuoted    OTCOrderStatus = "quoted"
	OTCStatusExecuted  OTCOrderStatus = "executed"
	OTCStatusSettled   OTCOrderStatus = "settled"
	OTCStatusCancelled OTCOrderStatus = "cancelled"
	OTCStatusFailed    OTCOrderStatus = "failed"
)

// OTCOrderType is the side of an OTC order.
type OTCOrderType string

const (
	OTCOrderBuy  OTCOrderType = "buy"
	OTCOrderSell OTCOrderType = "sell"
)

// EnterpriseContract is a long-term service agreement with a client.
type EnterpriseContract struct {
	ID                     string            `gorm:"type:uuid;primaryKey"`
	ClientID               string            `gorm:"type:uuid;not null;index:idx_enterprise_contracts_client"`
	ClientName             string            `gorm:"not null"`
	ContractTier           ContractTier      `gorm:"not null;index:idx_enterprise_contracts_tier"`
	Services               datatypes.JSON    `gorm:"not null"`
	AnnualValue            float64           `gorm:"type:decimal(15,2);not null"`
	MonthlyValue           float64           `gorm:"type:decimal(15,2);not null"`
	PaymentTerms           string            `gorm:"not null;default:'monthly'"`
	StartDate              time.Time         `gorm:"not null;index:idx_enterprise_contracts_dates"`
	EndDate                time.Time         `gorm:"not null;index:idx_enterprise_contracts_dates"`
	AutoRenewal            bool              `gorm:"default:true"`
	Status                 ContractStatus    `gorm:"not null;default:'active';index:idx_enterprise_contracts_status"`
	ServiceCredits         float64           `gorm:"type:decimal(15,2);default:0"`
	ComplianceRequirements datatypes.JSON    `gorm:""`
	DedicatedResources     datatypes.JSON    `gorm:""`
	Metadata               datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt              time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (EnterpriseContract) TableName() string { return "enterprise_contracts" }

// DedicatedResource is one staffing or infrastructure allocation attached
// to a contract. Stored inside the dedicated_resources JSON column.
type DedicatedResource struct {
	ResourceType string  `json:"resource_type"`
	Allocation   string  `json:"allocation"`
	MonthlyCost  float64 `json:"monthly_cost"`
}

// OTCTradingOrder is a block trade between a client and the desk.
type OTCTradingOrder struct {
	ID               string            `gorm:"type:uuid;primaryKey"`
	ClientID         string            `gorm:"type:uuid;not null;index:idx_otc_orders_client"`
	OrderType        OTCOrderType      `gorm:"not null"`
	BaseCurrency     string            `gorm:"not null"`
	QuoteCurrency    string            `gorm:"not null"`
	Amount           float64           `gorm:"type:decimal(30,18);not null"`
	Price            *float64          `gorm:"type:decimal(30,18)"`
	TotalValue       float64           `gorm:"type:decimal(30,18);not null"`
	CommissionRate   float64           `gorm:"type:decimal(8,6);not null"`
	CommissionAmount float64           `gorm:"type:decimal(30,18);not null"`
	Status           OTCOrderStatus    `gorm:"not null;default:'pending';index:idx_otc_orders_status"`
	ExecutionDate    *time.Time        `gorm:""`
	SettlementDate   *time.Time        `gorm:""`
	Counterparty     *string           `gorm:""`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt        time.Time         `gorm:"default:CURRENT_TIMESTAMP;index:idx_otc_orders_created"`
}

// TableName sets the database table name.
func (OTCTradingOrder) TableName() string { return "otc_trading_orders" }

// CustodyService is a per-client record of assets under management and
// the fee schedule applied to them.
type CustodyService struct {
	ID                  string         `gorm:"type:uuid;primaryKey"`
	ClientID            string         `gorm:"type:uuid;not null;index:idx_custody_services_client"`
	AssetType           string         `gorm:"not null;index:idx_custody_services_asset"`
	TotalAUM            float64        `gorm:"column:total_aum;type:decimal(30,18);not null;default:0"`
	CustodyFeeRate      float64        `gorm:"type:decimal(8,6);not null"`
	MonthlyFee          float64        `gorm:"type:decimal(15,2);not null"`
	InsuranceCoverage   float64        `gorm:"type:decimal(30,18);not null;default:0"`
	StorageType         string         `gorm:"not null"`
	SecurityLevel       string         `gorm:"not null"`
	ComplianceFramework datatypes.JSON `gorm:""`
	CreatedAt           time.Time      `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time      `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CustodyService) TableName() string { return "custody_services" }

// RevenueEvent is an append-only journal entry for a monetizable action.
type RevenueEvent struct {
	ID                 string            `gorm:"type:uuid;primaryKey"`
	ClientID           string            `gorm:"type:uuid;not null;index:idx_enterprise_revenue_client"`
	ContractID         *string           `gorm:"type:uuid"`
	EventType          string            `gorm:"not null;index:idx_enterprise_revenue_type"`
	ServiceType        *string           `gorm:""`
	RevenueAmount      float64           `gorm:"type:decimal(15,2);not null"`
	Currency           string            `gorm:"not null;default:'USD'"`
	BillingPeriodStart *time.Time        `gorm:""`
	BillingPeriodEnd   *time.Time        `gorm:""`
	Metadata           datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt          time.Time         `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RevenueEvent) TableName() string { return "enterprise_revenue_events" }

// Revenue event types recorded by the enterprise paths.
const (
	EventContractSigned = "contract_signed"
	EventOTCCommission  = "otc_commission"
	EventCustodyFee     = "custody_fee"
)
