package domain

import (
	"time"

	"gorm.io/datatypes"
)

type TransactionType string

const (
	TypeNockToSolana        TransactionType = "nock_to_solana"
	TypeSolanaToNock        TransactionType = "solana_to_nock"
	TypeLiquidityProvision  TransactionType = "liquidity_provision"
	TypeLiquidityWithdrawal TransactionType = "liquidity_withdrawal"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxConfirmed TransactionStatus = "confirmed"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxCancelled TransactionStatus = "cancelled"
)

type LiquidityStatus string

const (
	LiquidityActive    LiquidityStatus = "active"
	LiquidityWithdrawn LiquidityStatus = "withdrawn"
	LiquidityExpired   LiquidityStatus = "expired"
)

type CollectionStatus string

const (
	CollectionPending   CollectionStatus = "pending"
	CollectionCollected CollectionStatus = "collected"
)

// BridgeTransaction is one cross-chain transfer and the fee taken on it.
type BridgeTransaction struct {
	ID              string            `gorm:"primaryKey;type:uuid"`
	TransactionHash string            `gorm:"uniqueIndex;not null"`
	TransactionType TransactionType   `gorm:"not null;index"`
	UserID          *string           `gorm:"type:uuid;index"`
	FromToken       string            `gorm:"not null"`
	ToToken         string            `gorm:"not null"`
	FromAmount      float64           `gorm:"not null"`
	ToAmount        float64           `gorm:"not null"`
	ExchangeRate    float64           `gorm:"not null"`
	FeeAmount       float64           `gorm:"not null"`
	FeeCurrency     string            `gorm:"not null"`
	FromBlockchain  string            `gorm:"not null"`
	ToBlockchain    string            `gorm:"not null"`
	FromAddress     string            `gorm:"not null"`
	ToAddress       string            `gorm:"not null"`
	Status          TransactionStatus `gorm:"not null;default:pending;index"`
	BlockHeight     *int64
	Confirmations   int `gorm:"default:0"`
	ProcessedAt     *time.Time
	Metadata        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time         `gorm:"index"`
}

func (BridgeTransaction) TableName() string { return "bridge_transactions" }

// FeeCollection tracks the fee taken on a bridge transaction until it is
// swept to the collection address.
type FeeCollection struct {
	ID                string           `gorm:"primaryKey;type:uuid"`
	TransactionID     string           `gorm:"type:uuid;not null;index"`
	FeeAmount         float64          `gorm:"not null"`
	FeeCurrency       string           `gorm:"not null"`
	CollectionAddress string           `gorm:"not null"`
	CollectionHash    *string          ``
	Status            CollectionStatus `gorm:"not null;default:pending;index"`
	CollectedAt       *time.Time
	Metadata          datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt         time.Time
}

func (FeeCollection) TableName() string { return "bridge_fee_collections" }

// LiquidityProvision is a locked liquidity position earning rewards.
type LiquidityProvision struct {
	ID             string          `gorm:"primaryKey;type:uuid"`
	ProviderID     string          `gorm:"type:uuid;not null;index"`
	TokenPair      string          `gorm:"not null"`
	AmountProvided float64         `gorm:"not null"`
	Currency       string          `gorm:"not null"`
	RewardsEarned  float64         `gorm:"not null;default:0"`
	APY            float64         `gorm:"column:apy;not null;default:0"`
	LockDuration   int             `gorm:"not null;default:0"`
	Status         LiquidityStatus `gorm:"not null;default:active"`
	CreatedAt      time.Time
	ExpiresAt      *time.Time
}

func (LiquidityProvision) TableName() string { return "liquidity_provisions" }
