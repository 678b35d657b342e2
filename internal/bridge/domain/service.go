package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTransactionNotFound is returned when the transaction hash is unknown.
	ErrTransactionNotFound = errors.New("bridge transaction not found")

	// ErrDuplicateTransaction is returned for an already-processed hash.
	ErrDuplicateTransaction = errors.New("bridge transaction already processed")

	// ErrInvalidAmount is returned for non-positive transfer amounts.
	ErrInvalidAmount = errors.New("transfer amount must be positive")

	// ErrAlreadyConfirmed is returned when confirming a non-pending transaction.
	ErrAlreadyConfirmed = errors.New("bridge transaction already confirmed")
)

// VolumeDiscountTier grants a fee discount above a monthly volume floor.
type VolumeDiscountTier struct {
	MinimumMonthlyVolumeUSD float64 `json:"minimum_monthly_volume_usd"`
	DiscountPct             float64 `json:"discount_pct"`
}

// VolumeDiscountTiers orders the discount bands from largest floor down;
// the first band the user's monthly volume clears is the one applied.
var VolumeDiscountTiers = []VolumeDiscountTier{
	{MinimumMonthlyVolumeUSD: 1_000_000, DiscountPct: 50},
	{MinimumMonthlyVolumeUSD: 100_000, DiscountPct: 25},
	{MinimumMonthlyVolumeUSD: 10_000, DiscountPct: 10},
}

// ProcessTransactionRequest records one cross-chain transfer.
type ProcessTransactionRequest struct {
	TransactionHash string          `json:"transaction_hash" binding:"required"`
	TransactionType TransactionType `json:"transaction_type" binding:"required"`
	UserID          *string         `json:"user_id"`
	FromToken       string          `json:"from_token" binding:"required"`
	ToToken         string          `json:"to_token" binding:"required"`
	FromAmount      float64         `json:"from_amount" binding:"required"`
	ToAmount        float64         `json:"to_amount" binding:"required"`
	FromAddress     string          `json:"from_address" binding:"required"`
	ToAddress       string          `json:"to_address" binding:"required"`
}

// AddLiquidityRequest opens a locked liquidity position.
type AddLiquidityRequest struct {
	ProviderID   string  `json:"provider_id" binding:"required"`
	TokenPair    string  `json:"token_pair" binding:"required"`
	Amount       float64 `json:"amount" binding:"required"`
	Currency     string  `json:"currency" binding:"required"`
	LockDuration int     `json:"lock_duration_days"`
}

// BridgeAnalytics summarizes bridge fee revenue.
type BridgeAnalytics struct {
	TotalTransactions int64                      `json:"total_transactions"`
	TotalVolumeUSD    float64                    `json:"total_volume_usd"`
	TotalFeesUSD      float64                    `json:"total_fees_usd"`
	AvgFeeRatePct     float64                    `json:"avg_fee_rate_pct"`
	ByType            map[TransactionType]int64  `json:"by_type"`
	ActiveLiquidity   float64                    `json:"active_liquidity_usd"`
}

// Service prices and records cross-chain bridge activity.
type Service interface {
	// CalculateFee applies the base rate with min/max bounds, then the
	// user's volume discount band.
	CalculateFee(amount, userMonthlyVolume float64) float64

	ProcessTransaction(ctx context.Context, req ProcessTransactionRequest) (*BridgeTransaction, error)
	ConfirmTransaction(ctx context.Context, transactionHash string, blockHeight int64) (*BridgeTransaction, error)
	GetTransaction(ctx context.Context, transactionHash string) (*BridgeTransaction, error)
	UserMonthlyVolume(ctx context.Context, userID string, now time.Time) (float64, error)

	AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*LiquidityProvision, error)

	GetAnalytics(ctx context.Context) (*BridgeAnalytics, error)
}
