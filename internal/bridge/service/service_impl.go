package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	bridgedomain "github.com/nockworks/revenue-engine/internal/bridge/domain"
	"github.com/nockworks/revenue-engine/internal/clock"
	"github.com/nockworks/revenue-engine/internal/config"
	revenuedomain "github.com/nockworks/revenue-engine/internal/revenue/domain"
	"github.com/nockworks/revenue-engine/pkg/money"
	"github.com/nockworks/revenue-engine/pkg/repository"
)

const (
	baseLiquidityAPY   = 12.0
	apyBonusPerLockDay = 0.5
	maxLiquidityAPY    = 50.0
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Revenue *config.RevenueConfigHolder
	Streams revenuedomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	revenue *config.RevenueConfigHolder
	streams revenuedomain.Service

	txrepo        repository.Repository[bridgedomain.BridgeTransaction]
	feerepo       repository.Repository[bridgedomain.FeeCollection]
	liquidityrepo repository.Repository[bridgedomain.LiquidityProvision]
}

func NewService(p ServiceParam) bridgedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("bridge.service"),
		clock:   p.Clock,
		revenue: p.Revenue,
		streams: p.Streams,

		txrepo:        repository.ProvideStore[bridgedomain.BridgeTransaction](p.DB),
		feerepo:       repository.ProvideStore[bridgedomain.FeeCollection](p.DB),
		liquidityrepo: repository.ProvideStore[bridgedomain.LiquidityProvision](p.DB),
	}
}

// CalculateFee prices a transfer: base rate, clamped to the fee floor and
// cap, then reduced by the best volume discount band the user clears.
func (s *Service) CalculateFee(amount, userMonthlyVolume float64) float64 {
	cfg := s.revenue.Get()
	fee := money.Clamp(
		money.ApplyRate(amount, cfg.BridgeBaseFeeRate),
		cfg.BridgeMinimumFee,
		cfg.BridgeMaximumFee,
	)

	for _, tier := range bridgedomain.VolumeDiscountTiers {
		if userMonthlyVolume >= tier.MinimumMonthlyVolumeUSD {
			fee = money.Round(fee * (1 - tier.DiscountPct/100))
			break
		}
	}
	return fee
}

// ProcessTransaction records a transfer in pending with its fee and opens
// the fee collection record in the same transaction.
func (s *Service) ProcessTransaction(ctx context.Context, req bridgedomain.ProcessTransactionRequest) (*bridgedomain.BridgeTransaction, error) {
	if req.FromAmount <= 0 || req.ToAmount <= 0 {
		return nil, bridgedomain.ErrInvalidAmount
	}

	existing, err := s.txrepo.FindOne(ctx, &bridgedomain.BridgeTransaction{TransactionHash: req.TransactionHash})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, bridgedomain.ErrDuplicateTransaction
	}

	now := s.clock.Now()
	monthlyVolume := 0.0
	if req.UserID != nil {
		monthlyVolume, err = s.UserMonthlyVolume(ctx, *req.UserID, now)
		if err != nil {
			return nil, err
		}
	}

	fee := s.CalculateFee(req.FromAmount, monthlyVolume)
	fromChain, toChain := blockchainsFor(req.TransactionType)

	transaction := &bridgedomain.BridgeTransaction{
		ID:              uuid.NewString(),
		TransactionHash: req.TransactionHash,
		TransactionType: req.TransactionType,
		UserID:          req.UserID,
		FromToken:       req.FromToken,
		ToToken:         req.ToToken,
		FromAmount:      req.FromAmount,
		ToAmount:        req.ToAmount,
		ExchangeRate:    req.ToAmount / req.FromAmount,
		FeeAmount:       fee,
		FeeCurrency:     req.FromToken,
		FromBlockchain:  fromChain,
		ToBlockchain:    toChain,
		FromAddress:     req.FromAddress,
		ToAddress:       req.ToAddress,
		Status:          bridgedomain.TxPending,
		Metadata: datatypes.JSONMap{
			"fee_calculation": map[string]any{
				"base_fee_rate":  s.revenue.Get().BridgeBaseFeeRate,
				"monthly_volume": monthlyVolume,
			},
		},
		CreatedAt: now,
	}

	collection := &bridgedomain.FeeCollection{
		ID:                uuid.NewString(),
		TransactionID:     transaction.ID,
		FeeAmount:         fee,
		FeeCurrency:       transaction.FeeCurrency,
		CollectionAddress: collectionAddressFor(transaction.FeeCurrency),
		Status:            bridgedomain.CollectionPending,
		Metadata: datatypes.JSONMap{
			"collection_method": "automatic",
			"blockchain":        strings.ToLower(transaction.FeeCurrency),
		},
		CreatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.txrepo.WithTrx(tx).Create(ctx, transaction); err != nil {
			return err
		}
		return s.feerepo.WithTrx(tx).Create(ctx, collection)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("bridge transaction processed",
		zap.String("transaction_hash", transaction.TransactionHash),
		zap.Float64("fee_amount", fee),
	)
	return transaction, nil
}

// ConfirmTransaction marks the transfer confirmed, completes its fee
// collection, and journals the fee as bridge revenue.
func (s *Service) ConfirmTransaction(ctx context.Context, transactionHash string, blockHeight int64) (*bridgedomain.BridgeTransaction, error) {
	transaction, err := s.GetTransaction(ctx, transactionHash)
	if err != nil {
		return nil, err
	}
	if transaction.Status != bridgedomain.TxPending {
		return nil, bridgedomain.ErrAlreadyConfirmed
	}

	now := s.clock.Now()
	transaction.Status = bridgedomain.TxConfirmed
	transaction.BlockHeight = &blockHeight
	transaction.Confirmations = 1
	transaction.ProcessedAt = &now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&bridgedomain.BridgeTransaction{}).
			Where("id = ?", transaction.ID).
			Updates(map[string]any{
				"status":        transaction.Status,
				"block_height":  blockHeight,
				"confirmations": 1,
				"processed_at":  now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&bridgedomain.FeeCollection{}).
			Where("transaction_id = ?", transaction.ID).
			Updates(map[string]any{
				"status":       bridgedomain.CollectionCollected,
				"collected_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.streams.RecordStream(ctx, revenuedomain.RecordStreamRequest{
		StreamType:    revenuedomain.StreamBridgeFees,
		Amount:        transaction.FeeAmount,
		UserID:        transaction.UserID,
		TransactionID: &transaction.ID,
		Metadata: map[string]any{
			"from_token": transaction.FromToken,
			"to_token":   transaction.ToToken,
			"amount":     transaction.FromAmount,
		},
	}); err != nil {
		s.log.Error("bridge fee stream record failed",
			zap.String("transaction_hash", transactionHash),
			zap.Error(err),
		)
	}

	s.log.Info("bridge transaction confirmed",
		zap.String("transaction_hash", transactionHash),
		zap.Int64("block_height", blockHeight),
	)
	return transaction, nil
}

func (s *Service) GetTransaction(ctx context.Context, transactionHash string) (*bridgedomain.BridgeTransaction, error) {
	transaction, err := s.txrepo.FindOne(ctx, &bridgedomain.BridgeTransaction{TransactionHash: transactionHash})
	if err != nil {
		return nil, err
	}
	if transaction == nil {
		return nil, bridgedomain.ErrTransactionNotFound
	}
	return transaction, nil
}

// UserMonthlyVolume sums the user's month-to-date transfer volume,
// excluding failed transfers.
func (s *Service) UserMonthlyVolume(ctx context.Context, userID string, now time.Time) (float64, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	var volume float64
	err := s.db.WithContext(ctx).Model(&bridgedomain.BridgeTransaction{}).
		Select("COALESCE(SUM(from_amount), 0)").
		Where("user_id = ? AND created_at >= ? AND status != ?",
			userID, monthStart, bridgedomain.TxFailed).
		Scan(&volume).Error
	return volume, err
}

// AddLiquidity opens a locked position at an APY that grows with lock
// duration up to the cap.
func (s *Service) AddLiquidity(ctx context.Context, req bridgedomain.AddLiquidityRequest) (*bridgedomain.LiquidityProvision, error) {
	if req.Amount <= 0 {
		return nil, bridgedomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	var expires *time.Time
	if req.LockDuration > 0 {
		end := now.AddDate(0, 0, req.LockDuration)
		expires = &end
	}

	provision := &bridgedomain.LiquidityProvision{
		ID:             uuid.NewString(),
		ProviderID:     req.ProviderID,
		TokenPair:      req.TokenPair,
		AmountProvided: req.Amount,
		Currency:       req.Currency,
		APY:            liquidityAPY(req.LockDuration),
		LockDuration:   req.LockDuration,
		Status:         bridgedomain.LiquidityActive,
		CreatedAt:      now,
		ExpiresAt:      expires,
	}
	if err := s.liquidityrepo.Create(ctx, provision); err != nil {
		return nil, err
	}

	s.log.Info("liquidity provision added",
		zap.String("provision_id", provision.ID),
		zap.String("token_pair", provision.TokenPair),
		zap.Float64("apy", provision.APY),
	)
	return provision, nil
}

func (s *Service) GetAnalytics(ctx context.Context) (*bridgedomain.BridgeAnalytics, error) {
	analytics := &bridgedomain.BridgeAnalytics{
		ByType: map[bridgedomain.TransactionType]int64{},
	}

	type totalsRow struct {
		Total  int64
		Volume float64
		Fees   float64
	}
	var totals totalsRow
	err := s.db.WithContext(ctx).Model(&bridgedomain.BridgeTransaction{}).
		Select("COUNT(*) AS total, COALESCE(SUM(from_amount), 0) AS volume, COALESCE(SUM(fee_amount), 0) AS fees").
		Where("status != ?", bridgedomain.TxFailed).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	analytics.TotalTransactions = totals.Total
	analytics.TotalVolumeUSD = money.Round(totals.Volume)
	analytics.TotalFeesUSD = money.Round(totals.Fees)
	if totals.Volume > 0 {
		analytics.AvgFeeRatePct = totals.Fees / totals.Volume * 100
	}

	type typeRow struct {
		TransactionType bridgedomain.TransactionType
		Total           int64
	}
	var byType []typeRow
	err = s.db.WithContext(ctx).Model(&bridgedomain.BridgeTransaction{}).
		Select("transaction_type, COUNT(*) AS total").
		Where("status != ?", bridgedomain.TxFailed).
		Group("transaction_type").
		Scan(&byType).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byType {
		analytics.ByType[row.TransactionType] = row.Total
	}

	var liquidity float64
	err = s.db.WithContext(ctx).Model(&bridgedomain.LiquidityProvision{}).
		Select("COALESCE(SUM(amount_provided), 0)").
		Where("status = ?", bridgedomain.LiquidityActive).
		Scan(&liquidity).Error
	if err != nil {
		return nil, err
	}
	analytics.ActiveLiquidity = money.Round(liquidity)

	return analytics, nil
}

func liquidityAPY(lockDays int) float64 {
	apy := baseLiquidityAPY + float64(lockDays)*apyBonusPerLockDay
	if apy > maxLiquidityAPY {
		apy = maxLiquidityAPY
	}
	return apy
}

func blockchainsFor(transactionType bridgedomain.TransactionType) (string, string) {
	switch transactionType {
	case bridgedomain.TypeNockToSolana:
		return "nock", "solana"
	case bridgedomain.TypeSolanaToNock:
		return "solana", "nock"
	default:
		return "multi", "multi"
	}
}

func collectionAddressFor(feeCurrency string) string {
	switch strings.ToUpper(feeCurrency) {
	case "NOCK":
		return "nock1fee_collection_address"
	case "SOL":
		return "sol_fee_collection_address"
	default:
		return fmt.Sprintf("%s_fee_collection_address", strings.ToLower(feeCurrency))
	}
}
