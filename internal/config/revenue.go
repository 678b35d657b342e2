package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RevenueConfig carries the tunable rates the billing and trading paths
// apply. It lives in a config file rather than code so operators can adjust
// rates without a deploy.
type RevenueConfig struct {
	TaxRate           float64 `mapstructure:"taxRate"`
	PaymentTermDays   int     `mapstructure:"paymentTermDays"`
	MarketPriceUSD    float64 `mapstructure:"marketPriceUsd"`
	CustodyAnnualRate float64 `mapstructure:"custodyAnnualRate"`
	BridgeBaseFeeRate float64 `mapstructure:"bridgeBaseFeeRate"`
	BridgeMinimumFee  float64 `mapstructure:"bridgeMinimumFee"`
	BridgeMaximumFee  float64 `mapstructure:"bridgeMaximumFee"`
	MonthlyTargetUSD  float64 `mapstructure:"monthlyTargetUsd"`
	TrialPeriodDays   int     `mapstructure:"trialPeriodDays"`
	OptimizeThreshold float64 `mapstructure:"optimizeThreshold"`
}

func DefaultRevenueConfig() RevenueConfig {
	return RevenueConfig{
		TaxRate:           0.0875,
		PaymentTermDays:   15,
		MarketPriceUSD:    45_000,
		CustodyAnnualRate: 0.50,
		BridgeBaseFeeRate: 0.0025,
		BridgeMinimumFee:  0.10,
		BridgeMaximumFee:  50,
		MonthlyTargetUSD:  2_095_000,
		TrialPeriodDays:   14,
		OptimizeThreshold: 1_000,
	}
}

type RevenueConfigHolder struct {
	current atomic.Value // holds RevenueConfig
}

// NewRevenueConfigHolder reads revenue.yml and keeps watching it. Reads are
// lock-free; writers swap the whole struct.
func NewRevenueConfigHolder() (*RevenueConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("revenue")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/revenue-engine/config")
	v.AddConfigPath("/etc/revenue-engine")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REVENUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRevenueConfig()
	v.SetDefault("revenue.taxRate", defaults.TaxRate)
	v.SetDefault("revenue.paymentTermDays", defaults.PaymentTermDays)
	v.SetDefault("revenue.marketPriceUsd", defaults.MarketPriceUSD)
	v.SetDefault("revenue.custodyAnnualRate", defaults.CustodyAnnualRate)
	v.SetDefault("revenue.bridgeBaseFeeRate", defaults.BridgeBaseFeeRate)
	v.SetDefault("revenue.bridgeMinimumFee", defaults.BridgeMinimumFee)
	v.SetDefault("revenue.bridgeMaximumFee", defaults.BridgeMaximumFee)
	v.SetDefault("revenue.monthlyTargetUsd", defaults.MonthlyTargetUSD)
	v.SetDefault("revenue.trialPeriodDays", defaults.TrialPeriodDays)
	v.SetDefault("revenue.optimizeThreshold", defaults.OptimizeThreshold)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg RevenueConfig
	if err := v.UnmarshalKey("revenue", &cfg); err != nil {
		return nil, err
	}
	if err := validateRevenueConfig(cfg); err != nil {
		return nil, err
	}

	holder := &RevenueConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RevenueConfig
		if err := v.UnmarshalKey("revenue", &updated); err != nil {
			log.Printf("[revenue-config] reload failed: %v", err)
			return
		}
		if err := validateRevenueConfig(updated); err != nil {
			log.Printf("[revenue-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[revenue-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticRevenueConfigHolder wraps a fixed config. Used by tests and by
// callers that do not want file watching.
func NewStaticRevenueConfigHolder(cfg RevenueConfig) *RevenueConfigHolder {
	holder := &RevenueConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *RevenueConfigHolder) Get() RevenueConfig {
	return h.current.Load().(RevenueConfig)
}

func validateRevenueConfig(cfg RevenueConfig) error {
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return errors.New("revenue.taxRate must be a fraction in [0, 1)")
	}
	if cfg.MarketPriceUSD <= 0 {
		return errors.New("revenue.marketPriceUsd must be positive")
	}
	if cfg.BridgeMinimumFee > cfg.BridgeMaximumFee {
		return errors.New("revenue.bridgeMinimumFee cannot exceed bridgeMaximumFee")
	}
	return nil
}
