package domain

// Targets carries the monthly revenue goals per stream. The monthly total
// comes from runtime config; the per-stream split stays at the defaults.
type Targets struct {
	MonthlyTargetUSD      float64 `json:"monthly_target_usd"`
	MiningPoolUSD         float64 `json:"mining_pool_usd"`
	AnalyticsUSD          float64 `json:"analytics_usd"`
	BridgeUSD             float64 `json:"bridge_usd"`
	TradingUSD            float64 `json:"trading_usd"`
	EnterpriseUSD         float64 `json:"enterprise_usd"`
	OptimizationUSD       float64 `json:"optimization_usd"`
	PerformanceUSD        float64 `json:"performance_usd"`
}

// DefaultTargets returns the per-stream goals under the given monthly total.
func DefaultTargets(monthlyTargetUSD float64) Targets {
	return Targets{
		MonthlyTargetUSD: monthlyTargetUSD,
		MiningPoolUSD:    75_000,
		AnalyticsUSD:     195_000,
		BridgeUSD:        645_000,
		TradingUSD:       1_295_000,
		EnterpriseUSD:    300_000,
		OptimizationUSD:  200_000,
		PerformanceUSD:   120_000,
	}
}

// Category buckets a stream type for progress reporting.
func Category(streamType string) string {
	switch streamType {
	case StreamPremiumAnalytics, StreamAPILicensing:
		return "subscription"
	case StreamBridgeFees, StreamMiningPool, StreamOTCTrading:
		return "transaction"
	case StreamEnterpriseServices, StreamCustody, StreamPerformanceOptimization:
		return "enterprise"
	default:
		return "other"
	}
}
