package domain

// TierPricing holds the monthly and annual price for one plan.
type TierPricing struct {
	MonthlyUSD float64
	AnnualUSD  float64
}

// Pricing is the platform plan catalog.
var Pricing = map[Tier]TierPricing{
	TierFree:         {MonthlyUSD: 0, AnnualUSD: 0},
	TierBasic:        {MonthlyUSD: 29, AnnualUSD: 299},
	TierProfessional: {MonthlyUSD: 99, AnnualUSD: 999},
	TierEnterprise:   {MonthlyUSD: 499, AnnualUSD: 4999},
}

// PriceFor returns the price of a tier for the given billing cycle.
func PriceFor(tier Tier, cycle BillingCycle) (float64, bool) {
	p, ok := Pricing[tier]
	if !ok {
		return 0, false
	}
	if cycle == BillingCycleAnnual {
		return p.AnnualUSD, true
	}
	return p.MonthlyUSD, true
}

// Baseline SaaS health assumptions used by the analytics endpoints until
// enough history accumulates to compute them from events.
const (
	DefaultChurnRatePct      = 5.0
	DefaultGrowthRatePct     = 15.0
	DefaultConversionRatePct = 3.5
)
