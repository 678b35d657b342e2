package domain

// MinimumAnnualValue returns the smallest annual contract value accepted
// for the tier.
func (t ContractTier) MinimumAnnualValue() (float64, bool) {
	switch t {
	case TierStandard:
		return 25_000, true
	case TierPremium:
		return 100_000, true
	case TierEnterprise:
		return 500_000, true
	case TierCustom:
		return 2_000_000, true
	default:
		return 0, false
	}
}

// ServiceLevelAgreement describes the support commitment per tier.
func (t ContractTier) ServiceLevelAgreement() string {
	switch t {
	case TierStandard:
		return "99.5% uptime, 4-hour response"
	case TierPremium:
		return "99.9% uptime, 2-hour response, dedicated support"
	case TierEnterprise:
		return "99.95% uptime, 1-hour response, dedicated team"
	case TierCustom:
		return "99.99% uptime, 15-minute response, 24/7 dedicated team"
	default:
		return ""
	}
}

// DefaultResources returns the staffing allocations attached to a new
// contract. Monthly cost scales with the annual value.
func (t ContractTier) DefaultResources(annualValue float64) []DedicatedResource {
	switch t {
	case TierStandard:
		return []DedicatedResource{
			{ResourceType: "Support Engineer", Allocation: "Shared Pool", MonthlyCost: annualValue * 0.005},
		}
	case TierPremium:
		return []DedicatedResource{
			{ResourceType: "Account Manager", Allocation: "Dedicated", MonthlyCost: annualValue * 0.01},
			{ResourceType: "Technical Support", Allocation: "Dedicated", MonthlyCost: annualValue * 0.005},
		}
	case TierEnterprise:
		return []DedicatedResource{
			{ResourceType: "Account Team", Allocation: "Dedicated 3-person team", MonthlyCost: annualValue * 0.015},
			{ResourceType: "Infrastructure", Allocation: "Dedicated cluster", MonthlyCost: annualValue * 0.01},
		}
	case TierCustom:
		return []DedicatedResource{
			{ResourceType: "Executive Team", Allocation: "C-level engagement", MonthlyCost: annualValue * 0.02},
			{ResourceType: "Development Team", Allocation: "Dedicated 5-person team", MonthlyCost: annualValue * 0.025},
		}
	default:
		return nil
	}
}

// CommissionRate returns the fractional OTC commission for a notional
// value. Bands are inclusive at the lower edge.
func CommissionRate(totalValue float64) float64 {
	switch {
	case totalValue >= 10_000_000:
		return 0.0010
	case totalValue >= 1_000_000:
		return 0.0025
	case totalValue >= 100_000:
		return 0.0050
	default:
		return 0.0100
	}
}
