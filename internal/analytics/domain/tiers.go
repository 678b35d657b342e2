package domain

// Tier identifies an analytics plan.
type Tier string

const (
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
	TierAPI          Tier = "api"
)

// MonthlyPriceUSD returns the tier's monthly price.
func (t Tier) MonthlyPriceUSD() (float64, bool) {
	switch t {
	case TierBasic:
		return 49, true
	case TierProfessional:
		return 199, true
	case TierEnterprise:
		return 999, true
	case TierAPI:
		return 299, true
	default:
		return 0, false
	}
}

// DefaultLimits returns the quota set granted by the tier.
func (t Tier) DefaultLimits() UsageLimits {
	switch t {
	case TierBasic:
		return UsageLimits{
			APIRequestsPerHour: 1_000,
			CustomIndicators:   5,
			DashboardCount:     1,
			AlertCount:         5,
			ReportFrequency:    "monthly",
		}
	case TierProfessional:
		return UsageLimits{
			APIRequestsPerHour: 10_000,
			CustomIndicators:   50,
			DashboardCount:     10,
			AlertCount:         50,
			ReportFrequency:    "weekly",
		}
	case TierEnterprise:
		return UsageLimits{
			APIRequestsPerHour: 50_000,
			CustomIndicators:   1_000,
			DashboardCount:     100,
			AlertCount:         500,
			ReportFrequency:    "daily",
		}
	case TierAPI:
		return UsageLimits{
			APIRequestsPerHour: 100_000,
			CustomIndicators:   1_000,
			DashboardCount:     100,
			AlertCount:         500,
			ReportFrequency:    "daily",
		}
	default:
		return UsageLimits{}
	}
}

// Features returns the marketing feature list stored on the subscription.
func (t Tier) Features() []string {
	switch t {
	case TierBasic:
		return []string{
			"Standard charts and graphs",
			"Basic portfolio tracking",
			"Email alerts",
			"Monthly reports",
		}
	case TierProfessional:
		return []string{
			"Advanced charting suite",
			"Real-time portfolio analytics",
			"Custom alerts and notifications",
			"Weekly detailed reports",
			"Predictive analytics",
		}
	case TierEnterprise:
		return []string{
			"Complete analytics platform",
			"Real-time multi-portfolio tracking",
			"Custom dashboards",
			"Daily executive reports",
			"Dedicated support",
		}
	case TierAPI:
		return []string{
			"Premium API access",
			"Real-time data feeds",
			"WebSocket connections",
			"Custom data exports",
		}
	default:
		return nil
	}
}
