package models

import "time"

// RefundWindow is how long after activation a pro subscription remains
// refundable through self-service.
const RefundWindow = 14 * 24 * time.Hour

// Plan describes a purchasable tier and its provider mapping.
type Plan struct {
	Tier          Tier
	Name          string
	PriceMonthly  int // cents
	StripePriceID string
	Refundable    bool
}

// Predefined plans. StripePriceID values must match the price objects
// configured in the provider dashboard and are normally overridden from
// config at startup.
var (
	PlanFree = Plan{
		Tier:         TierFree,
		Name:         "Free",
		PriceMonthly: 0,
	}

	PlanPro = Plan{
		Tier:          TierPro,
		Name:          "Pro",
		PriceMonthly:  1900, // $19
		StripePriceID: "price_pro_monthly",
		Refundable:    true,
	}

	PlanEnterprise = Plan{
		Tier:          TierEnterprise,
		Name:          "Enterprise",
		PriceMonthly:  0, // custom pricing
		StripePriceID: "price_enterprise_monthly",
	}

	// AllPlans is the ordered list of available plans.
	AllPlans = []Plan{PlanFree, PlanPro, PlanEnterprise}
)

// PlanByTier looks up a plan by its tier. Returns nil if not found.
func PlanByTier(t Tier) *Plan {
	for i := range AllPlans {
		if AllPlans[i].Tier == t {
			p := AllPlans[i]
			return &p
		}
	}
	return nil
}

// TierByStripePriceID maps a provider price id back to the internal tier.
// Unknown price ids map to TierFree.
func TierByStripePriceID(priceID string) Tier {
	for i := range AllPlans {
		if AllPlans[i].StripePriceID != "" && AllPlans[i].StripePriceID == priceID {
			return AllPlans[i].Tier
		}
	}
	return TierFree
}
