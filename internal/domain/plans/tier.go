package plans

import "strings"

type Tier string

// Tier constants (single source of truth)
const (
	TierNone         Tier = "none"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Rank orders tiers: starter=0, professional=1, enterprise=2.
// TierNone and unknown values rank below every plan.
func (t Tier) Rank() int {
	switch t {
	case TierStarter:
		return 0
	case TierProfessional:
		return 1
	case TierEnterprise:
		return 2
	default:
		return -1
	}
}

// AtLeast reports whether t includes everything min includes.
func (t Tier) AtLeast(min Tier) bool {
	return t.Rank() >= 0 && t.Rank() >= min.Rank()
}

func (t Tier) Valid() bool { return t.Rank() >= 0 }

// ParseTier normalises free text ("Professional ", "ENTERPRISE") into a Tier.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TierNone
}

// PlanTier returns the effective tier for a catalogue plan.
// Priority:
// 1. Explicit Tier stored in DB
// 2. Fallback inference by price (plans synced before tiers were tagged)
func PlanTier(p *Plan) Tier {
	if p == nil {
		return TierNone
	}
	if tier := ParseTier(p.Tier); tier != TierNone {
		return tier
	}
	return inferTierFromPrice(p.PriceEUR)
}

// inferTierFromPrice exists ONLY as a backward-compatibility fallback.
func inferTierFromPrice(priceEUR float64) Tier {
	switch {
	case priceEUR >= 90:
		return TierEnterprise
	case priceEUR >= 40:
		return TierProfessional
	default:
		return TierStarter
	}
}
