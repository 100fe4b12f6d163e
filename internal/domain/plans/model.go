package plans

// Plan is a catalogue row mapping a billing-provider price to a tier.
type Plan struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	Name          string  `json:"name"`
	PriceEUR      float64 `json:"price_eur"`
	StripePriceID string  `gorm:"column:stripe_price_id;not null;uniqueIndex:idx_plans_stripe_price_id" json:"stripe_price_id"`
	Interval      string  `json:"interval"`
	Tier          string  `gorm:"column:tier" json:"tier"` // "starter" | "professional" | "enterprise"
	MaxSchools    int     `gorm:"column:max_schools;not null;default:1" json:"max_schools"`
}
