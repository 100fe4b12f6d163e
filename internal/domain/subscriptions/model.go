package subscriptions

import (
	"time"

	"schoolsite-app/internal/domain/plans"
)

// Stored status, written by registration, billing callbacks and trial checks.
const (
	StatusTrial     = "trial"
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

type Subscription struct {
	ID      uint `gorm:"primaryKey"`
	OwnerID uint `gorm:"not null;index"`

	Plan       string `gorm:"type:varchar(20);not null;default:'starter'"`
	Status     string `gorm:"type:varchar(20);not null;default:'trial';index"`
	MaxSchools int    `gorm:"not null;default:1"`

	TrialEndsAt *time.Time `gorm:"column:trial_ends_at"`
	RenewsAt    *time.Time `gorm:"column:renews_at"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`

	// set by invoice.payment_failed, cleared by the next successful update
	PaymentFailedAt *time.Time `gorm:"column:payment_failed_at"`

	StripeCustomerID     *string `gorm:"column:stripe_customer_id;index"`
	StripeSubscriptionID *string `gorm:"column:stripe_subscription_id;uniqueIndex:idx_subscriptions_stripe_subscription_id"`
	StripePriceID        *string `gorm:"column:stripe_price_id"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Subscription) Tier() plans.Tier {
	if s == nil {
		return plans.TierNone
	}
	return plans.ParseTier(s.Plan)
}

// NewTrial builds the subscription created at self-service registration.
func NewTrial(ownerID uint, now time.Time, trialDays, maxSchools int) *Subscription {
	end := now.AddDate(0, 0, trialDays)
	if maxSchools <= 0 {
		maxSchools = 1
	}
	return &Subscription{
		OwnerID:     ownerID,
		Plan:        string(plans.TierStarter),
		Status:      StatusTrial,
		MaxSchools:  maxSchools,
		TrialEndsAt: &end,
	}
}
