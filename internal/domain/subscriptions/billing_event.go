package subscriptions

import (
	"time"

	"schoolsite-app/internal/domain/plans"
)

type EventKind string

const (
	EventCreated       EventKind = "subscription.created"
	EventUpdated       EventKind = "subscription.updated"
	EventDeleted       EventKind = "subscription.deleted"
	EventPaymentFailed EventKind = "invoice.payment_failed"
)

// Normalised provider statuses (see infra/stripe).
const (
	ProviderActive   = "active"
	ProviderTrialing = "trialing"
	ProviderPastDue  = "past_due"
	ProviderCanceled = "canceled"
)

// BillingEvent is a provider callback reduced to what the subscription
// record needs. The wire format stays in the webhook handler.
type BillingEvent struct {
	Kind     EventKind
	SchoolID uint

	ProviderStatus    string
	Plan              plans.Tier
	MaxSchools        int
	CustomerID        string
	SubscriptionID    string
	PriceID           string
	TrialEnd          *time.Time
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	EndedAt           *time.Time
}

// Apply folds a billing callback into the stored subscription fields that
// Derive reads. Only one of trial/renewal/expiry stays authoritative.
func Apply(sub *Subscription, ev BillingEvent, now time.Time) {
	if ev.CustomerID != "" {
		sub.StripeCustomerID = strPtr(ev.CustomerID)
	}
	if ev.SubscriptionID != "" {
		sub.StripeSubscriptionID = strPtr(ev.SubscriptionID)
	}
	if ev.PriceID != "" {
		sub.StripePriceID = strPtr(ev.PriceID)
	}
	if ev.Plan.Valid() {
		sub.Plan = string(ev.Plan)
	}
	if ev.MaxSchools > 0 {
		sub.MaxSchools = ev.MaxSchools
	}

	switch ev.Kind {
	case EventCreated, EventUpdated:
		applyProviderStatus(sub, ev, now)
	case EventDeleted:
		applyEnded(sub, ev, now)
	case EventPaymentFailed:
		applyPaymentFailed(sub, now)
	}
}

func applyProviderStatus(sub *Subscription, ev BillingEvent, now time.Time) {
	switch ev.ProviderStatus {
	case ProviderTrialing:
		sub.Status = StatusTrial
		if ev.TrialEnd != nil {
			sub.TrialEndsAt = ev.TrialEnd
		}
		sub.RenewsAt = nil
		sub.ExpiresAt = nil

	case ProviderActive:
		sub.TrialEndsAt = nil
		sub.PaymentFailedAt = nil
		if ev.CancelAtPeriodEnd {
			sub.Status = StatusCancelled
			sub.RenewsAt = nil
			sub.ExpiresAt = ev.CurrentPeriodEnd
			return
		}
		sub.Status = StatusActive
		sub.RenewsAt = ev.CurrentPeriodEnd
		sub.ExpiresAt = nil

	case ProviderPastDue:
		applyPaymentFailed(sub, now)

	case ProviderCanceled:
		applyEnded(sub, ev, now)
	}
}

func applyEnded(sub *Subscription, ev BillingEvent, now time.Time) {
	end := now
	if ev.EndedAt != nil {
		end = *ev.EndedAt
	}
	sub.Status = StatusExpired
	sub.TrialEndsAt = nil
	sub.RenewsAt = nil
	sub.ExpiresAt = &end
}

func applyPaymentFailed(sub *Subscription, now time.Time) {
	sub.Status = StatusActive
	sub.TrialEndsAt = nil
	sub.ExpiresAt = nil
	if sub.RenewsAt == nil {
		n := now
		sub.RenewsAt = &n
	}
	if sub.PaymentFailedAt == nil {
		n := now
		sub.PaymentFailedAt = &n
	}
}

func strPtr(s string) *string { return &s }
