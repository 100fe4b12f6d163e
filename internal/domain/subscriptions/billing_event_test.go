package subscriptions

import (
	"testing"
	"time"

	"schoolsite-app/internal/domain/plans"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_ActiveRenewing(t *testing.T) {
	sub := NewTrial(1, now, 30, 1)
	Apply(sub, BillingEvent{
		Kind:             EventCreated,
		ProviderStatus:   ProviderActive,
		Plan:             plans.TierProfessional,
		CustomerID:       "cus_1",
		SubscriptionID:   "sub_1",
		PriceID:          "price_pro",
		CurrentPeriodEnd: at(30 * day),
	}, now)

	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, "professional", sub.Plan)
	assert.Nil(t, sub.TrialEndsAt)
	assert.Nil(t, sub.ExpiresAt)
	require.NotNil(t, sub.RenewsAt)
	require.NotNil(t, sub.StripeSubscriptionID)
	assert.Equal(t, "sub_1", *sub.StripeSubscriptionID)
	assert.Equal(t, StateActiveRenewing, Derive(sub, now).State)
}

func TestApply_CancelAtPeriodEnd(t *testing.T) {
	sub := &Subscription{Status: StatusActive, RenewsAt: at(10 * day)}
	Apply(sub, BillingEvent{
		Kind:              EventUpdated,
		ProviderStatus:    ProviderActive,
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  at(10 * day),
	}, now)

	assert.Equal(t, StatusCancelled, sub.Status)
	assert.Nil(t, sub.RenewsAt)
	assert.Equal(t, StateCancelledPendingExpiry, Derive(sub, now).State)
}

func TestApply_Trialing(t *testing.T) {
	sub := &Subscription{Status: StatusExpired, ExpiresAt: at(-day)}
	Apply(sub, BillingEvent{Kind: EventCreated, ProviderStatus: ProviderTrialing, TrialEnd: at(14 * day)}, now)

	assert.Equal(t, StatusTrial, sub.Status)
	assert.Nil(t, sub.ExpiresAt)
	assert.Equal(t, StateTrial, Derive(sub, now).State)
}

func TestApply_Deleted(t *testing.T) {
	sub := &Subscription{Status: StatusActive, RenewsAt: at(10 * day)}
	Apply(sub, BillingEvent{Kind: EventDeleted}, now)

	assert.Equal(t, StatusExpired, sub.Status)
	assert.Nil(t, sub.RenewsAt)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, StateExpired, Derive(sub, now).State)
}

func TestApply_PaymentFailedKeepsRenewalDate(t *testing.T) {
	renews := at(-2 * day)
	sub := &Subscription{Status: StatusActive, RenewsAt: renews, ExpiresAt: at(3 * day)}
	Apply(sub, BillingEvent{Kind: EventPaymentFailed}, now)

	assert.Equal(t, renews, sub.RenewsAt)
	assert.Nil(t, sub.ExpiresAt)
	require.NotNil(t, sub.PaymentFailedAt)
	assert.Equal(t, StateRenewalFailed, Derive(sub, now).State)
}

func TestApply_PastDueStatus(t *testing.T) {
	sub := &Subscription{Status: StatusActive, RenewsAt: at(-time.Hour)}
	Apply(sub, BillingEvent{Kind: EventUpdated, ProviderStatus: ProviderPastDue}, now)

	assert.Equal(t, StateRenewalFailed, Derive(sub, now).State)
}

func TestApply_UnknownPlanKeepsStoredPlan(t *testing.T) {
	sub := &Subscription{Plan: "enterprise"}
	Apply(sub, BillingEvent{Kind: EventUpdated, Plan: plans.TierNone}, now)

	assert.Equal(t, "enterprise", sub.Plan)
}
