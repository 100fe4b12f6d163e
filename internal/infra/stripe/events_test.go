package stripe

import (
	"testing"

	"schoolsite-app/internal/domain/subscriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
)

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, "none", NormalizeStatus(" "))
	assert.Equal(t, subscriptions.ProviderPastDue, NormalizeStatus("unpaid"))
	assert.Equal(t, subscriptions.ProviderCanceled, NormalizeStatus("incomplete_expired"))
	assert.Equal(t, "paused", NormalizeStatus("paused"))
}

func TestFromSubscription(t *testing.T) {
	sub := &stripe.Subscription{
		ID:                "sub_1",
		Status:            "active",
		Customer:          &stripe.Customer{ID: "cus_1"},
		CurrentPeriodEnd:  1767225600,
		CancelAtPeriodEnd: true,
		Metadata:          map[string]string{"school_id": "12"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_pro"}}},
		},
	}

	ev, err := FromSubscription(subscriptions.EventUpdated, sub)
	require.NoError(t, err)
	assert.Equal(t, uint(12), ev.SchoolID)
	assert.Equal(t, "price_pro", ev.PriceID)
	assert.Equal(t, "cus_1", ev.CustomerID)
	assert.True(t, ev.CancelAtPeriodEnd)
	require.NotNil(t, ev.CurrentPeriodEnd)
	assert.Equal(t, int64(1767225600), ev.CurrentPeriodEnd.Unix())
	assert.Nil(t, ev.TrialEnd)

	_, err = FromSubscription(subscriptions.EventUpdated, &stripe.Subscription{})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFromInvoice_FallsBackToSubscriptionMetadata(t *testing.T) {
	inv := &stripe.Invoice{
		Subscription: &stripe.Subscription{ID: "sub_1", Metadata: map[string]string{"school_id": "3"}},
	}

	ev, err := FromInvoice(inv)
	require.NoError(t, err)
	assert.Equal(t, subscriptions.EventPaymentFailed, ev.Kind)
	assert.Equal(t, uint(3), ev.SchoolID)
}

func TestEventKind(t *testing.T) {
	k, ok := EventKind("customer.subscription.deleted")
	assert.True(t, ok)
	assert.Equal(t, subscriptions.EventDeleted, k)

	_, ok = EventKind("checkout.session.completed")
	assert.False(t, ok)
}

func TestSchoolIDFromMetadata(t *testing.T) {
	assert.Equal(t, uint(0), SchoolIDFromMetadata(nil))
	assert.Equal(t, uint(0), SchoolIDFromMetadata(map[string]string{"school_id": "abc"}))
}
