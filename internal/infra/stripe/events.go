package stripe

import (
	"errors"
	"strconv"
	"time"

	"schoolsite-app/internal/domain/subscriptions"

	"github.com/stripe/stripe-go/v75"
)

// MetadataSchoolID is the metadata key carrying the school id on
// subscriptions and invoices.
const MetadataSchoolID = "school_id"

var ErrMalformed = errors.New("stripe payload missing required fields")

// EventKind maps provider event types to billing event kinds.
func EventKind(t stripe.EventType) (subscriptions.EventKind, bool) {
	switch t {
	case "customer.subscription.created":
		return subscriptions.EventCreated, true
	case "customer.subscription.updated":
		return subscriptions.EventUpdated, true
	case "customer.subscription.deleted":
		return subscriptions.EventDeleted, true
	case "invoice.payment_failed":
		return subscriptions.EventPaymentFailed, true
	}
	return "", false
}

func SchoolIDFromMetadata(md map[string]string) uint {
	if md == nil {
		return 0
	}
	s := md[MetadataSchoolID]
	if s == "" {
		return 0
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// FromSubscription reduces a subscription payload to a BillingEvent.
// Plan and MaxSchools are left for the caller to fill from the catalogue.
func FromSubscription(kind subscriptions.EventKind, sub *stripe.Subscription) (subscriptions.BillingEvent, error) {
	if sub == nil || sub.ID == "" {
		return subscriptions.BillingEvent{}, ErrMalformed
	}

	ev := subscriptions.BillingEvent{
		Kind:              kind,
		SchoolID:          SchoolIDFromMetadata(sub.Metadata),
		ProviderStatus:    NormalizeStatus(string(sub.Status)),
		SubscriptionID:    sub.ID,
		TrialEnd:          unixPtr(sub.TrialEnd),
		CurrentPeriodEnd:  unixPtr(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		EndedAt:           unixPtr(sub.EndedAt),
	}
	if sub.Customer != nil {
		ev.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PriceID = sub.Items.Data[0].Price.ID
	}
	return ev, nil
}

// FromInvoice reduces a failed-payment invoice to a BillingEvent.
func FromInvoice(inv *stripe.Invoice) (subscriptions.BillingEvent, error) {
	if inv == nil || inv.Subscription == nil || inv.Subscription.ID == "" {
		return subscriptions.BillingEvent{}, ErrMalformed
	}

	ev := subscriptions.BillingEvent{
		Kind:           subscriptions.EventPaymentFailed,
		SchoolID:       SchoolIDFromMetadata(inv.Metadata),
		ProviderStatus: subscriptions.ProviderPastDue,
		SubscriptionID: inv.Subscription.ID,
	}
	if ev.SchoolID == 0 {
		ev.SchoolID = SchoolIDFromMetadata(inv.Subscription.Metadata)
	}
	if inv.Customer != nil {
		ev.CustomerID = inv.Customer.ID
	}
	return ev, nil
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
