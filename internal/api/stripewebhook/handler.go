package stripewebhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"schoolsite-app/internal/domain/billing"
	"schoolsite-app/internal/domain/plans"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/infra/logger"
	"schoolsite-app/internal/infra/metrics"
	stripeinfra "schoolsite-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"
)

const maxBodyBytes = 65536

type Deps struct {
	Secret        string
	Events        billing.EventLog
	Plans         plans.Store
	Schools       tenants.Store
	Subscriptions subscriptions.Store
	Resolver      *tenants.Resolver
}

type Handler struct {
	Deps
	now func() time.Time
}

func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d, now: time.Now}
}

// target is the subscription an event applies to and the school whose
// cached resolution must be dropped afterwards (0 when unknown).
type target struct {
	sub      *subscriptions.Subscription
	school   *tenants.Tenant
	schoolID uint
}

func (h *Handler) Handle(c *gin.Context) {
	if h.Secret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STRIPE_WEBHOOK_SECRET not configured"})
		return
	}
	log := logger.WithRequest(c)

	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		log.Warn("stripe signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	kind, ok := stripeinfra.EventKind(event.Type)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ctx := c.Request.Context()
	seen, err := h.Events.Seen(ctx, event.ID)
	if err != nil {
		log.Error("billing event lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event log unavailable"})
		return
	}
	if seen {
		metrics.BillingEvents.WithLabelValues(string(kind), "duplicate").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	ev, err := decode(kind, event.Data.Raw)
	if err != nil {
		metrics.BillingEvents.WithLabelValues(string(kind), "malformed").Inc()
		log.Warn("malformed billing event", zap.String("event_id", event.ID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event"})
		return
	}
	if err := h.fillPlan(ctx, &ev); err != nil {
		log.Error("plan lookup failed", zap.String("price_id", ev.PriceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "plan lookup failed"})
		return
	}

	tg, err := h.locate(ctx, ev)
	if err != nil {
		log.Error("billing target lookup failed", zap.String("event_id", event.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if tg == nil {
		// acknowledged so the provider stops retrying
		h.record(ctx, event.ID, ev, nil, billing.ResultIgnored)
		metrics.BillingEvents.WithLabelValues(string(kind), billing.ResultIgnored).Inc()
		log.Info("billing event for unknown school ignored",
			zap.String("event_id", event.ID), zap.String("subscription_id", ev.SubscriptionID))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	before := tg.sub.Status
	subscriptions.Apply(tg.sub, ev, h.now())
	if err := h.persist(ctx, tg); err != nil {
		metrics.BillingEvents.WithLabelValues(string(kind), "error").Inc()
		log.Error("subscription update failed", zap.String("event_id", event.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscription update failed"})
		return
	}
	h.forget(ctx, tg, log)

	h.record(ctx, event.ID, ev, tg, billing.ResultApplied)
	metrics.BillingEvents.WithLabelValues(string(kind), billing.ResultApplied).Inc()
	log.Info("billing event applied",
		zap.String("event_id", event.ID),
		zap.String("kind", string(kind)),
		zap.Uint("subscription_id", tg.sub.ID),
		zap.String("status_before", before),
		zap.String("status_after", tg.sub.Status),
	)
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func decode(kind subscriptions.EventKind, raw json.RawMessage) (subscriptions.BillingEvent, error) {
	if kind == subscriptions.EventPaymentFailed {
		var inv stripe.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return subscriptions.BillingEvent{}, err
		}
		return stripeinfra.FromInvoice(&inv)
	}
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return subscriptions.BillingEvent{}, err
	}
	return stripeinfra.FromSubscription(kind, &sub)
}

// fillPlan maps the provider price to the catalogue tier. Unknown prices
// leave the stored plan untouched.
func (h *Handler) fillPlan(ctx context.Context, ev *subscriptions.BillingEvent) error {
	if ev.PriceID == "" || h.Plans == nil {
		return nil
	}
	p, err := h.Plans.GetByStripePriceID(ctx, ev.PriceID)
	if err != nil || p == nil {
		return err
	}
	ev.Plan = plans.PlanTier(p)
	ev.MaxSchools = p.MaxSchools
	return nil
}

// locate finds the subscription by the school id in metadata, falling back
// to the provider subscription id. nil, nil means nothing matches.
func (h *Handler) locate(ctx context.Context, ev subscriptions.BillingEvent) (*target, error) {
	if ev.SchoolID != 0 {
		school, err := h.Schools.GetByID(ctx, ev.SchoolID)
		switch {
		case errors.Is(err, tenants.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			sub, err := tenants.LoadSubscription(ctx, h.Subscriptions, school)
			if err != nil {
				return nil, err
			}
			if sub == nil {
				sub = &subscriptions.Subscription{OwnerID: school.OwnerID, Plan: string(plans.TierStarter), MaxSchools: 1}
			}
			return &target{sub: sub, school: school, schoolID: school.ID}, nil
		}
	}

	if ev.SubscriptionID == "" {
		return nil, nil
	}
	sub, err := h.Subscriptions.GetByStripeID(ctx, ev.SubscriptionID)
	if errors.Is(err, subscriptions.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &target{sub: sub}, nil
}

// persist saves the subscription. A school that had none gets the new
// record linked.
func (h *Handler) persist(ctx context.Context, tg *target) error {
	if tg.sub.ID != 0 {
		return h.Subscriptions.Save(ctx, tg.sub)
	}
	if err := h.Subscriptions.Create(ctx, tg.sub); err != nil {
		return err
	}
	tg.school.SubscriptionID = &tg.sub.ID
	tg.school.Subscription = nil
	return h.Schools.Update(ctx, tg.school)
}

// forget drops cached resolutions for every school on the subscription,
// plus the metadata school when it was just linked.
func (h *Handler) forget(ctx context.Context, tg *target, log *zap.Logger) {
	ids, err := h.Schools.IDsBySubscription(ctx, tg.sub.ID)
	if err != nil {
		log.Warn("schools for subscription lookup failed, cache may stay stale until ttl",
			zap.Uint("subscription_id", tg.sub.ID), zap.Error(err))
	}
	if tg.schoolID != 0 && !slices.Contains(ids, tg.schoolID) {
		ids = append(ids, tg.schoolID)
	}
	for _, id := range ids {
		h.Resolver.Forget(ctx, id)
	}
}

func (h *Handler) record(ctx context.Context, id string, ev subscriptions.BillingEvent, tg *target, result string) {
	pe := &billing.ProcessedEvent{
		StripeEventID: id,
		Kind:          string(ev.Kind),
		Result:        result,
	}
	if ev.SubscriptionID != "" {
		s := ev.SubscriptionID
		pe.StripeSubscriptionID = &s
	}
	if tg != nil && tg.schoolID != 0 {
		sid := tg.schoolID
		pe.SchoolID = &sid
	}
	if err := h.Events.Record(ctx, pe); err != nil {
		// the update is idempotent, a retry re-applies the same state
		logger.FromContext(ctx).Warn("billing event record failed", zap.String("event_id", id), zap.Error(err))
	}
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
