package plansapi

import (
	"net/http"
	"strconv"

	"schoolsite-app/internal/api/respond"
	"schoolsite-app/internal/domain/plans"
	"schoolsite-app/internal/infra/logger"
	"schoolsite-app/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	store     plans.Store
	prices    stripe.PriceSource
	productID string
}

// NewHandler wires the catalogue. prices may be nil when billing is not
// configured; sync then answers 503.
func NewHandler(store plans.Store, prices stripe.PriceSource, productID string) *Handler {
	return &Handler{store: store, prices: prices, productID: productID}
}

type SyncResult struct {
	Synced  int `json:"synced"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type PlanDTO struct {
	plans.Plan
	EffectiveTier plans.Tier `json:"effective_tier"`
}

func (h *Handler) ListPlans(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		respond.Error(c, "list plans", err, false)
		return
	}
	out := make([]PlanDTO, 0, len(list))
	for i := range list {
		out = append(out, PlanDTO{Plan: list[i], EffectiveTier: plans.PlanTier(&list[i])})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) SyncPlansFromStripe(c *gin.Context) {
	if h.prices == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Stripe key not configured", "code": "billing_disabled"})
		return
	}
	ctx := c.Request.Context()

	prices, err := h.prices.ActivePrices(ctx)
	if err != nil {
		logger.WithRequest(c).Error("stripe price list failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch Stripe prices", "code": "upstream_failure"})
		return
	}

	var res SyncResult
	for _, p := range prices {
		plan, ok := h.toPlan(p)
		if !ok {
			res.Skipped++
			continue
		}
		created, err := h.store.Upsert(ctx, plan)
		if err != nil {
			respond.Error(c, "upsert plan", err, true)
			return
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		res.Synced++
	}

	logger.WithRequest(c).Info("plans synced",
		zap.Int("synced", res.Synced), zap.Int("created", res.Created), zap.Int("skipped", res.Skipped))
	c.JSON(http.StatusOK, res)
}

// toPlan filters provider prices down to visible EUR prices of the
// configured product and maps their metadata onto a catalogue row.
func (h *Handler) toPlan(p stripe.Price) (*plans.Plan, bool) {
	if h.productID != "" && p.ProductID != h.productID {
		return nil, false
	}
	if p.Currency != "eur" {
		return nil, false
	}
	if p.Metadata["visible"] == "false" {
		return nil, false
	}

	name := p.ProductName
	if v := p.Metadata["plan"]; v != "" {
		name = v
	}

	tier := plans.ParseTier(p.Metadata["plan"])
	if tier == plans.TierNone {
		tier = plans.ParseTier(p.Metadata["tier"])
	}

	plan := &plans.Plan{
		Name:          name,
		PriceEUR:      float64(p.UnitAmount) / 100.0,
		StripePriceID: p.ID,
		Interval:      p.Interval,
		MaxSchools:    1,
	}
	if tier != plans.TierNone {
		plan.Tier = string(tier)
	}
	if n, err := strconv.Atoi(p.Metadata["max_schools"]); err == nil && n > 0 {
		plan.MaxSchools = n
	}
	return plan, true
}
