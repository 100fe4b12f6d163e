package features

import (
	"fmt"

	"schoolsite-app/internal/domain/apperr"
	"schoolsite-app/internal/domain/plans"
	"schoolsite-app/internal/domain/tenants"
)

/*
	Entitlement engine
	------------------
	- Decides whether a feature is on for a school.
	- Plan tier is a hard ceiling: overrides can only switch features off
	  (or back on) inside the plan, never above it.
	- Pure: no clock, no I/O.
*/

type Engine struct {
	catalog Catalog
}

func NewEngine(c Catalog) *Engine {
	return &Engine{catalog: c.clone()}
}

func (e *Engine) Catalog() Catalog { return e.catalog }

// TenantTier is the tier of the school's loaded subscription, TierNone when
// the relation is not resolved.
func TenantTier(t *tenants.Tenant) plans.Tier {
	if t == nil {
		return plans.TierNone
	}
	sub, ok := t.SubscriptionRef().Entity()
	if !ok {
		return plans.TierNone
	}
	return sub.Tier()
}

func (e *Engine) IsEnabled(t *tenants.Tenant, f Feature) bool {
	def, ok := e.catalog.Lookup(f)
	if !ok || t == nil {
		return false
	}
	if !TenantTier(t).AtLeast(def.RequiredTier) {
		return false
	}
	if v, ok := t.Override(def.StorageKey); ok {
		return v
	}
	return def.DefaultOn
}

// State is one row of the admin feature matrix.
type State struct {
	Feature        Feature    `json:"feature"`
	StorageKey     string     `json:"storageKey"`
	RequiredTier   plans.Tier `json:"requiredTier"`
	IncludedInPlan bool       `json:"includedInPlan"`
	Enabled        bool       `json:"enabled"`
	Override       *bool      `json:"override,omitempty"`
}

func (e *Engine) Matrix(t *tenants.Tenant) []State {
	tier := TenantTier(t)
	out := make([]State, 0, len(e.catalog.defs))
	for _, def := range e.catalog.defs {
		s := State{
			Feature:        def.Feature,
			StorageKey:     def.StorageKey,
			RequiredTier:   def.RequiredTier,
			IncludedInPlan: tier.AtLeast(def.RequiredTier),
			Enabled:        e.IsEnabled(t, def.Feature),
		}
		if t != nil {
			if v, ok := t.Override(def.StorageKey); ok {
				s.Override = &v
			}
		}
		out = append(out, s)
	}
	return out
}

// Enabled returns the feature → on map used by the public site.
func (e *Engine) Enabled(t *tenants.Tenant) map[Feature]bool {
	out := make(map[Feature]bool, len(e.catalog.defs))
	for _, def := range e.catalog.defs {
		out[def.Feature] = e.IsEnabled(t, def.Feature)
	}
	return out
}

// SetOverrides writes overrides into the school's visibility map. Unknown
// features are rejected before anything is written. Overrides above the
// plan are stored but stay ineffective until the school upgrades.
func (e *Engine) SetOverrides(t *tenants.Tenant, in map[Feature]bool) error {
	for f := range in {
		if _, ok := e.catalog.Lookup(f); !ok {
			return apperr.Invalid("unknown_feature", fmt.Sprintf("unknown feature %q", f))
		}
	}
	vis := t.FeatureVisibility.Clone()
	for f, v := range in {
		def, _ := e.catalog.Lookup(f)
		vis[def.StorageKey] = v
	}
	t.FeatureVisibility = vis
	return nil
}
