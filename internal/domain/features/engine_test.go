package features

import (
	"testing"
	"time"

	"schoolsite-app/internal/domain/plans"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func school(tier plans.Tier, vis tenants.FeatureVisibility) *tenants.Tenant {
	sub := subscriptions.NewTrial(1, time.Now(), 30, 1)
	sub.ID = 1
	sub.Plan = string(tier)
	return &tenants.Tenant{
		ID:                1,
		Slug:              "acme",
		IsActive:          true,
		SubscriptionID:    &sub.ID,
		Subscription:      sub,
		FeatureVisibility: vis,
	}
}

func TestIsEnabled_OverrideCannotElevateAbovePlan(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	acme := school(plans.TierStarter, tenants.FeatureVisibility{"showCommunications": true})

	assert.False(t, e.IsEnabled(acme, Communications))
}

func TestIsEnabled_Defaults(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	pro := school(plans.TierProfessional, nil)

	assert.True(t, e.IsEnabled(pro, Blog))
	assert.True(t, e.IsEnabled(pro, Calendar))
	assert.False(t, e.IsEnabled(pro, ParentsArea), "parents area is opt-in")
	assert.False(t, e.IsEnabled(pro, Communications))
}

func TestIsEnabled_OverrideInsidePlan(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	pro := school(plans.TierProfessional, tenants.FeatureVisibility{
		"showParentsArea": true,
		"showBlog":        false,
	})

	assert.True(t, e.IsEnabled(pro, ParentsArea))
	assert.False(t, e.IsEnabled(pro, Blog))
}

func TestIsEnabled_UnknownFeatureAndUnresolvedSubscription(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	ent := school(plans.TierEnterprise, nil)

	assert.False(t, e.IsEnabled(ent, Feature("guestbook")))

	id := uint(9)
	bare := &tenants.Tenant{ID: 2, SubscriptionID: &id}
	assert.False(t, e.IsEnabled(bare, Blog))
	assert.False(t, e.IsEnabled(nil, Blog))
}

func TestIsEnabled_MonotoneInTier(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	tiers := []plans.Tier{plans.TierStarter, plans.TierProfessional, plans.TierEnterprise}
	vis := tenants.FeatureVisibility{
		"showParentsArea":           true,
		"showCommunications":        true,
		"enableEmailCommunications": true,
	}

	for _, def := range e.Catalog().Definitions() {
		for i := 1; i < len(tiers); i++ {
			lower := e.IsEnabled(school(tiers[i-1], vis), def.Feature)
			higher := e.IsEnabled(school(tiers[i], vis), def.Feature)
			if lower {
				assert.True(t, higher, "%s on at %s but off at %s", def.Feature, tiers[i-1], tiers[i])
			}
		}
	}
}

func TestNewEngine_CopiesCatalog(t *testing.T) {
	defs := []Definition{{Blog, "showBlog", plans.TierStarter, true, "blog"}}
	c := NewCatalog(defs)
	e := NewEngine(c)

	defs[0].DefaultOn = false
	assert.True(t, e.IsEnabled(school(plans.TierStarter, nil), Blog))
}

func TestMatrix(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	acme := school(plans.TierStarter, tenants.FeatureVisibility{"showBlog": false})

	rows := map[Feature]State{}
	for _, s := range e.Matrix(acme) {
		rows[s.Feature] = s
	}

	blog := rows[Blog]
	assert.True(t, blog.IncludedInPlan)
	assert.False(t, blog.Enabled)
	require.NotNil(t, blog.Override)
	assert.False(t, *blog.Override)

	menu := rows[Menu]
	assert.False(t, menu.IncludedInPlan)
	assert.False(t, menu.Enabled)
	assert.Nil(t, menu.Override)
}

func TestSetOverrides(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	acme := school(plans.TierProfessional, nil)

	require.NoError(t, e.SetOverrides(acme, map[Feature]bool{ParentsArea: true, Menu: false}))
	assert.Equal(t, tenants.FeatureVisibility{"showParentsArea": true, "showMenu": false}, acme.FeatureVisibility)
	assert.True(t, e.IsEnabled(acme, ParentsArea))

	err := e.SetOverrides(acme, map[Feature]bool{"guestbook": true, Blog: false})
	assert.Error(t, err)
	_, touched := acme.FeatureVisibility["showBlog"]
	assert.False(t, touched)
}

func TestCatalog_ForPage(t *testing.T) {
	f, ok := DefaultCatalog().ForPage("chi-siamo")
	assert.True(t, ok)
	assert.Equal(t, AboutUs, f)
}
