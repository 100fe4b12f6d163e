package schoolsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"schoolsite-app/config"
	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/bookings"
	"schoolsite-app/internal/domain/communications"
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/plans"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.JWT_SECRET = "test-secret"
}

type env struct {
	r       *gin.Engine
	subs    *subscriptions.MemoryStore
	schools *tenants.MemoryStore
	users   *users.MemoryStore
	events  *bookings.MemoryStore
	comms   *communications.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		subs:   subscriptions.NewMemoryStore(),
		users:  users.NewMemoryStore(),
		events: bookings.NewMemoryStore(),
		comms:  communications.NewMemoryStore(),
	}
	e.schools = tenants.NewMemoryStore(e.subs)

	h := NewHandler(Deps{
		Schools:        e.schools,
		Subscriptions:  e.subs,
		Resolver:       tenants.NewResolver(e.schools, tenants.ResolverConfig{BaseDomains: []string{"scuole.test"}}, nil),
		Engine:         features.NewEngine(features.DefaultCatalog()),
		Events:         e.events,
		Allocator:      bookings.NewAllocator(e.events),
		Communications: e.comms,
	})

	e.r = gin.New()
	e.r.GET("/api/schools/:slug/status", middleware.OptionalAuth(), middleware.LoadActor(e.users), h.Status)
	h.Mount(e.r.Group("/api/schools/:slug",
		middleware.AuthMiddleware(), middleware.LoadActor(e.users), middleware.RequireSchoolAdmin(e.schools, e.subs)))
	return e
}

func (e *env) school(t *testing.T, slug string, tier plans.Tier, renews time.Time) *tenants.Tenant {
	t.Helper()
	ctx := context.Background()
	sub := &subscriptions.Subscription{Plan: string(tier), Status: subscriptions.StatusActive, RenewsAt: &renews, MaxSchools: 1}
	require.NoError(t, e.subs.Create(ctx, sub))
	tn := &tenants.Tenant{Name: slug, Slug: slug, IsActive: true, SubscriptionID: &sub.ID}
	require.NoError(t, e.schools.Create(ctx, tn))
	return tn
}

func (e *env) admin(t *testing.T, schoolID uint) string {
	t.Helper()
	ctx := context.Background()
	u := &users.User{Email: fmt.Sprintf("admin%d@example.com", schoolID), Role: users.RoleSchoolAdmin}
	require.NoError(t, e.users.Create(ctx, u))
	require.NoError(t, e.users.AddMembership(ctx, u.ID, schoolID))
	token, err := middleware.IssueToken(u.ID, u.Email, u.Role, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func TestStatus_PublicAndAdminShapes(t *testing.T) {
	e := newEnv(t)
	tn := e.school(t, "acme", plans.TierProfessional, time.Now().Add(5*24*time.Hour))
	token := e.admin(t, tn.ID)

	w := e.do(http.MethodGet, "/api/schools/acme/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pub map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pub))
	assert.Equal(t, true, pub["isActive"])
	assert.Equal(t, float64(1), pub["daysRemaining"])
	assert.NotContains(t, w.Body.String(), "renewsAt")

	w = e.do(http.MethodGet, "/api/schools/acme/status", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var adm struct {
		Subscription subscriptions.AdminView `json:"subscription"`
		Capabilities []string                `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &adm))
	assert.Equal(t, subscriptions.StateActiveRenewing, adm.Subscription.State)
	assert.Equal(t, 5, adm.Subscription.DaysRemaining)
	assert.True(t, adm.Subscription.Warning)
	assert.Contains(t, adm.Capabilities, "custom_domain")

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/schools/nope/status", "", nil).Code)
}

func TestFeatures_MatrixAndOverrides(t *testing.T) {
	e := newEnv(t)
	tn := e.school(t, "acme", plans.TierStarter, time.Now().Add(30*24*time.Hour))
	token := e.admin(t, tn.ID)

	w := e.do(http.MethodPut, "/api/schools/acme/features", token, gin.H{"blog": false, "communications": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := e.schools.GetByID(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.Equal(t, tenants.FeatureVisibility{"showBlog": false, "showCommunications": true}, stored.FeatureVisibility)

	var resp struct {
		Tier     plans.Tier       `json:"tier"`
		Features []features.State `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, plans.TierStarter, resp.Tier)
	for _, s := range resp.Features {
		switch s.Feature {
		case features.Blog:
			assert.False(t, s.Enabled)
			assert.True(t, s.IncludedInPlan)
		case features.Communications:
			assert.False(t, s.Enabled, "plan ceiling")
			assert.False(t, s.IncludedInPlan)
			require.NotNil(t, s.Override)
			assert.True(t, *s.Override)
		}
	}

	w = e.do(http.MethodPut, "/api/schools/acme/features", token, gin.H{"karaoke": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown_feature")
}

func TestBlockedSubscription_ReadsOnly(t *testing.T) {
	e := newEnv(t)
	tn := e.school(t, "late", plans.TierStarter, time.Now().Add(-24*time.Hour))
	token := e.admin(t, tn.ID)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/schools/late/features", token, nil).Code)

	w := e.do(http.MethodGet, "/api/schools/late", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"capabilities":["billing"]`)

	w = e.do(http.MethodPost, "/api/schools/late/events", token, gin.H{"title": "x", "starts_at": time.Now().Add(time.Hour)})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestEvents_CreateAndApprovalFlow(t *testing.T) {
	e := newEnv(t)
	tn := e.school(t, "acme", plans.TierStarter, time.Now().Add(30*24*time.Hour))
	token := e.admin(t, tn.ID)

	w := e.do(http.MethodPost, "/api/schools/acme/events", token, gin.H{
		"title": "Colloqui", "starts_at": time.Now().Add(72 * time.Hour), "is_bookable": true,
		"time_slots": []string{"16:00", "16:15"}, "requires_approval": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ev bookings.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ev))
	assert.Equal(t, []string{"16:00", "16:15"}, ev.TimeSlots)

	w = e.do(http.MethodPost, "/api/schools/acme/events", token, gin.H{
		"title": "Dup", "starts_at": time.Now().Add(time.Hour), "time_slots": []string{"9:00", "9:00"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	appt, err := bookings.NewAllocator(e.events).Book(context.Background(), bookings.BookRequest{
		SchoolID: tn.ID, EventID: ev.ID, ParentID: 7, TimeSlot: "16:00",
	})
	require.NoError(t, err)
	require.Equal(t, bookings.StatusPending, appt.Status)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/schools/acme/events/%d/bookings", ev.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"time_slot":"16:00"`)

	w = e.do(http.MethodPost, fmt.Sprintf("/api/schools/acme/bookings/%d/approve", appt.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"confirmed"`)

	w = e.do(http.MethodPost, fmt.Sprintf("/api/schools/acme/bookings/%d/reject", appt.ID), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCommunications_GatedByPlan(t *testing.T) {
	e := newEnv(t)
	small := e.school(t, "small", plans.TierStarter, time.Now().Add(30*24*time.Hour))
	big := e.school(t, "big", plans.TierEnterprise, time.Now().Add(30*24*time.Hour))
	big.FeatureVisibility = tenants.FeatureVisibility{"showCommunications": true}
	require.NoError(t, e.schools.Update(context.Background(), big))

	w := e.do(http.MethodPost, "/api/schools/small/communications", e.admin(t, small.ID), gin.H{"title": "Gita"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	bigToken := e.admin(t, big.ID)
	w = e.do(http.MethodPost, "/api/schools/big/communications", bigToken, gin.H{"title": "Gita", "body": "Domani"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"is_active":true`)

	w = e.do(http.MethodPost, "/api/schools/big/communications", bigToken, gin.H{"title": "Mail", "send_email": true})
	assert.Equal(t, http.StatusForbidden, w.Code, "email communications default off")

	active, err := e.comms.ListActive(context.Background(), big.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestUpdate_CustomDomainNeedsProfessional(t *testing.T) {
	e := newEnv(t)
	small := e.school(t, "small", plans.TierStarter, time.Now().Add(30*24*time.Hour))
	pro := e.school(t, "pro", plans.TierProfessional, time.Now().Add(30*24*time.Hour))

	w := e.do(http.MethodPut, "/api/schools/small", e.admin(t, small.ID), gin.H{"domain": "www.small.it"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPut, "/api/schools/pro", e.admin(t, pro.ID), gin.H{"domain": "WWW.Pro.it:443", "primary_color": "#003366"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := e.schools.GetByID(context.Background(), pro.ID)
	require.NoError(t, err)
	assert.Equal(t, "www.pro.it", stored.HostDomain())
	assert.Equal(t, "#003366", stored.PrimaryColor)
}

func TestUpdate_RejectsPlatformDomains(t *testing.T) {
	e := newEnv(t)
	victim := e.school(t, "victim", plans.TierStarter, time.Now().Add(30*24*time.Hour))
	pro := e.school(t, "pro", plans.TierProfessional, time.Now().Add(30*24*time.Hour))
	token := e.admin(t, pro.ID)

	for _, domain := range []string{"victim.scuole.test", "scuole.test", "Deep.Victim.Scuole.Test"} {
		w := e.do(http.MethodPut, "/api/schools/pro", token, gin.H{"domain": domain})
		assert.Equal(t, http.StatusBadRequest, w.Code, domain)
		assert.Contains(t, w.Body.String(), "platform_domain")
	}

	stored, err := e.schools.GetByID(context.Background(), pro.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Domain)

	res := tenants.NewResolver(e.schools, tenants.ResolverConfig{BaseDomains: []string{"scuole.test"}}, nil)
	got, err := res.Resolve(context.Background(), "victim.scuole.test", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, victim.ID, got.ID)

	got, err = res.Resolve(context.Background(), "scuole.test", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
