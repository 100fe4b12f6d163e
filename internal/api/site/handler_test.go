package siteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"schoolsite-app/config"
	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/access"
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

	consent := access.GuardConfig{PrivacyVersion: "2", TermsVersion: "3"}
	engine := features.NewEngine(features.DefaultCatalog())
	guard := access.NewGuard(engine, consent)
	res := tenants.NewResolver(e.schools, tenants.ResolverConfig{
		BaseDomains:        []string{"scuole.test"},
		ReservedSubdomains: []string{"www", "admin"},
	}, nil)

	h := NewHandler(Deps{
		Engine:         engine,
		Guard:          guard,
		Consent:        consent,
		Events:         e.events,
		Allocator:      bookings.NewAllocator(e.events),
		Communications: e.comms,
		Users:          e.users,
	})

	e.r = gin.New()
	chain := []gin.HandlerFunc{middleware.OptionalAuth(), middleware.LoadActor(e.users), middleware.ResolveTenant(res, e.subs)}
	h.Mount(e.r.Group("/api/site", chain...))
	h.Mount(e.r.Group("/api/s/:slug", chain...))
	return e
}

func (e *env) school(t *testing.T, slug string, tier plans.Tier, renews time.Time, overrides tenants.FeatureVisibility) *tenants.Tenant {
	t.Helper()
	ctx := context.Background()
	sub := &subscriptions.Subscription{Plan: string(tier), Status: subscriptions.StatusActive, RenewsAt: &renews}
	require.NoError(t, e.subs.Create(ctx, sub))
	tn := &tenants.Tenant{Name: slug, Slug: slug, IsActive: true, SubscriptionID: &sub.ID, FeatureVisibility: overrides}
	require.NoError(t, e.schools.Create(ctx, tn))
	return tn
}

func (e *env) user(t *testing.T, email, role string, schoolID uint, consented bool) (*users.User, string) {
	t.Helper()
	ctx := context.Background()
	u := &users.User{Email: email, Role: role}
	if consented {
		u.AcceptConsent("2", "3", time.Now())
	}
	require.NoError(t, e.users.Create(ctx, u))
	require.NoError(t, e.users.AddMembership(ctx, u.ID, schoolID))
	token, err := middleware.IssueToken(u.ID, u.Email, u.Role, time.Hour)
	require.NoError(t, err)
	return u, token
}

func (e *env) do(method, host, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = host
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSite_LiveSchool(t *testing.T) {
	e := newEnv(t)
	e.school(t, "pro", plans.TierProfessional, time.Now().Add(10*24*time.Hour), tenants.FeatureVisibility{"showParentsArea": true, "showCommunications": true})

	w := e.do(http.MethodGet, "pro.scuole.test", "/api/site", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SiteResponse](t, w)
	require.NotNil(t, resp.School)
	assert.Equal(t, "pro", resp.School.Slug)
	assert.Equal(t, access.SiteLive, resp.Mode)
	assert.True(t, resp.Status.IsActive)
	assert.True(t, resp.Features[features.ParentsArea])
	assert.True(t, resp.Features[features.Menu])
	// above the professional plan, the override has no effect
	assert.False(t, resp.Features[features.Communications])
}

func TestSite_BlockedSchoolByAudience(t *testing.T) {
	e := newEnv(t)
	tn := e.school(t, "late", plans.TierStarter, time.Now().Add(-48*time.Hour), nil)
	_, adminToken := e.user(t, "admin@late.test", users.RoleSchoolAdmin, tn.ID, false)

	w := e.do(http.MethodGet, "late.scuole.test", "/api/site", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, access.SiteMaintenance, decode[SiteResponse](t, w).Mode)

	w = e.do(http.MethodGet, "late.scuole.test", "/api/site", adminToken, nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	resp := decode[SiteResponse](t, w)
	assert.Equal(t, access.SiteActivation, resp.Mode)
	assert.Equal(t, access.AudienceAdmin, resp.Decision.Audience)
	assert.Nil(t, resp.Features)
}

func TestSite_UnknownHost(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "ghost.scuole.test", "/api/site", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, access.SiteNotFound, decode[SiteResponse](t, w).Mode)
}

func TestAccess_PageRedirectsHomeUnderPathRouting(t *testing.T) {
	e := newEnv(t)
	e.school(t, "acme", plans.TierStarter, time.Now().Add(72*time.Hour), nil)

	w := e.do(http.MethodGet, "scuole.test", "/api/s/acme/access?page=mensa", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[AccessResponse](t, w)
	assert.Equal(t, features.Menu, resp.Feature)
	assert.Equal(t, access.KindRedirect, resp.Decision.Kind)
	assert.Equal(t, "/acme", resp.Decision.Path)

	w = e.do(http.MethodGet, "acme.scuole.test", "/api/site/access?feature=blog", "", nil)
	assert.Equal(t, access.KindAllow, decode[AccessResponse](t, w).Decision.Kind)

	w = e.do(http.MethodGet, "acme.scuole.test", "/api/site/access?feature=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvents_RemainingSeats(t *testing.T) {
	e := newEnv(t)
	tn := e.school(t, "acme", plans.TierStarter, time.Now().Add(72*time.Hour), nil)
	capacity := 2
	ev := &bookings.Event{SchoolID: tn.ID, Title: "Open day", StartsAt: time.Now().Add(48 * time.Hour), IsBookable: true, MaxCapacity: &capacity}
	require.NoError(t, e.events.CreateEvent(context.Background(), ev))
	_, err := bookings.NewAllocator(e.events).Book(context.Background(), bookings.BookRequest{SchoolID: tn.ID, EventID: ev.ID, ParentID: 99})
	require.NoError(t, err)

	w := e.do(http.MethodGet, "acme.scuole.test", "/api/site/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Events []EventDTO `json:"events"`
	}](t, w)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, 1, resp.Events[0].Booked)
	require.NotNil(t, resp.Events[0].Remaining)
	assert.Equal(t, 1, *resp.Events[0].Remaining)
}

func TestCommunications_RequireEnterprise(t *testing.T) {
	e := newEnv(t)
	ent := e.school(t, "big", plans.TierEnterprise, time.Now().Add(72*time.Hour), tenants.FeatureVisibility{"showCommunications": true})
	e.school(t, "small", plans.TierStarter, time.Now().Add(72*time.Hour), tenants.FeatureVisibility{"showCommunications": true})

	ctx := context.Background()
	require.NoError(t, e.comms.Create(ctx, &communications.Communication{SchoolID: ent.ID, Title: "Sciopero", PublishAt: time.Now().Add(-time.Hour), IsActive: true}))
	require.NoError(t, e.comms.Create(ctx, &communications.Communication{SchoolID: ent.ID, Title: "Futuro", PublishAt: time.Now().Add(time.Hour)}))

	w := e.do(http.MethodGet, "big.scuole.test", "/api/site/communications", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sciopero")
	assert.NotContains(t, w.Body.String(), "Futuro")

	w = e.do(http.MethodGet, "small.scuole.test", "/api/site/communications", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestParents_ConsentChildrenAndBooking(t *testing.T) {
	e := newEnv(t)
	tn := e.school(t, "pro", plans.TierProfessional, time.Now().Add(30*24*time.Hour), tenants.FeatureVisibility{"showParentsArea": true})
	_, token := e.user(t, "mamma@example.com", users.RoleParent, tn.ID, false)
	_, otherToken := e.user(t, "papa@example.com", users.RoleParent, tn.ID, true)

	capacity := 1
	ev := &bookings.Event{SchoolID: tn.ID, Title: "Colloqui", StartsAt: time.Now().Add(72 * time.Hour), IsBookable: true, MaxCapacity: &capacity}
	require.NoError(t, e.events.CreateEvent(context.Background(), ev))

	host := "pro.scuole.test"

	w := e.do(http.MethodGet, host, "/api/site/parents/children", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodGet, host, "/api/site/parents/children", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "consent-required")

	w = e.do(http.MethodPost, host, "/api/site/parents/consent", token, gin.H{"privacy_version": "1", "terms_version": "3"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = e.do(http.MethodPost, host, "/api/site/parents/consent", token, gin.H{"privacy_version": "2", "terms_version": "3"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodPost, host, "/api/site/parents/children", token, gin.H{"first_name": "Giulia", "last_name": "Verdi", "birth_date": "2018-05-04", "class_name": "2B"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	child := decode[users.Child](t, w)

	w = e.do(http.MethodGet, host, "/api/site/parents/children", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Giulia")

	path := "/api/site/parents/events/" + itoa(ev.ID) + "/book"
	w = e.do(http.MethodPost, host, path, otherToken, gin.H{"child_id": child.ID})
	assert.Equal(t, http.StatusNotFound, w.Code, "another parent's child")

	w = e.do(http.MethodPost, host, path, token, gin.H{"child_id": child.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	appt := decode[bookings.Appointment](t, w)
	assert.Equal(t, bookings.StatusConfirmed, appt.Status)

	w = e.do(http.MethodPost, host, path, otherToken, gin.H{})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"full"`)

	w = e.do(http.MethodGet, host, "/api/site/parents/bookings", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"confirmed"`)

	w = e.do(http.MethodPost, host, "/api/site/parents/bookings/"+itoa(appt.ID)+"/cancel", otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(http.MethodPost, host, "/api/site/parents/bookings/"+itoa(appt.ID)+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodPost, host, path, otherToken, gin.H{})
	assert.Equal(t, http.StatusCreated, w.Code, "seat freed by the cancellation")
}

func TestParents_AreaDisabledOnStarter(t *testing.T) {
	e := newEnv(t)
	tn := e.school(t, "acme", plans.TierStarter, time.Now().Add(72*time.Hour), tenants.FeatureVisibility{"showParentsArea": true})
	_, token := e.user(t, "p@example.com", users.RoleParent, tn.ID, true)

	w := e.do(http.MethodGet, "acme.scuole.test", "/api/site/parents/bookings", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "feature-disabled")
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
