package usersapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type env struct {
	r       *gin.Engine
	users   *users.MemoryStore
	schools *tenants.MemoryStore
	subs    *subscriptions.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{users: users.NewMemoryStore(), subs: subscriptions.NewMemoryStore()}
	e.schools = tenants.NewMemoryStore(e.subs)
	h := NewHandler(e.users, e.schools, e.subs, access.GuardConfig{PrivacyVersion: "2", TermsVersion: "1"})

	e.r = gin.New()
	// stands in for AuthMiddleware: the test passes the user id in a header
	e.r.Use(func(c *gin.Context) {
		if id, err := strconv.ParseUint(c.GetHeader("X-Test-User"), 10, 64); err == nil {
			c.Set(middleware.CtxUserID, uint(id))
		}
		c.Next()
	}, middleware.LoadActor(e.users))
	e.r.GET("/api/me", h.GetCurrentUser)
	e.r.PUT("/api/me", h.UpdateProfile)
	return e
}

func (e *env) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func TestGetCurrentUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	owner := &users.User{Email: "owner@acme.it", Name: "Ada", Role: users.RoleSchoolAdmin}
	require.NoError(t, e.users.Create(ctx, owner))
	sub := subscriptions.NewTrial(owner.ID, time.Now(), 30, 1)
	require.NoError(t, e.subs.Create(ctx, sub))
	school := &tenants.Tenant{Name: "Acme", Slug: "acme", OwnerID: owner.ID, IsActive: true, SubscriptionID: &sub.ID}
	require.NoError(t, e.schools.Create(ctx, school))
	require.NoError(t, e.users.AddMembership(ctx, owner.ID, school.ID))

	parent := &users.User{Email: "mum@example.it", Name: "Eva", Role: users.RoleParent}
	parent.AcceptConsent("2", "1", time.Now())
	require.NoError(t, e.users.Create(ctx, parent))
	require.NoError(t, e.users.AddMembership(ctx, parent.ID, school.ID))

	w := e.do(http.MethodGet, "/api/me", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "owner@acme.it", me.User.Email)
	assert.Nil(t, me.User.Tel)
	assert.False(t, me.Consent.UpToDate)
	assert.Equal(t, "2", me.Consent.CurrentPrivacyVersion)
	require.Len(t, me.Schools, 1)
	assert.True(t, me.Schools[0].Owner)
	require.NotNil(t, me.Schools[0].Subscription)
	assert.Equal(t, subscriptions.StateTrial, me.Schools[0].Subscription.State)
	assert.NotEmpty(t, me.Schools[0].Capabilities)
	assert.Nil(t, me.Schools[0].Status)

	w = e.do(http.MethodGet, "/api/me", "2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.True(t, me.Consent.UpToDate)
	require.Len(t, me.Schools, 1)
	assert.False(t, me.Schools[0].Owner)
	assert.Nil(t, me.Schools[0].Subscription)
	require.NotNil(t, me.Schools[0].Status)
	assert.True(t, me.Schools[0].Status.IsActive)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/me", "", nil).Code)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	u := &users.User{Email: "a@b.it", Name: "A", Role: users.RoleParent}
	require.NoError(t, e.users.Create(context.Background(), u))

	w := e.do(http.MethodPut, "/api/me", "1", map[string]string{"name": " Anna ", "tel": "0612345"})
	require.Equal(t, http.StatusOK, w.Code)
	var dto UserDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, "Anna", dto.Name)
	require.NotNil(t, dto.Tel)

	stored, err := e.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "0612345", stored.Tel)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPut, "/api/me", "1", map[string]string{"name": "  "}).Code)
}
