package admin

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"schoolsite-app/internal/api/respond"
	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/infra/logger"
	"schoolsite-app/internal/jobs"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CronSecretHeader carries the shared secret of the external sweep trigger.
const CronSecretHeader = "X-Cron-Secret"

type AdminSchool struct {
	ID            uint                `json:"id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Domain        *string             `json:"domain,omitempty"`
	OwnerID       uint                `json:"owner_id"`
	IsActive      bool                `json:"is_active"`
	Plan          string              `json:"plan"`
	State         subscriptions.State `json:"state"`
	DaysRemaining int                 `json:"days_remaining"`
	Blocking      bool                `json:"blocking"`
	CreatedAt     time.Time           `json:"created_at"`
}

type AdminStats struct {
	TotalSchools    int                         `json:"total_schools"`
	ActiveSchools   int                         `json:"active_schools"`
	BlockedSchools  int                         `json:"blocked_schools"`
	SchoolsPerPlan  map[string]int              `json:"schools_per_plan"`
	SchoolsPerState map[subscriptions.State]int `json:"schools_per_state"`
}

type Handler struct {
	schools    tenants.Store
	subs       subscriptions.Store
	resolver   *tenants.Resolver
	sweeper    *jobs.Sweeper
	cronSecret string
}

func NewHandler(schools tenants.Store, subs subscriptions.Store, resolver *tenants.Resolver, sweeper *jobs.Sweeper, cronSecret string) *Handler {
	return &Handler{schools: schools, subs: subs, resolver: resolver, sweeper: sweeper, cronSecret: cronSecret}
}

func (h *Handler) adminSchool(c *gin.Context, t *tenants.Tenant) AdminSchool {
	return newAdminSchool(t, middleware.LoadStatus(c, h.subs, t))
}

func newAdminSchool(t *tenants.Tenant, st subscriptions.Status) AdminSchool {
	return AdminSchool{
		ID:            t.ID,
		Name:          t.Name,
		Slug:          t.Slug,
		Domain:        t.Domain,
		OwnerID:       t.OwnerID,
		IsActive:      t.IsActive,
		Plan:          string(features.TenantTier(t)),
		State:         st.State,
		DaysRemaining: st.DaysRemaining,
		Blocking:      st.Blocking,
		CreatedAt:     t.CreatedAt,
	}
}

func (h *Handler) ListSchools(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.schools.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, "list schools", err, true)
		return
	}

	out := make([]AdminSchool, 0, len(list))
	for i := range list {
		out = append(out, h.adminSchool(c, &list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetSchoolDetails(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respond.Invalid(c, "invalid id")
		return
	}
	t, err := h.schools.GetByID(c.Request.Context(), uint(id))
	if err != nil {
		respond.Error(c, "school details", err, true)
		return
	}

	st := middleware.LoadStatus(c, h.subs, t)
	sub, _ := t.SubscriptionRef().Entity()
	c.JSON(http.StatusOK, gin.H{
		"school":       newAdminSchool(t, st),
		"features":     t.FeatureVisibility,
		"subscription": subscriptions.NewAdminView(sub, st),
	})
}

// Stats counts schools per plan and per derived state.
func (h *Handler) Stats(c *gin.Context) {
	list, err := h.schools.List(c.Request.Context(), 0, 0)
	if err != nil {
		respond.Error(c, "admin stats", err, true)
		return
	}

	stats := AdminStats{
		SchoolsPerPlan:  map[string]int{},
		SchoolsPerState: map[subscriptions.State]int{},
	}
	for i := range list {
		s := h.adminSchool(c, &list[i])
		stats.TotalSchools++
		if s.IsActive {
			stats.ActiveSchools++
		}
		if s.Blocking {
			stats.BlockedSchools++
		}
		stats.SchoolsPerPlan[s.Plan]++
		stats.SchoolsPerState[s.State]++
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Activate(c *gin.Context)   { h.setActive(c, true) }
func (h *Handler) Deactivate(c *gin.Context) { h.setActive(c, false) }

func (h *Handler) setActive(c *gin.Context, active bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respond.Invalid(c, "invalid id")
		return
	}
	ctx := c.Request.Context()
	if err := h.schools.SetActive(ctx, uint(id), active); err != nil {
		respond.Error(c, "set school active", err, true)
		return
	}
	h.resolver.Forget(ctx, uint(id))

	logger.WithRequest(c).Info("school switched",
		zap.Uint("school_id", uint(id)), zap.Bool("active", active), zap.Uint("by", middleware.UserID(c)))
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": active})
}

// TrialCheck runs the sweep on demand from the admin panel.
func (h *Handler) TrialCheck(c *gin.Context) {
	rep, err := h.sweeper.Run(c.Request.Context())
	if err != nil {
		respond.Error(c, "trial check", err, true)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// CronSweep is the external periodic trigger. It needs the configured
// shared secret; without one configured the endpoint is closed.
func (h *Handler) CronSweep(c *gin.Context) {
	got := c.GetHeader(CronSecretHeader)
	if h.cronSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.cronSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "unauthorized"})
		return
	}
	rep, err := h.sweeper.Run(c.Request.Context())
	if err != nil {
		respond.Error(c, "cron sweep", err, false)
		return
	}
	c.JSON(http.StatusOK, rep)
}
