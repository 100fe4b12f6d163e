package schoolsapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"schoolsite-app/internal/api/respond"
	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/apperr"
	"schoolsite-app/internal/domain/bookings"
	"schoolsite-app/internal/domain/communications"
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves a school admin's dashboard API. Routes under Mount run
// after middleware.RequireSchoolAdmin, which attaches the school.
type Handler struct {
	schools   tenants.Store
	subs      subscriptions.Store
	resolver  *tenants.Resolver
	engine    *features.Engine
	events    bookings.Store
	allocator *bookings.Allocator
	comms     communications.Store
	now       func() time.Time
}

type Deps struct {
	Schools        tenants.Store
	Subscriptions  subscriptions.Store
	Resolver       *tenants.Resolver
	Engine         *features.Engine
	Events         bookings.Store
	Allocator      *bookings.Allocator
	Communications communications.Store
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		schools:   d.Schools,
		subs:      d.Subscriptions,
		resolver:  d.Resolver,
		engine:    d.Engine,
		events:    d.Events,
		allocator: d.Allocator,
		comms:     d.Communications,
		now:       time.Now,
	}
}

// Mount registers the admin routes. Reads stay open while the subscription
// is blocking; changes need an active one.
func (h *Handler) Mount(g *gin.RouterGroup) {
	g.GET("", h.Get)
	g.GET("/features", h.Features)
	g.GET("/events", h.ListEvents)
	g.GET("/events/:id/bookings", h.EventBookings)
	g.GET("/communications", h.ListCommunications)

	active := g.Group("", middleware.RequireActiveSubscription())
	active.PUT("", h.Update)
	active.PUT("/features", h.SetFeatures)
	active.POST("/events", h.CreateEvent)
	active.POST("/bookings/:id/approve", h.Approve)
	active.POST("/bookings/:id/reject", h.Reject)
	active.POST("/communications", h.CreateCommunication)
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respond.Invalid(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// Status is the trial/subscription read endpoint: the admin shape for the
// school's admins and platform admins, the public shape for everyone else.
func (h *Handler) Status(c *gin.Context) {
	t, err := h.schools.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respond.Error(c, "school status", err, false)
		return
	}
	st := middleware.LoadStatus(c, h.subs, t)

	if access.AudienceFor(middleware.ActorFrom(c), t.ID) != access.AudienceAdmin {
		c.JSON(http.StatusOK, subscriptions.NewPublicView(st))
		return
	}
	sub, _ := t.SubscriptionRef().Entity()
	c.JSON(http.StatusOK, gin.H{
		"subscription": subscriptions.NewAdminView(sub, st),
		"capabilities": access.AdminCapabilities(st, features.TenantTier(t)),
	})
}

func (h *Handler) Get(c *gin.Context) {
	t := middleware.TenantFrom(c)
	st := middleware.StatusFrom(c)
	sub, _ := t.SubscriptionRef().Entity()
	c.JSON(http.StatusOK, gin.H{
		"school":       t,
		"subscription": subscriptions.NewAdminView(sub, st),
		"capabilities": access.AdminCapabilities(st, features.TenantTier(t)),
	})
}

// Update edits name, branding and the custom domain. A custom domain needs
// a plan with the custom_domain capability and must lie outside the
// platform's base domains.
func (h *Handler) Update(c *gin.Context) {
	var input struct {
		Name         *string `json:"name"`
		PrimaryColor *string `json:"primary_color"`
		LogoURL      *string `json:"logo_url"`
		Domain       *string `json:"domain"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}

	t := middleware.TenantFrom(c)
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		t.Name = strings.TrimSpace(*input.Name)
	}
	if input.PrimaryColor != nil {
		t.PrimaryColor = *input.PrimaryColor
	}
	if input.LogoURL != nil {
		t.LogoURL = *input.LogoURL
	}
	if input.Domain != nil {
		domain := tenants.NormalizeHost(*input.Domain)
		switch {
		case domain == "":
			t.Domain = nil
		case h.resolver.IsPlatformHost(domain):
			respond.Error(c, "update school", apperr.Invalid("platform_domain", "the domain belongs to the platform"), true)
			return
		case !hasCapability(middleware.StatusFrom(c), t, "custom_domain"):
			respond.Error(c, "update school", apperr.Forbidden("plan_required", "custom domains need the professional plan"), true)
			return
		default:
			t.Domain = &domain
		}
	}

	ctx := c.Request.Context()
	if err := h.schools.Update(ctx, t); err != nil {
		respond.Error(c, "update school", err, true)
		return
	}
	h.resolver.Forget(ctx, t.ID)
	c.JSON(http.StatusOK, t)
}

func hasCapability(st subscriptions.Status, t *tenants.Tenant, want string) bool {
	for _, c := range access.AdminCapabilities(st, features.TenantTier(t)) {
		if c == want {
			return true
		}
	}
	return false
}

// Features is the admin matrix: plan inclusion, effective state and the
// stored override per feature.
func (h *Handler) Features(c *gin.Context) {
	t := middleware.TenantFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"tier":     features.TenantTier(t),
		"features": h.engine.Matrix(t),
	})
}

func (h *Handler) SetFeatures(c *gin.Context) {
	var input map[features.Feature]bool
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}

	t := middleware.TenantFrom(c)
	if err := h.engine.SetOverrides(t, input); err != nil {
		respond.Error(c, "set features", err, true)
		return
	}

	ctx := c.Request.Context()
	if err := h.schools.Update(ctx, t); err != nil {
		respond.Error(c, "set features", err, true)
		return
	}
	h.resolver.Forget(ctx, t.ID)

	logger.WithRequest(c).Info("feature overrides updated", zap.Uint("school_id", t.ID), zap.Int("changed", len(input)))
	c.JSON(http.StatusOK, gin.H{
		"tier":     features.TenantTier(t),
		"features": h.engine.Matrix(t),
	})
}

func (h *Handler) requireFeature(c *gin.Context, t *tenants.Tenant, f features.Feature) bool {
	if h.engine.IsEnabled(t, f) {
		return true
	}
	respond.Error(c, "feature check", apperr.Forbidden("feature_disabled", "the "+string(f)+" feature is not enabled for this school"), true)
	return false
}

func (h *Handler) ListEvents(c *gin.Context) {
	t := middleware.TenantFrom(c)
	list, err := h.events.ListEvents(c.Request.Context(), t.ID, false)
	if err != nil {
		respond.Error(c, "list events", err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}

type eventInput struct {
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	StartsAt         time.Time  `json:"starts_at" binding:"required"`
	EndsAt           *time.Time `json:"ends_at"`
	IsBookable       bool       `json:"is_bookable"`
	BookingDeadline  *time.Time `json:"booking_deadline"`
	TimeSlots        []string   `json:"time_slots"`
	MaxCapacity      *int       `json:"max_capacity"`
	RequiresApproval bool       `json:"requires_approval"`
}

func (in eventInput) validate() string {
	if in.MaxCapacity != nil && *in.MaxCapacity < 1 {
		return "max_capacity must be at least 1"
	}
	if in.EndsAt != nil && in.EndsAt.Before(in.StartsAt) {
		return "ends_at is before starts_at"
	}
	seen := make(map[string]bool, len(in.TimeSlots))
	for _, s := range in.TimeSlots {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return "time_slots must be unique and non-empty"
		}
		seen[s] = true
	}
	return ""
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var input eventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}
	if msg := input.validate(); msg != "" {
		respond.Invalid(c, msg)
		return
	}

	t := middleware.TenantFrom(c)
	if !h.requireFeature(c, t, features.Events) {
		return
	}

	slots := make([]string, 0, len(input.TimeSlots))
	for _, s := range input.TimeSlots {
		slots = append(slots, strings.TrimSpace(s))
	}
	ev := &bookings.Event{
		SchoolID:         t.ID,
		Title:            input.Title,
		Description:      input.Description,
		Location:         input.Location,
		StartsAt:         input.StartsAt,
		EndsAt:           input.EndsAt,
		IsBookable:       input.IsBookable,
		BookingDeadline:  input.BookingDeadline,
		TimeSlots:        slots,
		MaxCapacity:      input.MaxCapacity,
		RequiresApproval: input.RequiresApproval,
	}
	if err := h.events.CreateEvent(c.Request.Context(), ev); err != nil {
		respond.Error(c, "create event", err, true)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (h *Handler) EventBookings(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t := middleware.TenantFrom(c)
	ctx := c.Request.Context()

	if _, err := h.events.GetEvent(ctx, t.ID, id); err != nil {
		respond.Error(c, "event bookings", err, true)
		return
	}
	list, err := h.allocator.ListForEvent(ctx, t.ID, id)
	if err != nil {
		respond.Error(c, "event bookings", err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list})
}

func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, "approve booking", h.allocator.Approve)
}

func (h *Handler) Reject(c *gin.Context) {
	h.decide(c, "reject booking", h.allocator.Reject)
}

func (h *Handler) decide(c *gin.Context, op string, apply func(ctx context.Context, schoolID, id uint) (*bookings.Appointment, error)) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t := middleware.TenantFrom(c)
	appt, err := apply(c.Request.Context(), t.ID, id)
	if err != nil {
		respond.Error(c, op, err, true)
		return
	}
	logger.WithRequest(c).Info(op, zap.Uint("school_id", t.ID), zap.Uint("booking_id", id), zap.String("status", appt.Status))
	c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListCommunications(c *gin.Context) {
	t := middleware.TenantFrom(c)
	list, err := h.comms.ListAll(c.Request.Context(), t.ID)
	if err != nil {
		respond.Error(c, "list communications", err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"communications": list})
}

// CreateCommunication stores a notice; the sweep publishes and retires it.
// One already inside its window is active immediately.
func (h *Handler) CreateCommunication(c *gin.Context) {
	var input struct {
		Title     string     `json:"title" binding:"required"`
		Body      string     `json:"body"`
		Priority  string     `json:"priority"`
		PublishAt *time.Time `json:"publish_at"`
		ExpiresAt *time.Time `json:"expires_at"`
		SendEmail bool       `json:"send_email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}

	t := middleware.TenantFrom(c)
	if !h.requireFeature(c, t, features.Communications) {
		return
	}
	if input.SendEmail && !h.engine.IsEnabled(t, features.EmailCommunications) {
		respond.Error(c, "create communication", apperr.Forbidden("feature_disabled", "email communications are not enabled for this school"), true)
		return
	}

	now := h.now()
	cm := &communications.Communication{
		SchoolID:  t.ID,
		Title:     input.Title,
		Body:      input.Body,
		Priority:  input.Priority,
		PublishAt: now,
		ExpiresAt: input.ExpiresAt,
		SendEmail: input.SendEmail,
	}
	if cm.Priority == "" {
		cm.Priority = "normal"
	}
	if input.PublishAt != nil {
		cm.PublishAt = *input.PublishAt
	}
	if cm.ExpiresAt != nil && !cm.ExpiresAt.After(cm.PublishAt) {
		respond.Invalid(c, "expires_at must be after publish_at")
		return
	}
	cm.IsActive = cm.ShouldBeActive(now)

	if err := h.comms.Create(c.Request.Context(), cm); err != nil {
		respond.Error(c, "create communication", err, true)
		return
	}
	c.JSON(http.StatusCreated, cm)
}
