package siteapi

import (
	"net/http"
	"time"

	"schoolsite-app/internal/api/respond"
	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/bookings"
	"schoolsite-app/internal/domain/communications"
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/users"

	"github.com/gin-gonic/gin"
)

// Handler serves the public site API of the school resolved by
// middleware.ResolveTenant.
type Handler struct {
	engine    *features.Engine
	guard     *access.Guard
	consent   access.GuardConfig
	events    bookings.Store
	allocator *bookings.Allocator
	comms     communications.Store
	users     users.Store
	now       func() time.Time
}

type Deps struct {
	Engine         *features.Engine
	Guard          *access.Guard
	Consent        access.GuardConfig
	Events         bookings.Store
	Allocator      *bookings.Allocator
	Communications communications.Store
	Users          users.Store
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		engine:    d.Engine,
		guard:     d.Guard,
		consent:   d.Consent,
		events:    d.Events,
		allocator: d.Allocator,
		comms:     d.Communications,
		users:     d.Users,
		now:       time.Now,
	}
}

// Mount registers the site routes on a group that already runs
// OptionalAuth, LoadActor and ResolveTenant.
func (h *Handler) Mount(g *gin.RouterGroup) {
	g.GET("", h.Site)
	g.GET("/access", h.Access)
	g.GET("/features", middleware.RequireAccess(h.guard, "", access.AreaPublic), h.Features)
	g.GET("/events", middleware.RequireAccess(h.guard, features.Events, access.AreaPublic), h.Events)
	g.GET("/communications", middleware.RequireAccess(h.guard, features.Communications, access.AreaPublic), h.Communications)

	g.POST("/parents/consent", h.Consent)
	parents := g.Group("/parents", middleware.RequireAccess(h.guard, "", access.AreaParents))
	parents.GET("/children", h.Children)
	parents.POST("/children", h.AddChild)
	parents.GET("/bookings", h.MyBookings)
	parents.POST("/bookings/:id/cancel", h.CancelBooking)
	parents.POST("/events/:id/book", middleware.RequireAccess(h.guard, features.Events, access.AreaPublic), h.Book)
}

// Site is the home page check: identity, decision and enabled features.
// Refusals keep the body so the front-end can render the right screen.
func (h *Handler) Site(c *gin.Context) {
	d := middleware.Decide(c, h.guard, "", access.AreaPublic)
	t := middleware.TenantFrom(c)

	resp := SiteResponse{
		School:   schoolDTO(t),
		Decision: d,
		Mode:     access.SiteModeFor(d),
	}
	if t != nil {
		view := subscriptions.NewPublicView(middleware.StatusFrom(c))
		resp.Status = &view
	}
	if d.Allowed() {
		resp.Features = h.engine.Enabled(t)
	}

	status := http.StatusOK
	if !d.Allowed() {
		status = middleware.DecisionStatus(d)
	}
	c.JSON(status, resp)
}

// Features lists the school's effective feature switches.
func (h *Handler) Features(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"features": h.engine.Enabled(middleware.TenantFrom(c))})
}

// Access answers the guard for one page: ?feature=<name> or ?page=<route
// segment>, plus area=parents for the parents area. Always 200; the
// decision is the payload.
func (h *Handler) Access(c *gin.Context) {
	var feature features.Feature
	if name := c.Query("feature"); name != "" {
		feature = features.Feature(name)
		if _, ok := h.engine.Catalog().Lookup(feature); !ok {
			respond.Invalid(c, "unknown feature")
			return
		}
	} else if page := c.Query("page"); page != "" {
		feature, _ = h.engine.Catalog().ForPage(page)
	}

	var area access.Area
	switch c.Query("area") {
	case "":
	case string(access.AreaParents):
		area = access.AreaParents
	default:
		respond.Invalid(c, "unknown area")
		return
	}

	d := middleware.Decide(c, h.guard, feature, area)
	c.JSON(http.StatusOK, AccessResponse{Feature: feature, Decision: d, Mode: access.SiteModeFor(d)})
}

// Events lists the school's events with booked and remaining seats.
// ?bookable=true restricts to events open for booking.
func (h *Handler) Events(c *gin.Context) {
	t := middleware.TenantFrom(c)
	ctx := c.Request.Context()

	list, err := h.events.ListEvents(ctx, t.ID, c.Query("bookable") == "true")
	if err != nil {
		respond.Error(c, "list events", err, false)
		return
	}
	ids := make([]uint, 0, len(list))
	for _, ev := range list {
		ids = append(ids, ev.ID)
	}
	counts, err := h.events.ActiveCounts(ctx, ids)
	if err != nil {
		respond.Error(c, "count bookings", err, false)
		return
	}

	out := make([]EventDTO, 0, len(list))
	for _, ev := range list {
		out = append(out, eventDTO(ev, counts[ev.ID]))
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

// Communications lists the school's currently active notices.
func (h *Handler) Communications(c *gin.Context) {
	t := middleware.TenantFrom(c)
	list, err := h.comms.ListActive(c.Request.Context(), t.ID)
	if err != nil {
		respond.Error(c, "list communications", err, false)
		return
	}

	out := make([]CommunicationDTO, 0, len(list))
	for _, cm := range list {
		out = append(out, CommunicationDTO{
			ID:        cm.ID,
			Title:     cm.Title,
			Body:      cm.Body,
			Priority:  cm.Priority,
			PublishAt: cm.PublishAt,
			ExpiresAt: cm.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"communications": out})
}
