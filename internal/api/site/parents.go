package siteapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"schoolsite-app/internal/api/respond"
	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/apperr"
	"schoolsite-app/internal/domain/bookings"
	"schoolsite-app/internal/domain/users"
	"schoolsite-app/internal/infra/logger"
	"schoolsite-app/internal/infra/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errChildNotFound = apperr.NotFound("child_not_found", "child not found")

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respond.Invalid(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// Consent records acceptance of the current privacy and terms versions.
// It runs the parents-area guard itself, since a missing consent is
// exactly the state it resolves.
func (h *Handler) Consent(c *gin.Context) {
	d := middleware.Decide(c, h.guard, "", access.AreaParents)
	if !d.Allowed() && d.Kind != access.KindConsent {
		c.AbortWithStatusJSON(middleware.DecisionStatus(d), gin.H{"error": "Page not available", "code": string(d.Reason), "decision": d})
		return
	}

	var input struct {
		PrivacyVersion string `json:"privacy_version" binding:"required"`
		TermsVersion   string `json:"terms_version" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}
	if input.PrivacyVersion != h.consent.PrivacyVersion || input.TermsVersion != h.consent.TermsVersion {
		respond.Error(c, "consent", apperr.Conflict("stale_consent", "the accepted documents are not the current versions"), false)
		return
	}

	u := middleware.UserFrom(c)
	u.AcceptConsent(input.PrivacyVersion, input.TermsVersion, h.now())
	if err := h.users.Save(c.Request.Context(), u); err != nil {
		respond.Error(c, "consent", err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"privacy_version": u.PrivacyVersion,
		"terms_version":   u.TermsVersion,
		"accepted_at":     u.TermsAcceptedAt,
	})
}

func (h *Handler) Children(c *gin.Context) {
	t := middleware.TenantFrom(c)
	list, err := h.users.ListChildren(c.Request.Context(), middleware.UserID(c), t.ID)
	if err != nil {
		respond.Error(c, "list children", err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": list})
}

func (h *Handler) AddChild(c *gin.Context) {
	var input struct {
		FirstName string `json:"first_name" binding:"required"`
		LastName  string `json:"last_name" binding:"required"`
		BirthDate string `json:"birth_date"`
		ClassName string `json:"class_name"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}

	child := &users.Child{
		ParentID:  middleware.UserID(c),
		SchoolID:  middleware.TenantFrom(c).ID,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		ClassName: input.ClassName,
	}
	if input.BirthDate != "" {
		bd, err := time.Parse("2006-01-02", input.BirthDate)
		if err != nil {
			respond.Invalid(c, "birth_date must be YYYY-MM-DD")
			return
		}
		child.BirthDate = &bd
	}

	if err := h.users.CreateChild(c.Request.Context(), child); err != nil {
		respond.Error(c, "add child", err, false)
		return
	}
	c.JSON(http.StatusCreated, child)
}

func (h *Handler) MyBookings(c *gin.Context) {
	t := middleware.TenantFrom(c)
	list, err := h.allocator.ListForParent(c.Request.Context(), t.ID, middleware.UserID(c))
	if err != nil {
		respond.Error(c, "list bookings", err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list})
}

// Book reserves a seat or slot of an event for the signed-in parent.
func (h *Handler) Book(c *gin.Context) {
	eventID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		ChildID  *uint  `json:"child_id"`
		TimeSlot string `json:"time_slot"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Invalid(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	t := middleware.TenantFrom(c)
	parentID := middleware.UserID(c)

	if input.ChildID != nil {
		child, err := h.users.GetChild(ctx, *input.ChildID)
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			respond.Error(c, "book", err, false)
			return
		}
		if child == nil || child.ParentID != parentID || child.SchoolID != t.ID {
			respond.Error(c, "book", errChildNotFound, false)
			return
		}
	}

	appt, err := h.allocator.Book(ctx, bookings.BookRequest{
		SchoolID: t.ID,
		EventID:  eventID,
		ParentID: parentID,
		ChildID:  input.ChildID,
		TimeSlot: input.TimeSlot,
		Notes:    input.Notes,
	})
	if err != nil {
		if r, ok := bookings.AsRejection(err); ok {
			metrics.BookingsTotal.WithLabelValues(string(r.Reason)).Inc()
		}
		respond.Error(c, "book", err, false)
		return
	}

	metrics.BookingsTotal.WithLabelValues(appt.Status).Inc()
	logger.WithRequest(c).Info("booking created",
		zap.Uint("school_id", t.ID), zap.Uint("event_id", eventID),
		zap.Uint("booking_id", appt.ID), zap.String("status", appt.Status))
	c.JSON(http.StatusCreated, appt)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	t := middleware.TenantFrom(c)
	appt, err := h.allocator.Cancel(c.Request.Context(), t.ID, middleware.UserID(c), id)
	if err != nil {
		respond.Error(c, "cancel booking", err, false)
		return
	}
	c.JSON(http.StatusOK, appt)
}
