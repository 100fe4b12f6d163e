package usersapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"schoolsite-app/internal/api/respond"
	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"
	"schoolsite-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	users   users.Store
	schools tenants.Store
	subs    subscriptions.Store
	consent access.GuardConfig
	now     func() time.Time
}

func NewHandler(us users.Store, ts tenants.Store, subs subscriptions.Store, consent access.GuardConfig) *Handler {
	return &Handler{users: us, schools: ts, subs: subs, consent: consent, now: time.Now}
}

// GetCurrentUser needs LoadActor upstream.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	u := middleware.UserFrom(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	schools := make([]MembershipDTO, 0, len(u.Schools))
	for _, id := range u.SchoolIDs() {
		t, err := h.schools.GetByID(ctx, id)
		if errors.Is(err, tenants.ErrNotFound) {
			continue
		}
		if err != nil {
			respond.Error(c, "load memberships", err, false)
			return
		}
		sub, err := tenants.LoadSubscription(ctx, h.subs, t)
		if err != nil {
			logger.WithRequest(c).Error("subscription load failed, failing closed",
				zap.Uint("school_id", t.ID), zap.Error(err))
			sub = nil
		}
		st := subscriptions.DeriveFor(sub, t.IsActive, h.now())
		schools = append(schools, BuildMembershipDTO(u, t, sub, st))
	}

	c.JSON(http.StatusOK, MeResponse{
		User:    BuildUserDTO(u),
		Consent: BuildConsentDTO(u, h.consent),
		Schools: schools,
	})
}

type profileInput struct {
	Name     *string `json:"name"`
	Lastname *string `json:"lastname"`
	Tel      *string `json:"tel"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	u := middleware.UserFrom(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "unauthorized"})
		return
	}

	var in profileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Invalid(c, "Invalid input")
		return
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			respond.Invalid(c, "name cannot be empty")
			return
		}
		u.Name = name
	}
	if in.Lastname != nil {
		u.Lastname = strings.TrimSpace(*in.Lastname)
	}
	if in.Tel != nil {
		u.Tel = strings.TrimSpace(*in.Tel)
	}

	if err := h.users.Save(c.Request.Context(), u); err != nil {
		respond.Error(c, "update profile", err, false)
		return
	}
	c.JSON(http.StatusOK, BuildUserDTO(u))
}
