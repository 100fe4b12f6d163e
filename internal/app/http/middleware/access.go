package middleware

import (
	"errors"
	"net/http"

	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/users"
	"schoolsite-app/internal/infra/logger"
	"schoolsite-app/internal/infra/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	CtxUser     = "user"
	CtxActor    = "actor"
	CtxDecision = "decision"
)

// LoadActor loads the authenticated user, if any, for access decisions.
// Run after OptionalAuth or AuthMiddleware.
func LoadActor(us users.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := UserID(c)
		if id == 0 {
			c.Next()
			return
		}
		u, err := us.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				c.Next()
				return
			}
			logger.WithRequest(c).Error("actor load failed", zap.Uint("user_id", id), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Service temporarily unavailable", "code": "internal_error"})
			return
		}
		c.Set(CtxUser, u)
		c.Set(CtxActor, ActorOf(u))
		c.Next()
	}
}

func ActorOf(u *users.User) *access.Actor {
	return &access.Actor{
		UserID:         u.ID,
		Role:           u.Role,
		SchoolIDs:      u.SchoolIDs(),
		PrivacyVersion: u.PrivacyVersion,
		TermsVersion:   u.TermsVersion,
	}
}

func ActorFrom(c *gin.Context) *access.Actor {
	v, ok := c.Get(CtxActor)
	if !ok {
		return nil
	}
	a, _ := v.(*access.Actor)
	return a
}

func UserFrom(c *gin.Context) *users.User {
	v, ok := c.Get(CtxUser)
	if !ok {
		return nil
	}
	u, _ := v.(*users.User)
	return u
}

// BasePath is the school home under path routing ("/acme"), "" otherwise.
func BasePath(c *gin.Context) string {
	return c.GetString(CtxBasePath)
}

// Decide runs the guard for the current request.
func Decide(c *gin.Context, g *access.Guard, feature features.Feature, area access.Area) access.Decision {
	d := g.Authorize(access.Request{
		Tenant:   TenantFrom(c),
		Status:   StatusFrom(c),
		Feature:  feature,
		Area:     area,
		Actor:    ActorFrom(c),
		BasePath: BasePath(c),
	})
	metrics.AccessDecisions.WithLabelValues(string(d.Kind), string(d.Reason)).Inc()
	return d
}

// RequireAccess aborts with the guard's decision unless it allows the request.
func RequireAccess(g *access.Guard, feature features.Feature, area access.Area) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := Decide(c, g, feature, area)
		if d.Allowed() {
			c.Set(CtxDecision, d)
			c.Next()
			return
		}
		c.AbortWithStatusJSON(DecisionStatus(d), gin.H{
			"error":    decisionMessage(d),
			"code":     string(d.Reason),
			"decision": d,
			"mode":     access.SiteModeFor(d),
		})
	}
}

// DecisionStatus maps a refusing decision to an HTTP status.
func DecisionStatus(d access.Decision) int {
	switch d.Reason {
	case access.ReasonNotFound:
		return http.StatusNotFound
	case access.ReasonBilling:
		if d.Audience == access.AudienceAdmin {
			return http.StatusPaymentRequired
		}
		return http.StatusServiceUnavailable
	case access.ReasonLoginRequired:
		return http.StatusUnauthorized
	case access.ReasonFeatureDisabled, access.ReasonConsentRequired:
		return http.StatusForbidden
	}
	if d.Allowed() {
		return http.StatusOK
	}
	return http.StatusForbidden
}

func decisionMessage(d access.Decision) string {
	switch d.Reason {
	case access.ReasonNotFound:
		return "Not found"
	case access.ReasonBilling:
		if d.Audience == access.AudienceAdmin {
			return "Subscription inactive: activate a plan to reopen the site"
		}
		return "Site temporarily unavailable"
	case access.ReasonLoginRequired:
		return "Login required"
	case access.ReasonConsentRequired:
		return "Please accept the current privacy policy and terms"
	default:
		return "Page not available"
	}
}
