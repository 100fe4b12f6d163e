package middleware

import (
	"errors"
	"net/http"
	"slices"

	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"
	"schoolsite-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequireSchoolAdmin loads the school named by :slug (active or not) and
// lets through platform admins and that school's own admins.
// Run after AuthMiddleware and LoadActor.
func RequireSchoolAdmin(ts tenants.Store, subs subscriptions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := ActorFrom(c)
		if a == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "unauthorized"})
			return
		}

		t, err := ts.GetBySlug(c.Request.Context(), c.Param("slug"))
		if err != nil {
			if errors.Is(err, tenants.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "School not found", "code": "school_not_found"})
				return
			}
			logger.WithRequest(c).Error("school lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Service temporarily unavailable", "code": "internal_error"})
			return
		}

		allowed := a.Role == users.RoleAdmin ||
			(a.Role == users.RoleSchoolAdmin && slices.Contains(a.SchoolIDs, t.ID))
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied", "code": "forbidden"})
			return
		}

		SetTenant(c, t, LoadStatus(c, subs, t))
		c.Next()
	}
}

// RequireActiveSubscription blocks content changes while the school's
// subscription is blocking. Feature and billing screens stay reachable.
func RequireActiveSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		st := StatusFrom(c)
		if st.Blocking {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error": "Your subscription is not active",
				"code":  "subscription_inactive",
				"state": st.State,
			})
			return
		}
		c.Next()
	}
}
