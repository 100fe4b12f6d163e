package middleware

import (
	"net/http"
	"strings"
	"time"

	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/infra/logger"
	"schoolsite-app/internal/infra/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	CtxTenant   = "tenant"
	CtxStatus   = "subscription_status"
	// set when the school was addressed by path on the platform domain
	CtxBasePath = "base_path"
)

// ForwardedPathHeader carries the browser path when the front-end proxies
// a path-routed page ("/acme/eventi") to /api/site on the platform domain.
const ForwardedPathHeader = "X-Forwarded-Path"

// ReservedPrefixes are first path segments that never name a school.
var ReservedPrefixes = []string{"admin", "api", "_next", "static", "metrics", "health", "webhook", "s"}

// RequestHost prefers the proxy's X-Forwarded-Host over Host.
func RequestHost(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	return r.Host
}

// PathSlug returns the first path segment as a school slug candidate, or ""
// when the path starts with a reserved prefix.
func PathSlug(path string) string {
	seg := strings.Trim(path, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	seg = strings.ToLower(seg)
	for _, p := range ReservedPrefixes {
		if seg == p {
			return ""
		}
	}
	if !tenants.ValidSlug(seg) {
		return ""
	}
	return seg
}

// ResolveTenant attaches the school addressed by the request (host, or the
// :slug route param on the platform domain) and its derived billing status.
// A :slug route reached through any other host resolves to nothing.
// An unresolved request continues without a school; the access guard
// answers it.
func ResolveTenant(res *tenants.Resolver, subs subscriptions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		host := RequestHost(c.Request)
		slug := c.Param("slug")
		if slug != "" && !res.IsBaseDomain(host) {
			// path routing only exists on the platform domain
			metrics.TenantResolutions.WithLabelValues("not_found").Inc()
			c.Next()
			return
		}
		if slug == "" && res.IsBaseDomain(host) {
			slug = PathSlug(c.GetHeader(ForwardedPathHeader))
		}

		if slug == "" && res.IsReservedHost(host) {
			metrics.TenantResolutions.WithLabelValues("reserved").Inc()
			c.Next()
			return
		}

		t, err := res.Resolve(c.Request.Context(), host, slug)
		if err != nil {
			metrics.TenantResolutions.WithLabelValues("error").Inc()
			logger.WithRequest(c).Error("tenant resolution failed", zap.String("host", host), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Service temporarily unavailable", "code": "internal_error"})
			return
		}
		if t == nil {
			metrics.TenantResolutions.WithLabelValues("not_found").Inc()
			c.Next()
			return
		}
		metrics.TenantResolutions.WithLabelValues("found").Inc()

		SetTenant(c, t, LoadStatus(c, subs, t))
		if slug != "" && res.IsBaseDomain(host) {
			c.Set(CtxBasePath, "/"+t.Slug)
		}
		c.Next()
	}
}

// LoadStatus derives the school's billing status. A subscription that
// cannot be loaded derives as expired.
func LoadStatus(c *gin.Context, subs subscriptions.Store, t *tenants.Tenant) subscriptions.Status {
	sub, err := tenants.LoadSubscription(c.Request.Context(), subs, t)
	if err != nil {
		logger.WithRequest(c).Error("subscription load failed, failing closed",
			zap.Uint("school_id", t.ID), zap.Error(err))
		sub = nil
	}
	return subscriptions.DeriveFor(sub, t.IsActive, time.Now())
}

func SetTenant(c *gin.Context, t *tenants.Tenant, st subscriptions.Status) {
	c.Set(CtxTenant, t)
	c.Set(CtxStatus, st)
}

func TenantFrom(c *gin.Context) *tenants.Tenant {
	v, ok := c.Get(CtxTenant)
	if !ok {
		return nil
	}
	t, _ := v.(*tenants.Tenant)
	return t
}

// StatusFrom returns the derived status; without one it is the fail-closed
// expired status.
func StatusFrom(c *gin.Context) subscriptions.Status {
	if v, ok := c.Get(CtxStatus); ok {
		if st, ok := v.(subscriptions.Status); ok {
			return st
		}
	}
	return subscriptions.Derive(nil, time.Now())
}
