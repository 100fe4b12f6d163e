package tenants

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Cache keeps resolved schools between requests. Misses return nil, nil.
type Cache interface {
	GetTenant(ctx context.Context, key string) (*Tenant, error)
	SetTenant(ctx context.Context, key string, t *Tenant, ttl time.Duration) error
	InvalidateTenant(ctx context.Context, id uint) error
}

type ResolverConfig struct {
	// BaseDomains are the platform's own hosts ("scuole.example.com", "localhost").
	BaseDomains []string
	// ReservedSubdomains never map to a school ("www", "admin").
	ReservedSubdomains []string
	CacheTTL           time.Duration
}

// Resolver maps a request host (plus optional path slug) to one active school.
type Resolver struct {
	store    Store
	cache    Cache
	ttl      time.Duration
	base     map[string]struct{}
	reserved map[string]struct{}
	log      *zap.Logger
}

func NewResolver(store Store, cfg ResolverConfig, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		store:    store,
		ttl:      cfg.CacheTTL,
		base:     make(map[string]struct{}),
		reserved: make(map[string]struct{}),
		log:      log,
	}
	for _, d := range cfg.BaseDomains {
		if d = NormalizeHost(d); d != "" {
			r.base[d] = struct{}{}
		}
	}
	for _, s := range cfg.ReservedSubdomains {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			r.reserved[s] = struct{}{}
		}
	}
	return r
}

// WithCache enables the resolution cache. A nil cache disables it.
func (r *Resolver) WithCache(c Cache) *Resolver {
	r.cache = c
	return r
}

func (r *Resolver) IsBaseDomain(hostname string) bool {
	_, ok := r.base[NormalizeHost(hostname)]
	return ok
}

// IsPlatformHost reports a base domain or any host under one. Those names
// belong to the platform and can't be claimed as a custom domain.
func (r *Resolver) IsPlatformHost(hostname string) bool {
	host := NormalizeHost(hostname)
	if r.IsBaseDomain(host) {
		return true
	}
	for base := range r.base {
		if strings.HasSuffix(host, "."+base) {
			return true
		}
	}
	return false
}

// IsReservedHost reports platform hosts like www.<base> or admin.<base>;
// callers skip resolution for them. Custom domains are never reserved.
func (r *Resolver) IsReservedHost(hostname string) bool {
	host := NormalizeHost(hostname)
	label := FirstLabel(host)
	if _, ok := r.reserved[label]; !ok || label == host {
		return false
	}
	_, ok := r.base[strings.TrimPrefix(host, label+".")]
	return ok
}

// Resolve returns the matching active school, or nil when there is none.
// Errors are only returned for store failures.
func (r *Resolver) Resolve(ctx context.Context, hostname, pathSlug string) (*Tenant, error) {
	host := NormalizeHost(hostname)
	pathSlug = strings.ToLower(strings.TrimSpace(pathSlug))
	if host == "" && pathSlug == "" {
		return nil, nil
	}

	key := "host:" + host
	if pathSlug != "" && r.IsBaseDomain(host) {
		key = "slug:" + pathSlug
	}
	if t := r.cached(ctx, key); t != nil {
		return t, nil
	}

	var (
		t   *Tenant
		err error
	)
	if pathSlug != "" && r.IsBaseDomain(host) {
		t, err = r.store.FindActiveBySlug(ctx, pathSlug)
	} else {
		t, err = r.byHost(ctx, host)
	}
	if err != nil || t == nil {
		return nil, err
	}

	r.remember(ctx, key, t)
	return t, nil
}

func (r *Resolver) byHost(ctx context.Context, host string) (*Tenant, error) {
	sub := FirstLabel(host)
	if _, reserved := r.reserved[sub]; reserved {
		sub = ""
	}
	if r.IsBaseDomain(host) {
		// the bare platform domain is not a school subdomain
		sub = ""
	}

	matches, err := r.store.FindActiveByDomainOrSlug(ctx, host, sub)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	}

	ids := make([]uint, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	r.log.Warn("ambiguous school resolution, first match wins",
		zap.String("host", host),
		zap.String("subdomain", sub),
		zap.Uints("school_ids", ids),
	)
	return &matches[0], nil
}

func (r *Resolver) cached(ctx context.Context, key string) *Tenant {
	if r.cache == nil {
		return nil
	}
	t, err := r.cache.GetTenant(ctx, key)
	if err != nil {
		r.log.Warn("tenant cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	return t
}

func (r *Resolver) remember(ctx context.Context, key string, t *Tenant) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	if err := r.cache.SetTenant(ctx, key, t, r.ttl); err != nil {
		r.log.Warn("tenant cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Forget drops cached resolutions of a school after it or its subscription changed.
func (r *Resolver) Forget(ctx context.Context, id uint) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidateTenant(ctx, id); err != nil {
		r.log.Warn("tenant cache invalidation failed", zap.Uint("school_id", id), zap.Error(err))
	}
}
