package access

import (
	"slices"

	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/users"
)

type GuardConfig struct {
	PrivacyVersion string
	TermsVersion   string
	// LoginPath is relative to the school home, e.g. "/area-genitori/login".
	LoginPath string
}

// Guard decides per request whether a caller may proceed.
// Checks run in a fixed order and the first failing one wins.
type Guard struct {
	engine *features.Engine
	cfg    GuardConfig
}

func NewGuard(engine *features.Engine, cfg GuardConfig) *Guard {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/area-genitori/login"
	}
	return &Guard{engine: engine, cfg: cfg}
}

func (g *Guard) Authorize(req Request) Decision {
	t := req.Tenant
	if t == nil {
		return Decision{Kind: KindBlock, Reason: ReasonNotFound}
	}

	if !t.IsActive || req.Status.Blocking {
		return Decision{Kind: KindBlock, Reason: ReasonBilling, Audience: AudienceFor(req.Actor, t.ID)}
	}

	feature := req.Feature
	if feature == "" && req.Area == AreaParents {
		feature = features.ParentsArea
	}
	if feature != "" && !g.engine.IsEnabled(t, feature) {
		return Decision{Kind: KindRedirect, Path: homePath(req.BasePath), Reason: ReasonFeatureDisabled}
	}

	if req.Area == AreaParents {
		a := req.Actor
		if a == nil || a.Role != users.RoleParent || !slices.Contains(a.SchoolIDs, t.ID) {
			return Decision{Kind: KindRedirect, Path: req.BasePath + g.cfg.LoginPath, Reason: ReasonLoginRequired}
		}
		if a.PrivacyVersion != g.cfg.PrivacyVersion || a.TermsVersion != g.cfg.TermsVersion {
			return Decision{Kind: KindConsent, Reason: ReasonConsentRequired}
		}
	}

	return Decision{Kind: KindAllow}
}

// AudienceFor is admin for platform admins and the school's own admins.
func AudienceFor(a *Actor, schoolID uint) Audience {
	if a == nil {
		return AudiencePublic
	}
	if a.Role == users.RoleAdmin {
		return AudienceAdmin
	}
	if a.Role == users.RoleSchoolAdmin && slices.Contains(a.SchoolIDs, schoolID) {
		return AudienceAdmin
	}
	return AudiencePublic
}

func homePath(base string) string {
	if base == "" {
		return "/"
	}
	return base
}
