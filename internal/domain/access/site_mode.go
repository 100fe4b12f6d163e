package access

// SiteMode is what the front-end renders for a decision.
type SiteMode string

const (
	SiteLive        SiteMode = "live"
	SiteMaintenance SiteMode = "maintenance"
	SiteActivation  SiteMode = "activation"
	SiteNotFound    SiteMode = "not-found"
)

func SiteModeFor(d Decision) SiteMode {
	if d.Kind != KindBlock {
		return SiteLive
	}
	switch {
	case d.Reason == ReasonNotFound:
		return SiteNotFound
	case d.Audience == AudienceAdmin:
		return SiteActivation
	default:
		return SiteMaintenance
	}
}
