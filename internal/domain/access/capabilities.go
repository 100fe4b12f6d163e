package access

import (
	"schoolsite-app/internal/domain/plans"
	"schoolsite-app/internal/domain/subscriptions"
)

// AdminCapabilities lists what a school admin may do in the dashboard.
func AdminCapabilities(st subscriptions.Status, tier plans.Tier) []string {
	if st.Blocking {
		return []string{"billing"}
	}

	caps := []string{"billing", "edit", "events"}
	if tier.AtLeast(plans.TierProfessional) {
		caps = append(caps, "custom_domain", "parents_area")
	}
	if tier.AtLeast(plans.TierEnterprise) {
		caps = append(caps, "communications")
	}
	return caps
}
