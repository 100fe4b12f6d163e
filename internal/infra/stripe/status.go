package stripe

import (
	"strings"

	"schoolsite-app/internal/domain/subscriptions"
)

// NormalizeStatus folds provider subscription statuses into the four the
// subscription record understands. Unknown values come back trimmed.
func NormalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return "none"
	case "active":
		return subscriptions.ProviderActive
	case "trialing":
		return subscriptions.ProviderTrialing
	case "past_due", "unpaid", "incomplete":
		return subscriptions.ProviderPastDue
	case "canceled", "incomplete_expired":
		return subscriptions.ProviderCanceled
	default:
		return s
	}
}
