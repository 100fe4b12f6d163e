package subscriptions

import (
	"math"
	"time"
)

type State string

const (
	StateTrial                  State = "trial"
	StateActiveRenewing         State = "active-renewing"
	StateActiveFixedExpiry      State = "active-fixed-expiry"
	StateCancelledPendingExpiry State = "cancelled-pending-expiry"
	StateExpired                State = "expired"
	StateRenewalFailed          State = "renewal-failed"
)

// WarningDays is the advisory window shown to admins before a deadline.
const WarningDays = 7

type Status struct {
	State         State
	DaysRemaining int
	Blocking      bool
	Warning       bool
}

// Derive computes the billing state from stored fields. Rules are evaluated
// in order: trial, renewal, fixed expiry, stored expired, nothing.
// A nil subscription (missing or failed to load) is expired and blocking.
func Derive(sub *Subscription, now time.Time) Status {
	if sub == nil {
		return finish(StateExpired, 0)
	}

	if sub.Status == StatusTrial && sub.TrialEndsAt != nil {
		days := ceilDays(sub.TrialEndsAt.Sub(now))
		if days > 0 {
			return finish(StateTrial, days)
		}
		return finish(StateExpired, 0)
	}

	if sub.RenewsAt != nil {
		if !sub.RenewsAt.Before(now) {
			return finish(StateActiveRenewing, ceilDays(sub.RenewsAt.Sub(now)))
		}
		// renewal date passed without a recorded hard expiry: payment failed
		if sub.ExpiresAt == nil {
			return finish(StateRenewalFailed, 0)
		}
	}

	if sub.ExpiresAt != nil {
		days := ceilDays(sub.ExpiresAt.Sub(now))
		if days <= 0 {
			return finish(StateExpired, 0)
		}
		if sub.Status == StatusCancelled {
			return finish(StateCancelledPendingExpiry, days)
		}
		return finish(StateActiveFixedExpiry, days)
	}

	// stored expired, or nothing authoritative recorded
	return finish(StateExpired, 0)
}

// DeriveFor is Derive plus the tenant's own switch: an inactive tenant is
// always blocked.
func DeriveFor(sub *Subscription, tenantActive bool, now time.Time) Status {
	st := Derive(sub, now)
	if !tenantActive {
		st.Blocking = true
		st.Warning = false
	}
	return st
}

func finish(state State, days int) Status {
	if days < 0 {
		days = 0
	}
	st := Status{State: state, DaysRemaining: days}
	st.Blocking = state == StateExpired || state == StateRenewalFailed
	st.Warning = !st.Blocking && state.expiring() && days > 0 && days <= WarningDays
	return st
}

func (s State) expiring() bool {
	switch s {
	case StateTrial, StateActiveRenewing, StateActiveFixedExpiry, StateCancelledPendingExpiry:
		return true
	}
	return false
}

func ceilDays(d time.Duration) int {
	days := math.Ceil(d.Hours() / 24)
	if days == 0 {
		return 0 // normalises -0
	}
	return int(days)
}
