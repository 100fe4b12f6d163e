package subscriptions

import "time"

// PublicView is what anonymous visitors and parents see: no billing dates.
type PublicView struct {
	IsActive      bool `json:"isActive"`
	IsTrial       bool `json:"isTrial"`
	DaysRemaining int  `json:"daysRemaining"` // 1 when usable, 0 when blocked
}

type AdminView struct {
	State           State      `json:"state"`
	Status          string     `json:"status"`
	Plan            string     `json:"plan"`
	DaysRemaining   int        `json:"daysRemaining"`
	IsActive        bool       `json:"isActive"`
	IsTrial         bool       `json:"isTrial"`
	IsBlocking      bool       `json:"isBlocking"`
	Warning         bool       `json:"warning"`
	RenewalFailed   bool       `json:"renewalFailed"`
	PaymentFailedAt *time.Time `json:"paymentFailedAt,omitempty"`
	TrialEndsAt     *time.Time `json:"trialEndsAt,omitempty"`
	RenewsAt        *time.Time `json:"renewsAt,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	MaxSchools      int        `json:"maxSchools"`
}

func NewPublicView(st Status) PublicView {
	v := PublicView{
		IsActive: !st.Blocking,
		IsTrial:  !st.Blocking && st.State == StateTrial,
	}
	if v.IsActive {
		v.DaysRemaining = 1
	}
	return v
}

func NewAdminView(sub *Subscription, st Status) AdminView {
	v := AdminView{
		State:         st.State,
		DaysRemaining: st.DaysRemaining,
		IsActive:      !st.Blocking,
		IsTrial:       st.State == StateTrial,
		IsBlocking:    st.Blocking,
		Warning:       st.Warning,
		RenewalFailed: st.State == StateRenewalFailed,
	}
	if sub == nil {
		v.Status = StatusExpired
		return v
	}
	v.Status = sub.Status
	v.Plan = sub.Plan
	v.MaxSchools = sub.MaxSchools
	v.PaymentFailedAt = sub.PaymentFailedAt
	v.TrialEndsAt = sub.TrialEndsAt
	v.RenewsAt = sub.RenewsAt
	v.ExpiresAt = sub.ExpiresAt
	return v
}
