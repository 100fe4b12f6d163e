package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublicView_HidesExactDays(t *testing.T) {
	st := Derive(&Subscription{Status: StatusTrial, TrialEndsAt: at(12 * day)}, now)
	v := NewPublicView(st)

	assert.True(t, v.IsActive)
	assert.True(t, v.IsTrial)
	assert.Equal(t, 1, v.DaysRemaining)
}

func TestPublicView_Blocked(t *testing.T) {
	v := NewPublicView(Derive(&Subscription{Status: StatusActive, RenewsAt: at(-day)}, now))

	assert.False(t, v.IsActive)
	assert.False(t, v.IsTrial)
	assert.Equal(t, 0, v.DaysRemaining)
}

func TestAdminView_FullDetail(t *testing.T) {
	sub := &Subscription{
		Plan:       "professional",
		Status:     StatusActive,
		MaxSchools: 3,
		RenewsAt:   at(-day),
	}
	v := NewAdminView(sub, Derive(sub, now))

	assert.Equal(t, StateRenewalFailed, v.State)
	assert.True(t, v.RenewalFailed)
	assert.True(t, v.IsBlocking)
	assert.Equal(t, "professional", v.Plan)
	assert.Equal(t, 3, v.MaxSchools)
	assert.Equal(t, sub.RenewsAt, v.RenewsAt)
}

func TestAdminView_NilSubscription(t *testing.T) {
	v := NewAdminView(nil, Derive(nil, time.Now()))

	assert.Equal(t, StatusExpired, v.Status)
	assert.True(t, v.IsBlocking)
	assert.Empty(t, v.Plan)
}
