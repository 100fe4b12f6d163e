package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

const day = 24 * time.Hour

func TestDerive_TrialRunning(t *testing.T) {
	st := Derive(&Subscription{Status: StatusTrial, TrialEndsAt: at(10*day + time.Hour)}, now)

	assert.Equal(t, StateTrial, st.State)
	assert.Equal(t, 11, st.DaysRemaining)
	assert.False(t, st.Blocking)
	assert.False(t, st.Warning)
}

func TestDerive_TrialEndedOneSecondAgo(t *testing.T) {
	st := Derive(&Subscription{Status: StatusTrial, TrialEndsAt: at(-time.Second)}, now)

	assert.Equal(t, StateExpired, st.State)
	assert.Equal(t, 0, st.DaysRemaining)
	assert.True(t, st.Blocking)
}

func TestDerive_TrialWarningWindow(t *testing.T) {
	st := Derive(&Subscription{Status: StatusTrial, TrialEndsAt: at(3 * day)}, now)

	assert.Equal(t, StateTrial, st.State)
	assert.Equal(t, 3, st.DaysRemaining)
	assert.True(t, st.Warning)
}

func TestDerive_RenewsInOneSecond(t *testing.T) {
	st := Derive(&Subscription{Status: StatusActive, RenewsAt: at(time.Second)}, now)

	assert.Equal(t, StateActiveRenewing, st.State)
	assert.Equal(t, 1, st.DaysRemaining)
	assert.False(t, st.Blocking)
}

func TestDerive_RenewalDatePassedWithoutExpiry(t *testing.T) {
	st := Derive(&Subscription{Status: StatusActive, RenewsAt: at(-day)}, now)

	assert.Equal(t, StateRenewalFailed, st.State)
	assert.Equal(t, 0, st.DaysRemaining)
	assert.True(t, st.Blocking)
	assert.False(t, st.Warning)
}

func TestDerive_RenewalPassedFallsBackToExpiry(t *testing.T) {
	st := Derive(&Subscription{Status: StatusActive, RenewsAt: at(-day), ExpiresAt: at(5 * day)}, now)

	assert.Equal(t, StateActiveFixedExpiry, st.State)
	assert.Equal(t, 5, st.DaysRemaining)
	assert.True(t, st.Warning)
}

func TestDerive_FixedExpiry(t *testing.T) {
	st := Derive(&Subscription{Status: StatusActive, ExpiresAt: at(40 * day)}, now)

	assert.Equal(t, StateActiveFixedExpiry, st.State)
	assert.Equal(t, 40, st.DaysRemaining)
	assert.False(t, st.Blocking)
	assert.False(t, st.Warning)
}

func TestDerive_CancelledPendingExpiry(t *testing.T) {
	st := Derive(&Subscription{Status: StatusCancelled, ExpiresAt: at(2 * day)}, now)

	assert.Equal(t, StateCancelledPendingExpiry, st.State)
	assert.Equal(t, 2, st.DaysRemaining)
	assert.False(t, st.Blocking)
	assert.True(t, st.Warning)
}

func TestDerive_ExpiryPassed(t *testing.T) {
	st := Derive(&Subscription{Status: StatusCancelled, ExpiresAt: at(-time.Minute)}, now)

	assert.Equal(t, StateExpired, st.State)
	assert.True(t, st.Blocking)
}

func TestDerive_StoredExpired(t *testing.T) {
	st := Derive(&Subscription{Status: StatusExpired}, now)

	assert.Equal(t, StateExpired, st.State)
	assert.Equal(t, 0, st.DaysRemaining)
	assert.True(t, st.Blocking)
}

func TestDerive_NoSubscriptionFailsClosed(t *testing.T) {
	st := Derive(nil, now)

	assert.Equal(t, StateExpired, st.State)
	assert.True(t, st.Blocking)
}

func TestDerive_TrialWithoutEndDateUsesLaterRules(t *testing.T) {
	st := Derive(&Subscription{Status: StatusTrial, RenewsAt: at(20 * day)}, now)

	assert.Equal(t, StateActiveRenewing, st.State)
}

func TestDeriveFor_InactiveTenantAlwaysBlocks(t *testing.T) {
	st := DeriveFor(&Subscription{Status: StatusActive, RenewsAt: at(3 * day)}, false, now)

	assert.Equal(t, StateActiveRenewing, st.State)
	assert.True(t, st.Blocking)
	assert.False(t, st.Warning)
}

func TestDerive_IsDeterministicForSameInstant(t *testing.T) {
	sub := &Subscription{Status: StatusTrial, TrialEndsAt: at(6 * day)}
	assert.Equal(t, Derive(sub, now), Derive(sub, now))
}

func TestCeilDays(t *testing.T) {
	assert.Equal(t, 0, ceilDays(0))
	assert.Equal(t, 1, ceilDays(time.Second))
	assert.Equal(t, 1, ceilDays(day))
	assert.Equal(t, 2, ceilDays(day+time.Nanosecond))
	assert.Equal(t, 0, ceilDays(-time.Hour))
	assert.Equal(t, -1, ceilDays(-day-time.Hour))
}
