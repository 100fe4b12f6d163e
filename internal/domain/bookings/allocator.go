package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"schoolsite-app/internal/domain/apperr"
)

type Reason string

const (
	ReasonNotBookable    Reason = "not-bookable"
	ReasonDeadlinePassed Reason = "deadline-passed"
	ReasonSlotRequired   Reason = "slot-required"
	ReasonInvalidSlot    Reason = "invalid-slot"
	ReasonSlotTaken      Reason = "slot-taken"
	ReasonFull           Reason = "full"
	ReasonAlreadyBooked  Reason = "already-booked"
)

// Rejection is a booking refused by a rule. It unwraps to a Conflict.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string { return "booking rejected: " + string(r.Reason) }

func (r *Rejection) Unwrap() error {
	return apperr.Conflict(string(r.Reason), "booking rejected: "+string(r.Reason))
}

func reject(reason Reason) error { return &Rejection{Reason: reason} }

// AsRejection extracts the rejection from err, if any.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	ok := errors.As(err, &r)
	return r, ok
}

type BookRequest struct {
	SchoolID uint
	EventID  uint
	ParentID uint
	ChildID  *uint
	TimeSlot string
	Notes    string
}

// Decide runs the booking rules in order against an event and its active
// bookings. It returns the initial status, or the first failing reason.
func Decide(ev *Event, active []Appointment, req BookRequest, now time.Time) (string, Reason) {
	if !ev.IsBookable {
		return "", ReasonNotBookable
	}
	if ev.BookingDeadline != nil && now.After(*ev.BookingDeadline) {
		return "", ReasonDeadlinePassed
	}

	if ev.UsesSlots() {
		if req.TimeSlot == "" {
			return "", ReasonSlotRequired
		}
		if !ev.HasSlot(req.TimeSlot) {
			return "", ReasonInvalidSlot
		}
		for _, a := range active {
			if a.TimeSlot != nil && *a.TimeSlot == req.TimeSlot {
				return "", ReasonSlotTaken
			}
		}
	} else if ev.MaxCapacity != nil && len(active) >= *ev.MaxCapacity {
		return "", ReasonFull
	}

	for _, a := range active {
		if a.ParentID == req.ParentID {
			return "", ReasonAlreadyBooked
		}
	}

	if ev.RequiresApproval {
		return StatusPending, ""
	}
	return StatusConfirmed, ""
}

type Allocator struct {
	store Store
	now   func() time.Time
}

func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store, now: time.Now}
}

// WithClock replaces the allocator's clock.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// Book allocates a seat or slot. Rule checks and the insert happen inside
// one Store.InsertChecked call, so concurrent requests cannot oversell.
func (a *Allocator) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	req.TimeSlot = strings.TrimSpace(req.TimeSlot)

	return a.store.InsertChecked(ctx, req.SchoolID, req.EventID, func(ev *Event, active []Appointment) (*Appointment, error) {
		status, reason := Decide(ev, active, req, a.now())
		if reason != "" {
			return nil, reject(reason)
		}
		appt := &Appointment{
			SchoolID: ev.SchoolID,
			EventID:  ev.ID,
			ParentID: req.ParentID,
			ChildID:  req.ChildID,
			Status:   status,
			Notes:    req.Notes,
		}
		if ev.UsesSlots() {
			slot := req.TimeSlot
			appt.TimeSlot = &slot
		}
		return appt, nil
	})
}

// Approve confirms a pending booking (school admin).
func (a *Allocator) Approve(ctx context.Context, schoolID, id uint) (*Appointment, error) {
	return a.store.Transition(ctx, Transition{
		SchoolID: schoolID, ID: id,
		From: []string{StatusPending}, To: StatusConfirmed, At: a.now(),
	})
}

// Reject refuses a pending booking (school admin) and frees its seat.
func (a *Allocator) Reject(ctx context.Context, schoolID, id uint) (*Appointment, error) {
	return a.store.Transition(ctx, Transition{
		SchoolID: schoolID, ID: id,
		From: []string{StatusPending}, To: StatusRejected, At: a.now(),
	})
}

// Cancel withdraws a parent's own active booking.
func (a *Allocator) Cancel(ctx context.Context, schoolID, parentID, id uint) (*Appointment, error) {
	return a.store.Transition(ctx, Transition{
		SchoolID: schoolID, ID: id, ParentID: parentID,
		From: ActiveStatuses, To: StatusCancelled, At: a.now(),
	})
}

func (a *Allocator) ListForParent(ctx context.Context, schoolID, parentID uint) ([]Appointment, error) {
	return a.store.ListForParent(ctx, schoolID, parentID)
}

func (a *Allocator) ListForEvent(ctx context.Context, schoolID, eventID uint) ([]Appointment, error) {
	return a.store.ListForEvent(ctx, schoolID, eventID)
}
