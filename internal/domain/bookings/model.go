package bookings

import (
	"slices"
	"time"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// ActiveStatuses are the non-terminal statuses; they hold a seat or a slot.
var ActiveStatuses = []string{StatusPending, StatusConfirmed}

func IsActive(status string) bool {
	return slices.Contains(ActiveStatuses, status)
}

type Event struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SchoolID    uint       `gorm:"not null;index" json:"school_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartsAt    time.Time  `gorm:"not null;index" json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`

	IsBookable      bool       `gorm:"not null;default:false" json:"is_bookable"`
	BookingDeadline *time.Time `json:"booking_deadline,omitempty"`
	// non-empty means fixed time slots ("16:00", "16:15", ...)
	TimeSlots        []string `gorm:"type:jsonb;serializer:json;not null;default:'[]'" json:"time_slots"`
	MaxCapacity      *int     `json:"max_capacity,omitempty"`
	RequiresApproval bool     `gorm:"not null;default:false" json:"requires_approval"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Event) UsesSlots() bool { return len(e.TimeSlots) > 0 }

func (e *Event) HasSlot(slot string) bool { return slices.Contains(e.TimeSlots, slot) }

// Appointment is a parent's booking for an event.
type Appointment struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	SchoolID uint    `gorm:"not null;index" json:"school_id"`
	EventID  uint    `gorm:"not null;index" json:"event_id"`
	ParentID uint    `gorm:"not null;index" json:"parent_id"`
	ChildID  *uint   `json:"child_id,omitempty"`
	TimeSlot *string `gorm:"type:varchar(32)" json:"time_slot,omitempty"`
	Status   string  `gorm:"type:varchar(20);not null;index" json:"status"`
	Notes    string  `json:"notes,omitempty"`

	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Appointment) TableName() string { return "parent_appointments" }

// UniqueIndexSQL backs the allocator's row lock with partial unique indexes,
// one active booking per parent and per slot.
var UniqueIndexSQL = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_event_parent_active
		ON parent_appointments (event_id, parent_id)
		WHERE status IN ('pending', 'confirmed')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_event_slot_active
		ON parent_appointments (event_id, time_slot)
		WHERE time_slot IS NOT NULL AND status IN ('pending', 'confirmed')`,
}
