package bookings

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"schoolsite-app/internal/domain/apperr"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrEventNotFound       = apperr.NotFound("event_not_found", "event not found")
	ErrAppointmentNotFound = apperr.NotFound("booking_not_found", "booking not found")
	ErrInvalidTransition   = apperr.Conflict("invalid_transition", "booking is not in a state that allows this change")
)

// BuildFunc decides a booking against a locked event and its active bookings.
type BuildFunc func(ev *Event, active []Appointment) (*Appointment, error)

type Transition struct {
	SchoolID uint
	ID       uint
	// ParentID, when set, restricts the change to that parent's booking.
	ParentID uint
	From     []string
	To       string
	At       time.Time
}

type Store interface {
	CreateEvent(ctx context.Context, ev *Event) error
	GetEvent(ctx context.Context, schoolID, id uint) (*Event, error)
	ListEvents(ctx context.Context, schoolID uint, bookableOnly bool) ([]Event, error)
	// ActiveCounts returns active bookings per event id.
	ActiveCounts(ctx context.Context, eventIDs []uint) (map[uint]int, error)

	// InsertChecked loads the event and its active bookings, calls build and
	// inserts the result, all atomically with respect to other bookings of
	// the same event.
	InsertChecked(ctx context.Context, schoolID, eventID uint, build BuildFunc) (*Appointment, error)
	Transition(ctx context.Context, tr Transition) (*Appointment, error)
	ListForParent(ctx context.Context, schoolID, parentID uint) ([]Appointment, error)
	ListForEvent(ctx context.Context, schoolID, eventID uint) ([]Appointment, error)
}

// IMPORTANT: pass db in, do NOT import schoolsite-app/database here (avoids import cycle).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateEvent(ctx context.Context, ev *Event) error {
	if ev.TimeSlots == nil {
		ev.TimeSlots = []string{}
	}
	return s.db.WithContext(ctx).Create(ev).Error
}

func (s *GormStore) GetEvent(ctx context.Context, schoolID, id uint) (*Event, error) {
	var ev Event
	err := s.db.WithContext(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &ev, nil
}

func (s *GormStore) ListEvents(ctx context.Context, schoolID uint, bookableOnly bool) ([]Event, error) {
	q := s.db.WithContext(ctx).Where("school_id = ?", schoolID)
	if bookableOnly {
		q = q.Where("is_bookable = true")
	}
	var out []Event
	err := q.Order("starts_at ASC").Find(&out).Error
	return out, err
}

func (s *GormStore) ActiveCounts(ctx context.Context, eventIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		EventID uint
		N       int
	}
	err := s.db.WithContext(ctx).
		Model(&Appointment{}).
		Select("event_id, COUNT(*) AS n").
		Where("event_id IN ? AND status IN ?", eventIDs, ActiveStatuses).
		Group("event_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.EventID] = r.N
	}
	return out, nil
}

func (s *GormStore) InsertChecked(ctx context.Context, schoolID, eventID uint, build BuildFunc) (*Appointment, error) {
	var created *Appointment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev Event
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND school_id = ?", eventID, schoolID).
			First(&ev).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		var active []Appointment
		if err := tx.Where("event_id = ? AND status IN ?", ev.ID, ActiveStatuses).Find(&active).Error; err != nil {
			return err
		}

		appt, err := build(&ev, active)
		if err != nil {
			return err
		}
		if err := tx.Create(appt).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				if appt.TimeSlot != nil {
					return reject(ReasonSlotTaken)
				}
				return reject(ReasonAlreadyBooked)
			}
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *GormStore) Transition(ctx context.Context, tr Transition) (*Appointment, error) {
	q := s.db.WithContext(ctx).
		Model(&Appointment{}).
		Where("id = ? AND school_id = ? AND status IN ?", tr.ID, tr.SchoolID, tr.From)
	if tr.ParentID != 0 {
		q = q.Where("parent_id = ?", tr.ParentID)
	}
	res := q.Updates(map[string]any{"status": tr.To, "decided_at": tr.At})
	if res.Error != nil {
		return nil, res.Error
	}

	appt, err := s.getAppointment(ctx, tr.SchoolID, tr.ID)
	if err != nil {
		return nil, err
	}
	if tr.ParentID != 0 && appt.ParentID != tr.ParentID {
		return nil, ErrAppointmentNotFound
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}
	return appt, nil
}

func (s *GormStore) getAppointment(ctx context.Context, schoolID, id uint) (*Appointment, error) {
	var a Appointment
	err := s.db.WithContext(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *GormStore) ListForParent(ctx context.Context, schoolID, parentID uint) ([]Appointment, error) {
	var out []Appointment
	err := s.db.WithContext(ctx).
		Where("school_id = ? AND parent_id = ?", schoolID, parentID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) ListForEvent(ctx context.Context, schoolID, eventID uint) ([]Appointment, error) {
	var out []Appointment
	err := s.db.WithContext(ctx).
		Where("school_id = ? AND event_id = ?", schoolID, eventID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

var _ Store = (*GormStore)(nil)

// MemoryStore keeps events and bookings in maps. One mutex serialises
// InsertChecked, which gives the same guarantee as the gorm row lock.
type MemoryStore struct {
	mu       sync.Mutex
	nextEvt  uint
	nextAppt uint
	events   map[uint]*Event
	appts    map[uint]*Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[uint]*Event), appts: make(map[uint]*Appointment)}
}

func copyEvent(ev *Event) *Event {
	cp := *ev
	cp.TimeSlots = slices.Clone(ev.TimeSlots)
	return &cp
}

func (m *MemoryStore) CreateEvent(_ context.Context, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextEvt++
	ev.ID = m.nextEvt
	ev.CreatedAt = time.Now()
	ev.UpdatedAt = ev.CreatedAt
	m.events[ev.ID] = copyEvent(ev)
	return nil
}

func (m *MemoryStore) GetEvent(_ context.Context, schoolID, id uint) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[id]
	if !ok || ev.SchoolID != schoolID {
		return nil, ErrEventNotFound
	}
	return copyEvent(ev), nil
}

func (m *MemoryStore) ListEvents(_ context.Context, schoolID uint, bookableOnly bool) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Event{}
	for _, ev := range m.events {
		if ev.SchoolID != schoolID || (bookableOnly && !ev.IsBookable) {
			continue
		}
		out = append(out, *copyEvent(ev))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *MemoryStore) ActiveCounts(_ context.Context, eventIDs []uint) (map[uint]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[uint]int, len(eventIDs))
	for _, a := range m.appts {
		if IsActive(a.Status) && slices.Contains(eventIDs, a.EventID) {
			out[a.EventID]++
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertChecked(_ context.Context, schoolID, eventID uint, build BuildFunc) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok || ev.SchoolID != schoolID {
		return nil, ErrEventNotFound
	}

	var active []Appointment
	for _, a := range m.appts {
		if a.EventID == eventID && IsActive(a.Status) {
			active = append(active, *a)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	appt, err := build(copyEvent(ev), active)
	if err != nil {
		return nil, err
	}
	m.nextAppt++
	appt.ID = m.nextAppt
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	cp := *appt
	m.appts[appt.ID] = &cp
	return appt, nil
}

func (m *MemoryStore) Transition(_ context.Context, tr Transition) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[tr.ID]
	if !ok || a.SchoolID != tr.SchoolID || (tr.ParentID != 0 && a.ParentID != tr.ParentID) {
		return nil, ErrAppointmentNotFound
	}
	if !slices.Contains(tr.From, a.Status) {
		return nil, ErrInvalidTransition
	}
	at := tr.At
	a.Status = tr.To
	a.DecidedAt = &at
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

// list orders by creation like the gorm queries, id breaking ties.
func (m *MemoryStore) list(match func(*Appointment) bool, newestFirst bool) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Appointment{}
	for _, a := range m.appts {
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if newestFirst {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

func (m *MemoryStore) ListForParent(_ context.Context, schoolID, parentID uint) ([]Appointment, error) {
	return m.list(func(a *Appointment) bool { return a.SchoolID == schoolID && a.ParentID == parentID }, true), nil
}

func (m *MemoryStore) ListForEvent(_ context.Context, schoolID, eventID uint) ([]Appointment, error) {
	return m.list(func(a *Appointment) bool { return a.SchoolID == schoolID && a.EventID == eventID }, false), nil
}

var _ Store = (*MemoryStore)(nil)
