package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ProcessedEvent records a billing callback that was applied, so provider
// retries of the same delivery are acknowledged without re-applying it.
type ProcessedEvent struct {
	ID                   uint   `gorm:"primaryKey"`
	StripeEventID        string `gorm:"not null;uniqueIndex"`
	Kind                 string `gorm:"type:varchar(64);not null;index"`
	SchoolID             *uint  `gorm:"index"`
	StripeSubscriptionID *string
	Result               string `gorm:"type:varchar(20);not null"`
	CreatedAt            time.Time
}

const (
	ResultApplied = "applied"
	ResultIgnored = "ignored"
)

type EventLog interface {
	Seen(ctx context.Context, stripeEventID string) (bool, error)
	Record(ctx context.Context, e *ProcessedEvent) error
}

// IMPORTANT: pass db in, do NOT import schoolsite-app/database here (avoids import cycle).
type GormEventLog struct {
	db *gorm.DB
}

func NewGormEventLog(db *gorm.DB) *GormEventLog {
	return &GormEventLog{db: db}
}

func (l *GormEventLog) Seen(ctx context.Context, id string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&ProcessedEvent{}).Where("stripe_event_id = ?", id).Count(&count).Error
	return count > 0, err
}

func (l *GormEventLog) Record(ctx context.Context, e *ProcessedEvent) error {
	err := l.db.WithContext(ctx).Create(e).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

type MemoryEventLog struct {
	mu     sync.Mutex
	events map[string]ProcessedEvent
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{events: make(map[string]ProcessedEvent)}
}

func (l *MemoryEventLog) Seen(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.events[id]
	return ok, nil
}

func (l *MemoryEventLog) Record(_ context.Context, e *ProcessedEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.events[e.StripeEventID]; !ok {
		e.CreatedAt = time.Now()
		l.events[e.StripeEventID] = *e
	}
	return nil
}

// Len is the number of recorded events.
func (l *MemoryEventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
