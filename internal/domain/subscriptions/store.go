package subscriptions

import (
	"context"
	"errors"
	"sync"
	"time"

	"schoolsite-app/internal/domain/apperr"

	"gorm.io/gorm"
)

var ErrNotFound = apperr.NotFound("subscription_not_found", "subscription not found")

type Store interface {
	Get(ctx context.Context, id uint) (*Subscription, error)
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)
	Create(ctx context.Context, s *Subscription) error
	Save(ctx context.Context, s *Subscription) error
	Delete(ctx context.Context, id uint) error
	// ExpireTrials flips stored trials whose end has passed to expired.
	ExpireTrials(ctx context.Context, now time.Time) (int64, error)
}

// IMPORTANT: pass db in, do NOT import schoolsite-app/database here (avoids import cycle).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id uint) (*Subscription, error) {
	var sub Subscription
	if err := s.db.WithContext(ctx).First(&sub, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *GormStore) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *GormStore) Create(ctx context.Context, sub *Subscription) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

func (s *GormStore) Save(ctx context.Context, sub *Subscription) error {
	return s.db.WithContext(ctx).Save(sub).Error
}

func (s *GormStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&Subscription{}, id).Error
}

func (s *GormStore) ExpireTrials(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&Subscription{}).
		Where("status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at <= ?", StatusTrial, now).
		Update("status", StatusExpired)
	return res.RowsAffected, res.Error
}

var _ Store = (*GormStore)(nil)

// MemoryStore is an in-memory store for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID uint
	subs   map[uint]*Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uint]*Subscription)}
}

func (m *MemoryStore) Get(_ context.Context, id uint) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryStore) GetByStripeID(_ context.Context, stripeSubscriptionID string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subs {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == stripeSubscriptionID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	sub.ID = m.nextID
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *MemoryStore) Save(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[sub.ID]; !ok {
		return ErrNotFound
	}
	sub.UpdatedAt = time.Now()
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subs, id)
	return nil
}

func (m *MemoryStore) ExpireTrials(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, sub := range m.subs {
		if sub.Status == StatusTrial && sub.TrialEndsAt != nil && !sub.TrialEndsAt.After(now) {
			sub.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

var _ Store = (*MemoryStore)(nil)
