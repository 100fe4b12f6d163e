package communications

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

type Store interface {
	Create(ctx context.Context, c *Communication) error
	ListActive(ctx context.Context, schoolID uint) ([]Communication, error)
	ListAll(ctx context.Context, schoolID uint) ([]Communication, error)
	// Activate flips published, unexpired, inactive rows on.
	Activate(ctx context.Context, now time.Time) (int64, error)
	// Deactivate flips expired, active rows off.
	Deactivate(ctx context.Context, now time.Time) (int64, error)
}

// IMPORTANT: pass db in, do NOT import schoolsite-app/database here (avoids import cycle).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, c *Communication) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *GormStore) ListActive(ctx context.Context, schoolID uint) ([]Communication, error) {
	var out []Communication
	err := s.db.WithContext(ctx).
		Where("school_id = ? AND is_active = true", schoolID).
		Order("publish_at DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) ListAll(ctx context.Context, schoolID uint) ([]Communication, error) {
	var out []Communication
	err := s.db.WithContext(ctx).
		Where("school_id = ?", schoolID).
		Order("publish_at DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) Activate(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&Communication{}).
		Where("is_active = false AND publish_at <= ?", now).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Update("is_active", true)
	return res.RowsAffected, res.Error
}

func (s *GormStore) Deactivate(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&Communication{}).
		Where("is_active = true AND expires_at IS NOT NULL AND expires_at <= ?", now).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

var _ Store = (*GormStore)(nil)

type MemoryStore struct {
	mu     sync.Mutex
	nextID uint
	items  map[uint]*Communication
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[uint]*Communication)}
}

func (m *MemoryStore) Create(_ context.Context, c *Communication) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.items[c.ID] = &cp
	return nil
}

func (m *MemoryStore) list(match func(*Communication) bool) []Communication {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Communication{}
	for _, c := range m.items {
		if match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishAt.After(out[j].PublishAt) })
	return out
}

func (m *MemoryStore) ListActive(_ context.Context, schoolID uint) ([]Communication, error) {
	return m.list(func(c *Communication) bool { return c.SchoolID == schoolID && c.IsActive }), nil
}

func (m *MemoryStore) ListAll(_ context.Context, schoolID uint) ([]Communication, error) {
	return m.list(func(c *Communication) bool { return c.SchoolID == schoolID }), nil
}

func (m *MemoryStore) Activate(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, c := range m.items {
		if !c.IsActive && c.ShouldBeActive(now) {
			c.IsActive = true
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Deactivate(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, c := range m.items {
		if c.IsActive && c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
			c.IsActive = false
			n++
		}
	}
	return n, nil
}

var _ Store = (*MemoryStore)(nil)
