package tenants

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"schoolsite-app/internal/domain/apperr"
	"schoolsite-app/internal/domain/subscriptions"

	"gorm.io/gorm"
)

var (
	ErrNotFound   = apperr.NotFound("school_not_found", "school not found")
	ErrSlugTaken  = apperr.Conflict("slug_taken", "slug already in use")
	ErrDomainUsed = apperr.Conflict("domain_taken", "domain already in use")
)

type Store interface {
	// FindActiveBySlug returns nil, nil when no active school has the slug.
	FindActiveBySlug(ctx context.Context, slug string) (*Tenant, error)
	// FindActiveByDomainOrSlug returns active schools whose domain equals
	// domain or whose slug equals slug, lowest id first.
	FindActiveByDomainOrSlug(ctx context.Context, domain, slug string) ([]Tenant, error)

	GetByID(ctx context.Context, id uint) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]Tenant, error)
	CountByOwner(ctx context.Context, ownerID uint) (int64, error)
	// IDsBySubscription lists the schools sharing a subscription.
	IDsBySubscription(ctx context.Context, subscriptionID uint) ([]uint, error)

	Create(ctx context.Context, t *Tenant) error
	Update(ctx context.Context, t *Tenant) error
	SetActive(ctx context.Context, id uint, active bool) error
	Delete(ctx context.Context, id uint) error
}

// LoadSubscription resolves the tenant's subscription relation at the data
// boundary. A missing record yields nil, nil (callers fail closed).
func LoadSubscription(ctx context.Context, subs subscriptions.Store, t *Tenant) (*subscriptions.Subscription, error) {
	r := t.SubscriptionRef()
	if sub, ok := r.Entity(); ok {
		return sub, nil
	}
	if r.IsZero() {
		return nil, nil
	}
	sub, err := subs.Get(ctx, r.ID())
	if err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	t.Subscription = sub
	return sub, nil
}

// IMPORTANT: pass db in, do NOT import schoolsite-app/database here (avoids import cycle).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindActiveBySlug(ctx context.Context, slug string) (*Tenant, error) {
	var t Tenant
	err := s.db.WithContext(ctx).
		Preload("Subscription").
		Where("slug = ? AND is_active = true", slug).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) FindActiveByDomainOrSlug(ctx context.Context, domain, slug string) ([]Tenant, error) {
	match := s.db.Where("domain = ?", domain)
	if slug != "" {
		match = match.Or("slug = ?", slug)
	}

	var out []Tenant
	err := s.db.WithContext(ctx).
		Preload("Subscription").
		Where("is_active = true").
		Where(match).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) GetByID(ctx context.Context, id uint) (*Tenant, error) {
	var t Tenant
	if err := s.db.WithContext(ctx).Preload("Subscription").First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	var t Tenant
	if err := s.db.WithContext(ctx).Preload("Subscription").First(&t, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Tenant{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// List pages through all schools by id; limit <= 0 means no limit.
func (s *GormStore) List(ctx context.Context, limit, offset int) ([]Tenant, error) {
	var out []Tenant
	q := s.db.WithContext(ctx).
		Preload("Subscription").
		Order("id ASC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (s *GormStore) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Tenant{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

func (s *GormStore) IDsBySubscription(ctx context.Context, subscriptionID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&Tenant{}).Where("subscription_id = ?", subscriptionID).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (s *GormStore) Create(ctx context.Context, t *Tenant) error {
	if t.FeatureVisibility == nil {
		t.FeatureVisibility = FeatureVisibility{}
	}
	err := s.db.WithContext(ctx).Omit("Subscription").Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSlugTaken
	}
	return err
}

func (s *GormStore) Update(ctx context.Context, t *Tenant) error {
	err := s.db.WithContext(ctx).Omit("Subscription").Save(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDomainUsed
	}
	return err
}

func (s *GormStore) SetActive(ctx context.Context, id uint, active bool) error {
	res := s.db.WithContext(ctx).Model(&Tenant{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&Tenant{}, id).Error
}

var _ Store = (*GormStore)(nil)

// MemoryStore is an in-memory school store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  uint
	tenants map[uint]*Tenant
	subs    subscriptions.Store
}

// NewMemoryStore creates a store; subs (optional) is used to preload
// subscriptions the way the gorm store does.
func NewMemoryStore(subs subscriptions.Store) *MemoryStore {
	return &MemoryStore{tenants: make(map[uint]*Tenant), subs: subs}
}

func (m *MemoryStore) copyOf(ctx context.Context, t *Tenant) *Tenant {
	cp := *t
	cp.FeatureVisibility = t.FeatureVisibility.Clone()
	cp.Subscription = nil
	if m.subs != nil && cp.SubscriptionID != nil {
		if sub, err := m.subs.Get(ctx, *cp.SubscriptionID); err == nil {
			cp.Subscription = sub
		}
	}
	return &cp
}

func (m *MemoryStore) FindActiveBySlug(ctx context.Context, slug string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tenants {
		if t.IsActive && t.Slug == slug {
			return m.copyOf(ctx, t), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) FindActiveByDomainOrSlug(ctx context.Context, domain, slug string) ([]Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Tenant
	for _, t := range m.tenants {
		if !t.IsActive {
			continue
		}
		if (t.Domain != nil && *t.Domain == domain) || (slug != "" && t.Slug == slug) {
			out = append(out, *m.copyOf(ctx, t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id uint) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.copyOf(ctx, t), nil
}

func (m *MemoryStore) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tenants {
		if t.Slug == slug {
			return m.copyOf(ctx, t), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tenants {
		if t.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) List(ctx context.Context, limit, offset int) ([]Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		all = append(all, *m.copyOf(ctx, t))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return []Tenant{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MemoryStore) CountByOwner(_ context.Context, ownerID uint) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, t := range m.tenants {
		if t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) IDsBySubscription(_ context.Context, subscriptionID uint) ([]uint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []uint
	for id, t := range m.tenants {
		if t.SubscriptionID != nil && *t.SubscriptionID == subscriptionID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.tenants {
		if existing.Slug == t.Slug {
			return ErrSlugTaken
		}
		if t.Domain != nil && existing.Domain != nil && *existing.Domain == *t.Domain {
			return ErrDomainUsed
		}
	}
	if t.FeatureVisibility == nil {
		t.FeatureVisibility = FeatureVisibility{}
	}
	m.nextID++
	t.ID = m.nextID
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	cp.FeatureVisibility = t.FeatureVisibility.Clone()
	cp.Subscription = nil
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MemoryStore) Update(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[t.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range m.tenants {
		if id != t.ID && t.Domain != nil && existing.Domain != nil && *existing.Domain == *t.Domain {
			return ErrDomainUsed
		}
	}
	t.UpdatedAt = time.Now()
	cp := *t
	cp.FeatureVisibility = t.FeatureVisibility.Clone()
	cp.Subscription = nil
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MemoryStore) SetActive(_ context.Context, id uint, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.IsActive = active
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tenants, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
