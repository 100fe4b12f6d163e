package plans

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gorm.io/gorm"
)

type Store interface {
	List(ctx context.Context) ([]Plan, error)
	// GetByStripePriceID returns nil, nil for unknown prices.
	GetByStripePriceID(ctx context.Context, priceID string) (*Plan, error)
	// Upsert creates or updates the plan keyed by StripePriceID and
	// reports whether it was created.
	Upsert(ctx context.Context, p *Plan) (bool, error)
}

// IMPORTANT: pass db in, do NOT import schoolsite-app/database here (avoids import cycle).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) List(ctx context.Context) ([]Plan, error) {
	var out []Plan
	err := s.db.WithContext(ctx).Order("price_eur ASC").Find(&out).Error
	return out, err
}

func (s *GormStore) GetByStripePriceID(ctx context.Context, priceID string) (*Plan, error) {
	var p Plan
	if err := s.db.WithContext(ctx).Where("stripe_price_id = ?", priceID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) Upsert(ctx context.Context, p *Plan) (bool, error) {
	existing, err := s.GetByStripePriceID(ctx, p.StripePriceID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return true, s.db.WithContext(ctx).Create(p).Error
	}
	p.ID = existing.ID
	if p.Tier == "" {
		p.Tier = existing.Tier
	}
	return false, s.db.WithContext(ctx).Save(p).Error
}

var _ Store = (*GormStore)(nil)

type MemoryStore struct {
	mu     sync.Mutex
	nextID uint
	plans  map[string]Plan
}

func NewMemoryStore(seed ...Plan) *MemoryStore {
	m := &MemoryStore{plans: make(map[string]Plan)}
	for _, p := range seed {
		_, _ = m.Upsert(context.Background(), &p)
	}
	return m
}

func (m *MemoryStore) List(_ context.Context) ([]Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Plan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceEUR < out[j].PriceEUR })
	return out, nil
}

func (m *MemoryStore) GetByStripePriceID(_ context.Context, priceID string) (*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[priceID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) Upsert(_ context.Context, p *Plan) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.plans[p.StripePriceID]
	if ok {
		p.ID = existing.ID
		if p.Tier == "" {
			p.Tier = existing.Tier
		}
	} else {
		m.nextID++
		p.ID = m.nextID
	}
	m.plans[p.StripePriceID] = *p
	return !ok, nil
}

var _ Store = (*MemoryStore)(nil)
