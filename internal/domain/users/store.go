package users

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"schoolsite-app/internal/domain/apperr"

	"gorm.io/gorm"
)

var (
	ErrNotFound   = apperr.NotFound("user_not_found", "user not found")
	ErrEmailTaken = apperr.Conflict("email_taken", "email already registered")
)

type Store interface {
	GetByID(ctx context.Context, id uint) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*User, error)
	Create(ctx context.Context, u *User) error
	Save(ctx context.Context, u *User) error
	AddMembership(ctx context.Context, userID, schoolID uint) error
	RemoveMembership(ctx context.Context, userID, schoolID uint) error
	// Delete removes the user with its memberships and children.
	Delete(ctx context.Context, id uint) error

	CreateChild(ctx context.Context, c *Child) error
	ListChildren(ctx context.Context, parentID, schoolID uint) ([]Child, error)
	GetChild(ctx context.Context, id uint) (*Child, error)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IMPORTANT: pass db in, do NOT import schoolsite-app/database here (avoids import cycle).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) first(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Preload("Schools").Where(query, arg).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) GetByID(ctx context.Context, id uint) (*User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.first(ctx, "email = ?", NormalizeEmail(email))
}

func (s *GormStore) GetByGoogleSub(ctx context.Context, sub string) (*User, error) {
	return s.first(ctx, "google_sub = ?", sub)
}

func (s *GormStore) Create(ctx context.Context, u *User) error {
	u.Email = NormalizeEmail(u.Email)
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

func (s *GormStore) Save(ctx context.Context, u *User) error {
	return s.db.WithContext(ctx).Omit("Schools").Save(u).Error
}

func (s *GormStore) AddMembership(ctx context.Context, userID, schoolID uint) error {
	m := Membership{UserID: userID, SchoolID: schoolID}
	return s.db.WithContext(ctx).Where(m).FirstOrCreate(&m).Error
}

func (s *GormStore) RemoveMembership(ctx context.Context, userID, schoolID uint) error {
	return s.db.WithContext(ctx).Where("user_id = ? AND school_id = ?", userID, schoolID).Delete(&Membership{}).Error
}

func (s *GormStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&Membership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_id = ?", id).Delete(&Child{}).Error; err != nil {
			return err
		}
		return tx.Delete(&User{}, id).Error
	})
}

func (s *GormStore) CreateChild(ctx context.Context, c *Child) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *GormStore) ListChildren(ctx context.Context, parentID, schoolID uint) ([]Child, error) {
	var out []Child
	err := s.db.WithContext(ctx).
		Where("parent_id = ? AND school_id = ?", parentID, schoolID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) GetChild(ctx context.Context, id uint) (*Child, error) {
	var c Child
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

var _ Store = (*GormStore)(nil)

// MemoryStore is an in-memory user store for tests.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    uint
	nextChild uint
	users     map[uint]*User
	children  map[uint]*Child
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uint]*User), children: make(map[uint]*Child)}
}

func copyUser(u *User) *User {
	cp := *u
	cp.Schools = append([]Membership(nil), u.Schools...)
	return &cp
}

func (m *MemoryStore) find(match func(*User) bool) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetByID(_ context.Context, id uint) (*User, error) {
	return m.find(func(u *User) bool { return u.ID == id })
}

func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	return m.find(func(u *User) bool { return u.Email == email })
}

func (m *MemoryStore) GetByGoogleSub(_ context.Context, sub string) (*User, error) {
	return m.find(func(u *User) bool { return u.GoogleSub != nil && *u.GoogleSub == sub })
}

func (m *MemoryStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = NormalizeEmail(u.Email)
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	for i := range u.Schools {
		u.Schools[i].UserID = u.ID
	}
	m.users[u.ID] = copyUser(u)
	return nil
}

func (m *MemoryStore) Save(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	cp := copyUser(u)
	cp.Schools = existing.Schools
	cp.UpdatedAt = time.Now()
	m.users[u.ID] = cp
	return nil
}

func (m *MemoryStore) AddMembership(_ context.Context, userID, schoolID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	if !u.BelongsTo(schoolID) {
		u.Schools = append(u.Schools, Membership{UserID: userID, SchoolID: schoolID})
	}
	return nil
}

func (m *MemoryStore) RemoveMembership(_ context.Context, userID, schoolID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil
	}
	kept := u.Schools[:0]
	for _, ms := range u.Schools {
		if ms.SchoolID != schoolID {
			kept = append(kept, ms)
		}
	}
	u.Schools = kept
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.users, id)
	for cid, c := range m.children {
		if c.ParentID == id {
			delete(m.children, cid)
		}
	}
	return nil
}

func (m *MemoryStore) CreateChild(_ context.Context, c *Child) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextChild++
	c.ID = m.nextChild
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.children[c.ID] = &cp
	return nil
}

func (m *MemoryStore) ListChildren(_ context.Context, parentID, schoolID uint) ([]Child, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Child{}
	for _, c := range m.children {
		if c.ParentID == parentID && c.SchoolID == schoolID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetChild(_ context.Context, id uint) (*Child, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.children[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

var _ Store = (*MemoryStore)(nil)
