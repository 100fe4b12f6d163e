package auth

import (
	"context"
	"errors"

	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"

	"gorm.io/gorm"
)

// Stores are the stores an onboarding flow writes through.
type Stores struct {
	Users         users.Store
	Schools       tenants.Store
	Subscriptions subscriptions.Store
}

// Transactor runs fn as one unit: when fn fails, none of its writes stay.
type Transactor interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

// GormTransactor binds fresh gorm stores to a database transaction.
type GormTransactor struct {
	db *gorm.DB
}

func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

func (g *GormTransactor) InTx(ctx context.Context, fn func(Stores) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Stores{
			Users:         users.NewGormStore(tx),
			Schools:       tenants.NewGormStore(tx),
			Subscriptions: subscriptions.NewGormStore(tx),
		})
	})
}

// undoTransactor is used when the stores share no database: it records
// what fn creates and deletes it again when fn fails.
type undoTransactor struct {
	stores Stores
}

func (u undoTransactor) InTx(ctx context.Context, fn func(Stores) error) error {
	rec := &createLog{}
	err := fn(Stores{
		Users:         recordingUsers{Store: u.stores.Users, log: rec},
		Schools:       recordingSchools{Store: u.stores.Schools, log: rec},
		Subscriptions: recordingSubs{Store: u.stores.Subscriptions, log: rec},
	})
	if err == nil {
		return nil
	}

	// detached from ctx so a cancelled request still cleans up
	undo := context.WithoutCancel(ctx)
	var errs []error
	for _, m := range rec.memberships {
		errs = append(errs, u.stores.Users.RemoveMembership(undo, m[0], m[1]))
	}
	for i := len(rec.schools) - 1; i >= 0; i-- {
		errs = append(errs, u.stores.Schools.Delete(undo, rec.schools[i]))
	}
	for i := len(rec.subs) - 1; i >= 0; i-- {
		errs = append(errs, u.stores.Subscriptions.Delete(undo, rec.subs[i]))
	}
	for i := len(rec.users) - 1; i >= 0; i-- {
		errs = append(errs, u.stores.Users.Delete(undo, rec.users[i]))
	}
	if undoErr := errors.Join(errs...); undoErr != nil {
		return errors.Join(err, undoErr)
	}
	return err
}

type createLog struct {
	users       []uint
	schools     []uint
	subs        []uint
	memberships [][2]uint
}

type recordingUsers struct {
	users.Store
	log *createLog
}

func (r recordingUsers) Create(ctx context.Context, u *users.User) error {
	if err := r.Store.Create(ctx, u); err != nil {
		return err
	}
	r.log.users = append(r.log.users, u.ID)
	return nil
}

func (r recordingUsers) AddMembership(ctx context.Context, userID, schoolID uint) error {
	if err := r.Store.AddMembership(ctx, userID, schoolID); err != nil {
		return err
	}
	r.log.memberships = append(r.log.memberships, [2]uint{userID, schoolID})
	return nil
}

type recordingSchools struct {
	tenants.Store
	log *createLog
}

func (r recordingSchools) Create(ctx context.Context, t *tenants.Tenant) error {
	if err := r.Store.Create(ctx, t); err != nil {
		return err
	}
	r.log.schools = append(r.log.schools, t.ID)
	return nil
}

type recordingSubs struct {
	subscriptions.Store
	log *createLog
}

func (r recordingSubs) Create(ctx context.Context, sub *subscriptions.Subscription) error {
	if err := r.Store.Create(ctx, sub); err != nil {
		return err
	}
	r.log.subs = append(r.log.subs, sub.ID)
	return nil
}
