package users

import (
	"time"
)

const (
	RoleAdmin       = "admin"
	RoleSchoolAdmin = "school_admin"
	RoleParent      = "parent"
)

type User struct {
	ID           uint `gorm:"primaryKey"`
	Name         string
	Lastname     string
	Tel          string
	Email        string  `gorm:"not null;uniqueIndex:idx_users_email"`
	Password     *string `gorm:""`
	AuthProvider string  `gorm:"type:varchar(20);not null;default:'local'"`
	GoogleSub    *string `gorm:"uniqueIndex:idx_users_google_sub"`
	Role         string  `gorm:"type:varchar(20);not null;default:'parent';index"`

	// schools the user administers (school_admin) or belongs to (parent)
	Schools []Membership `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	PrivacyVersion    string
	PrivacyAcceptedAt *time.Time
	TermsVersion      string
	TermsAcceptedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership scopes a user to one school.
type Membership struct {
	UserID   uint `gorm:"primaryKey"`
	SchoolID uint `gorm:"primaryKey;index"`
}

func (Membership) TableName() string { return "user_schools" }

func (u *User) SchoolIDs() []uint {
	ids := make([]uint, 0, len(u.Schools))
	for _, s := range u.Schools {
		ids = append(ids, s.SchoolID)
	}
	return ids
}

func (u *User) BelongsTo(schoolID uint) bool {
	for _, s := range u.Schools {
		if s.SchoolID == schoolID {
			return true
		}
	}
	return false
}

// AcceptConsent records acceptance of the given document versions.
func (u *User) AcceptConsent(privacy, terms string, now time.Time) {
	u.PrivacyVersion = privacy
	u.PrivacyAcceptedAt = &now
	u.TermsVersion = terms
	u.TermsAcceptedAt = &now
}

func (u *User) HasConsent(privacy, terms string) bool {
	return u.PrivacyAcceptedAt != nil && u.TermsAcceptedAt != nil &&
		u.PrivacyVersion == privacy && u.TermsVersion == terms
}

type Child struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	ParentID  uint       `gorm:"not null;index" json:"parent_id"`
	SchoolID  uint       `gorm:"not null;index" json:"school_id"`
	FirstName string     `gorm:"not null" json:"first_name"`
	LastName  string     `gorm:"not null" json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	ClassName string     `json:"class_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
