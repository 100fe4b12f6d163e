package communications

import "time"

// Communication is a school notice shown on the site between PublishAt and
// ExpiresAt. IsActive is maintained by the sweep.
type Communication struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	SchoolID  uint       `gorm:"not null;index" json:"school_id"`
	Title     string     `gorm:"not null" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	Priority  string     `gorm:"type:varchar(20);not null;default:'normal'" json:"priority"`
	PublishAt time.Time  `gorm:"not null;index" json:"publish_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	IsActive  bool       `gorm:"not null;default:false;index" json:"is_active"`
	// SendEmail asks for an email blast; delivery itself happens elsewhere.
	SendEmail bool `gorm:"not null;default:false" json:"send_email"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShouldBeActive is the target state of the sweep at now.
func (c *Communication) ShouldBeActive(now time.Time) bool {
	if c.PublishAt.After(now) {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}
