package tenants

import (
	"time"

	"schoolsite-app/internal/domain/ref"
	"schoolsite-app/internal/domain/subscriptions"
)

// FeatureVisibility holds per-school overrides keyed by storage key
// ("showBlog", "enableEmailCommunications", ...). Absent key = catalogue default.
type FeatureVisibility map[string]bool

func (v FeatureVisibility) Clone() FeatureVisibility {
	out := make(FeatureVisibility, len(v))
	for k, b := range v {
		out[k] = b
	}
	return out
}

// Tenant is one school: its own site, data scope and subscription.
type Tenant struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"not null;uniqueIndex:idx_schools_slug" json:"slug"`

	// custom domain, e.g. "www.scuola-rossi.it"
	Domain *string `gorm:"uniqueIndex:idx_schools_domain" json:"domain,omitempty"`

	PrimaryColor string `json:"primary_color,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`

	FeatureVisibility FeatureVisibility `gorm:"type:jsonb;serializer:json;not null;default:'{}'" json:"feature_visibility"`

	OwnerID        uint                        `gorm:"not null;index" json:"owner_id"`
	SubscriptionID *uint                       `gorm:"index" json:"subscription_id,omitempty"`
	Subscription   *subscriptions.Subscription `json:"-"`

	IsActive bool `gorm:"not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Tenant) TableName() string { return "schools" }

// SubscriptionRef exposes the subscription relation as loaded or id-only.
func (t *Tenant) SubscriptionRef() ref.Ref[subscriptions.Subscription] {
	var id uint
	if t.SubscriptionID != nil {
		id = *t.SubscriptionID
	}
	if t.Subscription != nil {
		if id == 0 {
			id = t.Subscription.ID
		}
		return ref.Resolved(id, t.Subscription)
	}
	return ref.Unresolved[subscriptions.Subscription](id)
}

// Override returns the stored override for a storage key, if any.
func (t *Tenant) Override(key string) (bool, bool) {
	if t.FeatureVisibility == nil {
		return false, false
	}
	v, ok := t.FeatureVisibility[key]
	return v, ok
}

func (t *Tenant) HostDomain() string {
	if t.Domain == nil {
		return ""
	}
	return *t.Domain
}
