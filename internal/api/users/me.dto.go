package usersapi

import (
	"time"

	"schoolsite-app/internal/domain/subscriptions"
)

type MeResponse struct {
	User    UserDTO         `json:"user"`
	Consent ConsentDTO      `json:"consent"`
	Schools []MembershipDTO `json:"schools"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID           uint    `json:"id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Lastname     string  `json:"lastname"`
	Tel          *string `json:"tel"`
	Role         string  `json:"role"`
	AuthProvider string  `json:"auth_provider"`
}

/* ---------- CONSENT ---------- */

type ConsentDTO struct {
	PrivacyVersion    string     `json:"privacy_version"`
	PrivacyAcceptedAt *time.Time `json:"privacy_accepted_at"`
	TermsVersion      string     `json:"terms_version"`
	TermsAcceptedAt   *time.Time `json:"terms_accepted_at"`

	CurrentPrivacyVersion string `json:"current_privacy_version"`
	CurrentTermsVersion   string `json:"current_terms_version"`
	UpToDate              bool   `json:"up_to_date"`
}

/* ---------- SCHOOLS ---------- */

type MembershipDTO struct {
	ID     uint    `json:"id"`
	Name   string  `json:"name"`
	Slug   string  `json:"slug"`
	Domain *string `json:"domain"`
	Owner  bool    `json:"owner"`
	Active bool    `json:"is_active"`

	// subscription detail is only present for the owner
	Subscription *subscriptions.AdminView  `json:"subscription,omitempty"`
	Status       *subscriptions.PublicView `json:"status,omitempty"`
	Capabilities []string                  `json:"capabilities,omitempty"`
}
