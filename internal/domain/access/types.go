package access

import (
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
)

type Kind string

const (
	KindAllow    Kind = "allow"
	KindRedirect Kind = "redirect"
	KindBlock    Kind = "block"
	KindConsent  Kind = "consent"
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNotFound        Reason = "not-found"
	ReasonBilling         Reason = "billing"
	ReasonFeatureDisabled Reason = "feature-disabled"
	ReasonLoginRequired   Reason = "login-required"
	ReasonConsentRequired Reason = "consent-required"
)

// Audience selects how a billing block is rendered.
type Audience string

const (
	AudiencePublic Audience = "public"
	AudienceAdmin  Audience = "admin"
)

type Area string

const (
	AreaPublic  Area = ""
	AreaParents Area = "parents"
)

// Actor is the authenticated caller, nil for anonymous visitors.
type Actor struct {
	UserID         uint
	Role           string
	SchoolIDs      []uint
	PrivacyVersion string
	TermsVersion   string
}

type Request struct {
	Tenant *tenants.Tenant
	Status subscriptions.Status
	// Feature is optional; empty means no feature gate.
	Feature features.Feature
	Area    Area
	Actor   *Actor
	// BasePath prefixes redirect targets ("/acme" under path routing).
	BasePath string
}

type Decision struct {
	Kind     Kind     `json:"kind"`
	Path     string   `json:"path,omitempty"`
	Reason   Reason   `json:"reason,omitempty"`
	Audience Audience `json:"audience,omitempty"`
}

func (d Decision) Allowed() bool { return d.Kind == KindAllow }
