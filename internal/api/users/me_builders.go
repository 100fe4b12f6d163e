package usersapi

import (
	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"
)

func BuildUserDTO(u *users.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Lastname:     u.Lastname,
		Tel:          stringPtrIfNotEmpty(u.Tel),
		Role:         u.Role,
		AuthProvider: u.AuthProvider,
	}
}

func BuildConsentDTO(u *users.User, cfg access.GuardConfig) ConsentDTO {
	return ConsentDTO{
		PrivacyVersion:        u.PrivacyVersion,
		PrivacyAcceptedAt:     u.PrivacyAcceptedAt,
		TermsVersion:          u.TermsVersion,
		TermsAcceptedAt:       u.TermsAcceptedAt,
		CurrentPrivacyVersion: cfg.PrivacyVersion,
		CurrentTermsVersion:   cfg.TermsVersion,
		UpToDate:              u.HasConsent(cfg.PrivacyVersion, cfg.TermsVersion),
	}
}

// BuildMembershipDTO shows billing detail to the school owner and only the
// public state to everyone else.
func BuildMembershipDTO(u *users.User, t *tenants.Tenant, sub *subscriptions.Subscription, st subscriptions.Status) MembershipDTO {
	dto := MembershipDTO{
		ID:     t.ID,
		Name:   t.Name,
		Slug:   t.Slug,
		Domain: t.Domain,
		Owner:  t.OwnerID == u.ID,
		Active: t.IsActive,
	}
	if dto.Owner {
		view := subscriptions.NewAdminView(sub, st)
		dto.Subscription = &view
		dto.Capabilities = access.AdminCapabilities(st, features.TenantTier(t))
		return dto
	}
	pub := subscriptions.NewPublicView(st)
	dto.Status = &pub
	return dto
}

func stringPtrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
