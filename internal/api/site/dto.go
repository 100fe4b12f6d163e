package siteapi

import (
	"time"

	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/bookings"
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
)

type SchoolDTO struct {
	ID           uint    `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	Domain       *string `json:"domain,omitempty"`
	PrimaryColor string  `json:"primaryColor,omitempty"`
	LogoURL      string  `json:"logoUrl,omitempty"`
}

type SiteResponse struct {
	School   *SchoolDTO                `json:"school"`
	Decision access.Decision           `json:"decision"`
	Mode     access.SiteMode           `json:"mode"`
	Status   *subscriptions.PublicView `json:"status,omitempty"`
	Features map[features.Feature]bool `json:"features,omitempty"`
}

type AccessResponse struct {
	Feature  features.Feature `json:"feature,omitempty"`
	Decision access.Decision  `json:"decision"`
	Mode     access.SiteMode  `json:"mode"`
}

type EventDTO struct {
	bookings.Event
	Booked    int  `json:"booked"`
	Remaining *int `json:"remaining,omitempty"`
}

type CommunicationDTO struct {
	ID        uint       `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Priority  string     `json:"priority,omitempty"`
	PublishAt time.Time  `json:"publishAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func schoolDTO(t *tenants.Tenant) *SchoolDTO {
	if t == nil {
		return nil
	}
	return &SchoolDTO{
		ID:           t.ID,
		Name:         t.Name,
		Slug:         t.Slug,
		Domain:       t.Domain,
		PrimaryColor: t.PrimaryColor,
		LogoURL:      t.LogoURL,
	}
}

func eventDTO(ev bookings.Event, booked int) EventDTO {
	out := EventDTO{Event: ev, Booked: booked}
	if ev.MaxCapacity != nil {
		left := *ev.MaxCapacity - booked
		if left < 0 {
			left = 0
		}
		out.Remaining = &left
	}
	return out
}
