package tenants

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
)

/*
	Slug helpers
	------------
	- Responsible ONLY for generating and validating school slugs.
	- No access logic, no billing logic here.
*/

var (
	nonSlug   = regexp.MustCompile(`[^a-z0-9\-]+`)
	multiDash = regexp.MustCompile(`-+`)
	validSlug = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)
)

var accentFold = strings.NewReplacer(
	"à", "a", "á", "a", "è", "e", "é", "e", "ì", "i", "í", "i",
	"ò", "o", "ó", "o", "ù", "u", "ú", "u", "'", "-",
)

// MakeSlug generates a URL-safe base slug from a school name.
// Example: "Scuola Primaria Sant'Anna" -> "scuola-primaria-sant-anna"
func MakeSlug(name string) string {
	// names may arrive entity-escaped from the input sanitiser
	base := strings.ToLower(strings.TrimSpace(html.UnescapeString(name)))
	base = accentFold.Replace(base)
	base = strings.ReplaceAll(base, " ", "-")
	base = nonSlug.ReplaceAllString(base, "")
	base = multiDash.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	if base == "" {
		base = "school"
	}
	if len(base) > 60 {
		base = strings.Trim(base[:60], "-")
	}
	return base
}

func ValidSlug(s string) bool {
	return validSlug.MatchString(s)
}

// UniqueSlug returns MakeSlug(name), suffixed with -2, -3, ... until no
// school uses it. Reserved labels are skipped too.
func UniqueSlug(ctx context.Context, store Store, name string, reserved []string) (string, error) {
	base := MakeSlug(name)
	for i := 1; i <= 100; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		if isReservedLabel(candidate, reserved) {
			continue
		}
		taken, err := store.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrSlugTaken
}

func isReservedLabel(s string, reserved []string) bool {
	for _, r := range reserved {
		if strings.EqualFold(s, r) {
			return true
		}
	}
	return false
}
