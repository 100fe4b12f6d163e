package tenants

import (
	"context"
	"testing"

	"schoolsite-app/internal/domain/subscriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHost(t *testing.T) {
	cases := map[string]string{
		"Acme.Scuole.Example.com:8080": "acme.scuole.example.com",
		"acme.example.com.":            "acme.example.com",
		"localhost:3000":               "localhost",
		"[::1]:8080":                   "::1",
		"  WWW.Scuola.it  ":            "www.scuola.it",
		"":                             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeHost(in), in)
	}
}

func TestFirstLabel(t *testing.T) {
	assert.Equal(t, "acme", FirstLabel("acme.scuole.example.com"))
	assert.Equal(t, "localhost", FirstLabel("localhost"))
}

func TestMakeSlug(t *testing.T) {
	assert.Equal(t, "scuola-primaria-sant-anna", MakeSlug("Scuola Primaria Sant'Anna"))
	assert.Equal(t, "istituto-comprensivo-citta", MakeSlug("  Istituto  Comprensivo Città "))
	assert.Equal(t, "school", MakeSlug("!!!"))
	assert.Equal(t, "sant-anna", MakeSlug("Sant&#39;Anna"))
	assert.True(t, ValidSlug(MakeSlug("Liceo Galilei")))
	assert.False(t, ValidSlug("-bad-"))
	assert.False(t, ValidSlug("ab"))
}

func TestUniqueSlug(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(subscriptions.NewMemoryStore())
	require.NoError(t, store.Create(ctx, &Tenant{Name: "Acme", Slug: "acme", IsActive: true}))
	require.NoError(t, store.Create(ctx, &Tenant{Name: "Acme", Slug: "acme-2", IsActive: false}))

	slug, err := UniqueSlug(ctx, store, "ACME", nil)
	require.NoError(t, err)
	assert.Equal(t, "acme-3", slug)

	slug, err = UniqueSlug(ctx, store, "www", []string{"www", "admin"})
	require.NoError(t, err)
	assert.Equal(t, "www-2", slug)
}
