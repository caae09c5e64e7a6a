package hypothesis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// restoreEntry puts the built-in catalog entry back after a mutation test.
func restoreEntry(t *testing.T, key model.HypothesisKey) {
	t.Helper()
	i := catalogIndex[key]
	saved := Catalog[i]
	t.Cleanup(func() { Catalog[i] = saved })
}

func TestLoadCatalogOverridesApply(t *testing.T) {
	restoreEntry(t, model.HypSeasonality)

	path := writeCatalogFile(t, `
version: site-2
overrides:
  - key: SEASONALITY
    priority: P2
    title: Seasonal demand dip (annual sale window)
    steps:
      - Compare against the same sale window last year
`)

	o, err := LoadCatalogOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "site-2", o.Version)
	require.NoError(t, o.Apply())

	entry, err := Entry(model.HypSeasonality)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityP2, entry.Priority)
	assert.Equal(t, model.OwnerSEO, entry.Owner, "owner is untouched when not overridden")
	assert.Equal(t, "Seasonal demand dip (annual sale window)", entry.Title)
	require.Len(t, entry.Steps, 1)
	assert.Equal(t, model.PriorityP2, PriorityFor(model.HypSeasonality))
}

func TestCatalogOverridesOwnerRouting(t *testing.T) {
	restoreEntry(t, model.HypStructuredData)

	o := CatalogOverrides{Overrides: []CatalogOverride{
		{Key: string(model.HypStructuredData), Owner: "SEO"},
	}}
	require.NoError(t, o.Apply())

	entry, err := Entry(model.HypStructuredData)
	require.NoError(t, err)
	assert.Equal(t, model.OwnerSEO, entry.Owner)
}

func TestCatalogOverridesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		ov   CatalogOverride
		want string
	}{
		{"unknown key", CatalogOverride{Key: "NOT_A_CAUSE"}, "unknown key"},
		{"bad priority", CatalogOverride{Key: string(model.HypSeasonality), Priority: "P9"}, "invalid priority"},
		{"bad owner", CatalogOverride{Key: string(model.HypSeasonality), Owner: "OPS"}, "invalid owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := CatalogOverrides{Overrides: []CatalogOverride{tt.ov}}
			assert.ErrorContains(t, o.Apply(), tt.want)
		})
	}
}

func TestLoadCatalogOverridesEmptyFile(t *testing.T) {
	path := writeCatalogFile(t, "version: v1\noverrides: []\n")
	_, err := LoadCatalogOverrides(path)
	assert.ErrorContains(t, err, "no overrides")
}
