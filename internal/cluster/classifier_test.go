package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_RuleMatch(t *testing.T) {
	rs := DefaultRuleSet()

	tests := []struct {
		path string
		want string
	}{
		{"/services/plumbing", "/services/*"},
		{"/services/", "/services/*"},
		{"/blog/2024/traffic-tips", "/blog/*"},
		{"/products/widget-9", "/products/*"},
		{"/", "/"},
		{"/about", "/about/*"},
		{"/about/team/alice", "/about/*"},
		{"", "/other"},
		{"/services/a?utm_source=x", "/services/*"},
		{"pricing", "/pricing/*"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, rs.Classify(tt.path))
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	rs := RuleSet{Rules: []Rule{
		{Prefix: "/blog/guides/", Cluster: "/guides/*"},
		{Prefix: "/blog/", Cluster: "/blog/*"},
	}}
	assert.Equal(t, "/guides/*", rs.Classify("/blog/guides/seo"))
	assert.Equal(t, "/blog/*", rs.Classify("/blog/news"))

	// Rules after the matching one do not affect the result.
	rs.Rules = append(rs.Rules, Rule{Prefix: "/blog/guides/seo", Cluster: "/seo/*"})
	assert.Equal(t, "/guides/*", rs.Classify("/blog/guides/seo"))
}

func TestClassify_Deterministic(t *testing.T) {
	rs := DefaultRuleSet()
	for i := 0; i < 100; i++ {
		assert.Equal(t, "/services/*", rs.Classify("/services/hvac"))
	}
}

func TestLoadRuleSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clusters.yaml")
	data := `
version: site-42-v3
rules:
  - prefix: /shop/
    cluster: /shop/*
  - prefix: /help/
    cluster: /support/*
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	rs, err := LoadRuleSet(path)
	require.NoError(t, err)
	assert.Equal(t, "site-42-v3", rs.Version)
	assert.Equal(t, "/shop/*", rs.Classify("/shop/cart"))
	assert.Equal(t, "/support/*", rs.Classify("/help/faq"))
}

func TestLoadRuleSet_Errors(t *testing.T) {
	_, err := LoadRuleSet(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("version: v1\nrules: []\n"), 0o644))
	_, err = LoadRuleSet(empty)
	require.Error(t, err)
}
