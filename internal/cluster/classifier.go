// Package cluster maps page paths to structural clusters and attributes
// click loss across them.
package cluster

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rule maps a path prefix to a cluster label. Rules are tested in declaration
// order; the first match wins.
type Rule struct {
	Prefix  string `yaml:"prefix"`
	Cluster string `yaml:"cluster"`
}

// RuleSet is a versioned, ordered collection of classification rules.
type RuleSet struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// DefaultRuleSet returns the built-in rule table used when no rules file is
// configured.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Version: "builtin-1",
		Rules: []Rule{
			{Prefix: "/services/", Cluster: "/services/*"},
			{Prefix: "/blog/", Cluster: "/blog/*"},
			{Prefix: "/products/", Cluster: "/products/*"},
			{Prefix: "/locations/", Cluster: "/locations/*"},
		},
	}
}

// LoadRuleSet reads a rule set from a YAML file.
func LoadRuleSet(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, eris.Wrapf(err, "cluster: read rules file %s", path)
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, eris.Wrap(err, "cluster: parse rules file")
	}
	if len(rs.Rules) == 0 {
		return RuleSet{}, eris.Errorf("cluster: rules file %s contains no rules", path)
	}
	return rs, nil
}

// Classify maps a page path to its cluster id. Total and deterministic: every
// input yields a non-empty cluster. Unmatched paths fall back to
// "/{first-segment}/*", or "/other" when the path has no segment.
func (rs RuleSet) Classify(path string) string {
	// Strip query/fragment so /services/a?x=1 classifies like /services/a.
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/other"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path == "/" {
		return "/"
	}

	for _, r := range rs.Rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r.Cluster
		}
	}

	seg := strings.TrimPrefix(path, "/")
	if i := strings.Index(seg, "/"); i >= 0 {
		seg = seg[:i]
	}
	if seg == "" {
		return "/other"
	}
	return "/" + seg + "/*"
}
