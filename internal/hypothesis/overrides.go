package hypothesis

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

// CatalogOverride adjusts the mutable fields of one built-in catalog entry.
// The key set and declaration order stay fixed in code; priority tier, owner
// routing, title and step templates are configuration.
type CatalogOverride struct {
	Key      string   `yaml:"key"`
	Priority string   `yaml:"priority,omitempty"`
	Owner    string   `yaml:"owner,omitempty"`
	Title    string   `yaml:"title,omitempty"`
	Steps    []string `yaml:"steps,omitempty"`
}

// CatalogOverrides is a versioned override file for the hypothesis catalog.
type CatalogOverrides struct {
	Version   string            `yaml:"version"`
	Overrides []CatalogOverride `yaml:"overrides"`
}

// LoadCatalogOverrides reads catalog overrides from a YAML file.
func LoadCatalogOverrides(path string) (CatalogOverrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CatalogOverrides{}, eris.Wrapf(err, "hypothesis: read catalog file %s", path)
	}
	var o CatalogOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return CatalogOverrides{}, eris.Wrap(err, "hypothesis: parse catalog file")
	}
	if len(o.Overrides) == 0 {
		return CatalogOverrides{}, eris.Errorf("hypothesis: catalog file %s contains no overrides", path)
	}
	return o, nil
}

// Apply merges the overrides into the catalog. Unknown keys, priorities and
// owners are errors. Applied once at startup, before any run.
func (o CatalogOverrides) Apply() error {
	for _, ov := range o.Overrides {
		i, ok := catalogIndex[model.HypothesisKey(ov.Key)]
		if !ok {
			return eris.Errorf("hypothesis: override for unknown key %q", ov.Key)
		}
		e := &Catalog[i]

		if ov.Priority != "" {
			p := model.Priority(ov.Priority)
			switch p {
			case model.PriorityP0, model.PriorityP1, model.PriorityP2, model.PriorityP3:
				e.Priority = p
			default:
				return eris.Errorf("hypothesis: invalid priority %q for %s", ov.Priority, ov.Key)
			}
		}
		if ov.Owner != "" {
			w := model.Owner(ov.Owner)
			switch w {
			case model.OwnerSEO, model.OwnerDEV, model.OwnerADS:
				e.Owner = w
			default:
				return eris.Errorf("hypothesis: invalid owner %q for %s", ov.Owner, ov.Key)
			}
		}
		if ov.Title != "" {
			e.Title = ov.Title
		}
		if len(ov.Steps) > 0 {
			e.Steps = ov.Steps
		}
	}
	return nil
}
