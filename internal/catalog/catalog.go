// Package catalog holds the required-document catalog keyed by profile.
package catalog

import (
	_ "embed"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dossier-cli/internal/model"
)

// Catalog keys.
const (
	KeyBaseline  = "baseline"
	KeyTrader    = "trader"
	KeyDeveloper = "developer"
)

// Document ids the condition engine looks for.
const (
	DocPrecommercialisation = "precommercialisation"
	DocPlanningTravaux      = "planning_travaux"
)

//go:embed catalog.yaml
var builtin []byte

// Requirement is one required document.
type Requirement struct {
	ID       string `yaml:"id" json:"id"`
	Label    string `yaml:"label" json:"label"`
	Category string `yaml:"category" json:"category"`
}

// Catalog maps a catalog key to its ordered list of requirements.
type Catalog struct {
	entries map[string][]Requirement
}

// Default returns the built-in catalog. It panics if the embedded file is
// malformed, which can only happen at build time.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog override from a YAML file. An empty path returns the
// built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a catalog document with a top-level "catalog" key.
func Parse(data []byte) (*Catalog, error) {
	var wrapper struct {
		Catalog map[string][]Requirement `yaml:"catalog"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "catalog: parse")
	}
	if len(wrapper.Catalog[KeyBaseline]) == 0 {
		return nil, eris.New("catalog: baseline entry is required")
	}
	for key, reqs := range wrapper.Catalog {
		seen := make(map[string]bool, len(reqs))
		for _, r := range reqs {
			if r.ID == "" {
				return nil, eris.Errorf("catalog: %s: requirement without id", key)
			}
			if seen[r.ID] {
				return nil, eris.Errorf("catalog: %s: duplicate id %q", key, r.ID)
			}
			seen[r.ID] = true
		}
	}
	return &Catalog{entries: wrapper.Catalog}, nil
}

// KeyFor maps a borrower profile to its catalog key.
func KeyFor(p model.Profile) string {
	switch p {
	case model.ProfileTrader:
		return KeyTrader
	case model.ProfileDeveloper:
		return KeyDeveloper
	default:
		return KeyBaseline
	}
}

// For returns the requirements for a profile, falling back to the baseline
// list when the catalog has no dedicated entry.
func (c *Catalog) For(p model.Profile) []Requirement {
	if reqs, ok := c.entries[KeyFor(p)]; ok {
		return reqs
	}
	return c.entries[KeyBaseline]
}

// Keys returns the catalog keys present, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
