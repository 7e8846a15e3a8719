// Package scorer implements the profile-aware multi-pillar SmartScore and the
// alerts derived from it.
package scorer

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dossier-cli/internal/model"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// PillarWeight assigns a weight (max points) to a pillar.
type PillarWeight struct {
	Key    PillarKey `yaml:"key" json:"key"`
	Weight int       `yaml:"weight" json:"weight"`
}

// GradeThresholds are the minimum scores for grades A to D; anything below
// D is graded E.
type GradeThresholds struct {
	A int `yaml:"a" json:"a"`
	B int `yaml:"b" json:"b"`
	C int `yaml:"c" json:"c"`
	D int `yaml:"d" json:"d"`
}

// Penalties are the points removed per non-info missing-data item.
type Penalties struct {
	Blocker int `yaml:"blocker" json:"blocker"`
	Warn    int `yaml:"warn" json:"warn"`
}

// ProfileConfig is the scoring configuration of one borrower profile.
type ProfileConfig struct {
	Pillars   []PillarWeight  `yaml:"pillars" json:"pillars"`
	Grades    GradeThresholds `yaml:"grades" json:"grades"`
	Penalties Penalties       `yaml:"penalties" json:"penalties"`
}

// Profiles maps each borrower profile to its configuration.
type Profiles map[model.Profile]ProfileConfig

// DefaultProfiles returns the built-in profile table.
func DefaultProfiles() Profiles {
	p, err := ParseProfiles(builtinProfiles)
	if err != nil {
		panic(err)
	}
	return p
}

// LoadProfiles reads a profile table from a YAML file. An empty path returns
// the built-in table.
func LoadProfiles(path string) (Profiles, error) {
	if path == "" {
		return DefaultProfiles(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read profiles %s", path)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes a profile table with a top-level "profiles" key.
func ParseProfiles(data []byte) (Profiles, error) {
	var wrapper struct {
		Profiles Profiles `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "scorer: parse profiles")
	}
	if err := ValidateProfiles(wrapper.Profiles); err != nil {
		return nil, err
	}
	return wrapper.Profiles, nil
}

// WeightSum returns the sum of a profile's pillar weights.
func WeightSum(c ProfileConfig) int {
	sum := 0
	for _, p := range c.Pillars {
		sum += p.Weight
	}
	return sum
}

// ValidateProfiles checks that every profile is internally consistent.
func ValidateProfiles(p Profiles) error {
	if len(p) == 0 {
		return eris.New("scorer: profile validation failed: no profiles")
	}

	var errs []string
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, string(name))
	}
	sort.Strings(names)

	for _, name := range names {
		c := p[model.Profile(name)]
		seen := make(map[PillarKey]bool, len(c.Pillars))
		for _, pw := range c.Pillars {
			if _, ok := registry[pw.Key]; !ok {
				errs = append(errs, fmt.Sprintf("%s: unknown pillar %q", name, pw.Key))
			}
			if seen[pw.Key] {
				errs = append(errs, fmt.Sprintf("%s: duplicate pillar %q", name, pw.Key))
			}
			seen[pw.Key] = true
			if pw.Weight <= 0 {
				errs = append(errs, fmt.Sprintf("%s: pillar %q weight must be > 0", name, pw.Key))
			}
		}

		// Weights must sum to exactly 100.
		if sum := WeightSum(c); sum != 100 {
			errs = append(errs, fmt.Sprintf("%s: weights should sum to 100, got %d", name, sum))
		}

		g := c.Grades
		if !(100 >= g.A && g.A > g.B && g.B > g.C && g.C > g.D && g.D >= 0) {
			errs = append(errs, fmt.Sprintf("%s: grade thresholds must be strictly descending within 0-100", name))
		}

		if c.Penalties.Blocker < 0 || c.Penalties.Warn < 0 {
			errs = append(errs, fmt.Sprintf("%s: penalties must be >= 0", name))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: profile validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
