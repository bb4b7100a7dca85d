package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Overrides are operator additions to the built-in rule tables, loaded from
// a YAML file so allowlists can grow without a rebuild. All lists are
// additive; thresholds replace the default when set.
type Overrides struct {
	HotCompanies      []string `yaml:"hot_companies"`
	Tier1Investors    []string `yaml:"tier1_investors"`
	Tier2Investors    []string `yaml:"tier2_investors"`
	NotableAngels     []string `yaml:"notable_angels"`
	NYCMetroLocations []string `yaml:"nyc_metro_locations"`
	LondonLocations   []string `yaml:"london_locations"`
	SalaryFloor       *float64 `yaml:"salary_floor"`
	FeeFloor          *float64 `yaml:"fee_floor"`
}

// LoadOverrides reads an overrides file. A missing path is not an error: it
// returns empty overrides so callers can apply unconditionally.
func LoadOverrides(path string) (Overrides, error) {
	var o Overrides
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return o, eris.Wrapf(err, "registry: read overrides %s", path)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, eris.Wrapf(err, "registry: parse overrides %s", path)
	}
	return o, nil
}

// Apply merges overrides into the rule tables.
func (r *Rules) Apply(o Overrides) {
	r.hotCompanies.add(o.HotCompanies)
	r.tier1Investors.add(o.Tier1Investors)
	r.tier2Investors.add(o.Tier2Investors)
	r.notableAngels.add(o.NotableAngels)
	r.nycMetroLocations.add(o.NYCMetroLocations)
	r.londonLocations.add(o.LondonLocations)
	if o.SalaryFloor != nil {
		r.SalaryFloor = *o.SalaryFloor
	}
	if o.FeeFloor != nil {
		r.FeeFloor = *o.FeeFloor
	}
}
