package statutory

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules holds the statutory tables. Amounts are whole rupees and rates are
// basis points.
type Rules struct {
	PF              PFRules             `yaml:"pf"`
	ESI             ESIRules            `yaml:"esi"`
	ProfessionalTax map[string][]PTSlab `yaml:"professional_tax"`
	TDS             TDSRules            `yaml:"tds"`
}

type PFRules struct {
	WageCeiling    int64 `yaml:"wage_ceiling"`
	EmployeeRateBP int64 `yaml:"employee_rate_bp"`
	EmployerRateBP int64 `yaml:"employer_rate_bp"`
	EPSRateBP      int64 `yaml:"eps_rate_bp"`
	EPSCap         int64 `yaml:"eps_cap"`
}

type ESIRules struct {
	GrossCeiling   int64 `yaml:"gross_ceiling"`
	EmployeeRateBP int64 `yaml:"employee_rate_bp"`
	EmployerRateBP int64 `yaml:"employer_rate_bp"`
}

type PTSlab struct {
	Above    int64 `yaml:"above"`
	Amount   int64 `yaml:"amount"`
	February int64 `yaml:"february"`
}

type TDSRules struct {
	CessBP int64       `yaml:"cess_bp"`
	New    RegimeRules `yaml:"new"`
	Old    RegimeRules `yaml:"old"`
}

type RegimeRules struct {
	StandardDeduction int64     `yaml:"standard_deduction"`
	Section80CCap     int64     `yaml:"section_80c_cap"`
	Slabs             []TaxSlab `yaml:"slabs"`
	RebateIncomeLimit int64     `yaml:"rebate_income_limit"`
	RebateMax         int64     `yaml:"rebate_max"`
	MarginalRelief    bool      `yaml:"marginal_relief"`
}

// TaxSlab taxes income up to UpTo rupees; zero UpTo means unbounded.
type TaxSlab struct {
	UpTo   int64 `yaml:"up_to"`
	RateBP int64 `yaml:"rate_bp"`
}

// Load reads rules from path, or the built-in tables when path is empty.
func Load(path string) (*Rules, error) {
	data := defaultRules
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read statutory rules: %w", err)
		}
		data = raw
	}
	return Parse(data)
}

func Parse(data []byte) (*Rules, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var rules Rules
	if err := decoder.Decode(&rules); err != nil {
		return nil, fmt.Errorf("parse statutory rules: %w", err)
	}
	if err := rules.validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// Default returns the built-in tables.
func Default() *Rules {
	rules, err := Parse(defaultRules)
	if err != nil {
		panic(err)
	}
	return rules
}

func (r *Rules) validate() error {
	if r.PF.WageCeiling <= 0 {
		return fmt.Errorf("statutory rules: pf.wage_ceiling must be positive")
	}
	for name, regime := range map[string]RegimeRules{"new": r.TDS.New, "old": r.TDS.Old} {
		if len(regime.Slabs) == 0 {
			return fmt.Errorf("statutory rules: tds.%s has no slabs", name)
		}
		var last int64
		for i, slab := range regime.Slabs {
			if slab.UpTo == 0 && i != len(regime.Slabs)-1 {
				return fmt.Errorf("statutory rules: tds.%s slab %d is unbounded but not last", name, i)
			}
			if slab.UpTo != 0 && slab.UpTo <= last {
				return fmt.Errorf("statutory rules: tds.%s slabs must ascend", name)
			}
			last = slab.UpTo
		}
	}
	for state, slabs := range r.ProfessionalTax {
		for i := 1; i < len(slabs); i++ {
			if slabs[i].Above <= slabs[i-1].Above {
				return fmt.Errorf("statutory rules: professional_tax.%s slabs must ascend", state)
			}
		}
	}
	return nil
}
