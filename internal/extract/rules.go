package extract

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules are the static tables and weights that drive candidate scoring.
type Rules struct {
	Version            string   `yaml:"version"`
	NoiseSelectors     []string `yaml:"noise_selectors"`
	ContentSelectors   []string `yaml:"content_selectors"`
	FallbackSelectors  []string `yaml:"fallback_selectors"`
	StructuralSelector string   `yaml:"structural_selector"`
	ClassHints         []string `yaml:"class_hints"`
	IDHints            []string `yaml:"id_hints"`
	NoiseTextPatterns  []string `yaml:"noise_text_patterns"`
	MinLineLength      int      `yaml:"min_line_length"`
	MinScore           float64  `yaml:"min_score"`
	Weights            Weights  `yaml:"weights"`
}

// Weights scale the terms of the candidate score.
type Weights struct {
	LengthDivisor    float64 `yaml:"length_divisor"`
	LengthCap        float64 `yaml:"length_cap"`
	StructureDivisor float64 `yaml:"structure_divisor"`
	StructureCap     float64 `yaml:"structure_cap"`
	LinkDensity      float64 `yaml:"link_density"`
	ClassHint        float64 `yaml:"class_hint"`
	IDHint           float64 `yaml:"id_hint"`
}

var (
	defaultRules     Rules
	defaultRulesOnce sync.Once
)

// DefaultRules returns the embedded rule tables.
func DefaultRules() Rules {
	defaultRulesOnce.Do(func() {
		r, err := ParseRules(defaultRulesYAML)
		if err != nil {
			panic(fmt.Sprintf("extract: embedded rules.yaml: %v", err))
		}
		defaultRules = r
	})
	return defaultRules
}

// ParseRules decodes a rules table, filling unset weights with defaults.
func ParseRules(data []byte) (Rules, error) {
	r := Rules{
		StructuralSelector: "h1, h2, h3, h4, p, li",
		MinScore:           3,
		Weights: Weights{
			LengthDivisor:    100,
			LengthCap:        10,
			StructureDivisor: 10,
			StructureCap:     5,
			LinkDensity:      10,
			ClassHint:        3,
			IDHint:           2,
		},
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parsing extraction rules: %w", err)
	}
	if len(r.ContentSelectors) == 0 && len(r.FallbackSelectors) == 0 {
		return Rules{}, fmt.Errorf("extraction rules define no candidate selectors")
	}
	if r.Weights.LengthDivisor <= 0 || r.Weights.StructureDivisor <= 0 {
		return Rules{}, fmt.Errorf("extraction rule divisors must be positive")
	}
	return r, nil
}
