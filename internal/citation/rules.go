package citation

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules are the tables and weights behind the citation score.
type Rules struct {
	Version         string              `yaml:"version"`
	Tiers           map[Tier][]string   `yaml:"tiers"`
	Points          map[Tier]float64    `yaml:"points"`
	Formats         map[Format][]string `yaml:"formats"`
	Keywords        []string            `yaml:"keywords"`
	AdjacencyWindow int                 `yaml:"adjacency_window"`
	LowCredibility  float64             `yaml:"low_credibility"`
	Weights         Weights             `yaml:"weights"`
	Recommendations Recommendations     `yaml:"recommendations"`
}

// Weights are the maximum points each signal contributes to the score.
type Weights struct {
	URLPresence  float64 `yaml:"url_presence"`
	URLCap       int     `yaml:"url_cap"`
	Validity     float64 `yaml:"validity"`
	Credibility  float64 `yaml:"credibility"`
	Format       float64 `yaml:"format"`
	Completeness float64 `yaml:"completeness"`
}

func (w Weights) total() float64 {
	return w.URLPresence + w.Validity + w.Credibility + w.Format + w.Completeness
}

type Recommendations struct {
	NoURLs         string `yaml:"no_urls"`
	InvalidURLs    string `yaml:"invalid_urls"`
	LowCredibility string `yaml:"low_credibility"`
	NoFormat       string `yaml:"no_format"`
	Incomplete     string `yaml:"incomplete"`
}

var (
	defaultRules     Rules
	defaultRulesOnce sync.Once
)

// DefaultRules returns the embedded tables.
func DefaultRules() Rules {
	defaultRulesOnce.Do(func() {
		r, err := ParseRules(defaultRulesYAML)
		if err != nil {
			panic(fmt.Sprintf("citation: embedded rules.yaml: %v", err))
		}
		defaultRules = r
	})
	return defaultRules
}

// ParseRules decodes a rules table. Signal weights must sum to 100 and
// every recommendation needs its text.
func ParseRules(data []byte) (Rules, error) {
	r := Rules{AdjacencyWindow: 80, LowCredibility: 50}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parsing citation rules: %w", err)
	}
	if r.Weights.URLCap <= 0 {
		r.Weights.URLCap = 3
	}
	if t := r.Weights.total(); t != 100 {
		return Rules{}, fmt.Errorf("citation rules: weights sum to %v, want 100", t)
	}
	for _, tier := range []Tier{TierHigh, TierMedium, TierLow, TierUnknown} {
		if _, ok := r.Points[tier]; !ok {
			return Rules{}, fmt.Errorf("citation rules: no points for tier %s", tier)
		}
	}
	msgs := r.Recommendations
	for key, msg := range map[string]string{
		"no_urls":         msgs.NoURLs,
		"invalid_urls":    msgs.InvalidURLs,
		"low_credibility": msgs.LowCredibility,
		"no_format":       msgs.NoFormat,
		"incomplete":      msgs.Incomplete,
	} {
		if msg == "" {
			return Rules{}, fmt.Errorf("citation rules: missing recommendation %s", key)
		}
	}
	return r, nil
}
