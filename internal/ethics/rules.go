package ethics

import (
	_ "embed"
	"fmt"
	"math"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules holds every table and number the scorer uses.
type Rules struct {
	Version         string                `yaml:"version"`
	Threshold       float64               `yaml:"threshold"`
	Weights         map[Dimension]float64 `yaml:"weights"`
	Bias            BiasRules             `yaml:"bias"`
	Fairness        FairnessRules         `yaml:"fairness"`
	Transparency    TransparencyRules     `yaml:"transparency"`
	Privacy         PrivacyRules          `yaml:"privacy"`
	Harmful         HarmfulRules          `yaml:"harmful_content"`
	Accuracy        AccuracyRules         `yaml:"accuracy"`
	Explainability  ExplainabilityRules   `yaml:"explainability"`
	Recommendations map[Dimension]string  `yaml:"recommendations"`
}

type BiasRules struct {
	Keywords         map[string][]string `yaml:"keywords"`
	NegativeWords    []string            `yaml:"negative_words"`
	ContextWindow    int                 `yaml:"context_window"`
	Penalty          float64             `yaml:"penalty"`
	MaleTerms        []string            `yaml:"male_terms"`
	FemaleTerms      []string            `yaml:"female_terms"`
	BalanceRatio     float64             `yaml:"balance_ratio"`
	ImbalancePenalty float64             `yaml:"imbalance_penalty"`
}

type FairnessRules struct {
	Exclusive        []string `yaml:"exclusive"`
	Inclusive        []string `yaml:"inclusive"`
	Contrast         []string `yaml:"contrast"`
	ExclusivePenalty float64  `yaml:"exclusive_penalty"`
	ContrastBonus    float64  `yaml:"contrast_bonus"`
}

type TransparencyRules struct {
	Base            float64  `yaml:"base"`
	Disclosure      []string `yaml:"disclosure"`
	SourceWords     []string `yaml:"source_words"`
	DisclosureBonus float64  `yaml:"disclosure_bonus"`
	ModeBonus       float64  `yaml:"mode_bonus"`
	TimestampBonus  float64  `yaml:"timestamp_bonus"`
	SourceBonus     float64  `yaml:"source_bonus"`
}

type PrivacyRules struct {
	Patterns       []string `yaml:"patterns"`
	EmailPattern   string   `yaml:"email_pattern"`
	PhonePattern   string   `yaml:"phone_pattern"`
	PatternPenalty float64  `yaml:"pattern_penalty"`
	EmailPenalty   float64  `yaml:"email_penalty"`
	PhonePenalty   float64  `yaml:"phone_penalty"`
}

type HarmfulRules struct {
	Patterns      map[string][]string `yaml:"patterns"`
	Educational   []string            `yaml:"educational"`
	ContextWindow int                 `yaml:"context_window"`
	Penalty       float64             `yaml:"penalty"`
}

type AccuracyRules struct {
	Base             float64  `yaml:"base"`
	SourceWords      []string `yaml:"source_words"`
	URLPattern       string   `yaml:"url_pattern"`
	DatePattern      string   `yaml:"date_pattern"`
	NumberPattern    string   `yaml:"number_pattern"`
	Uncertainty      []string `yaml:"uncertainty"`
	SourceBonus      float64  `yaml:"source_bonus"`
	URLBonus         float64  `yaml:"url_bonus"`
	DateBonus        float64  `yaml:"date_bonus"`
	NumberBonus      float64  `yaml:"number_bonus"`
	MinNumbers       int      `yaml:"min_numbers"`
	UncertaintyBonus float64  `yaml:"uncertainty_bonus"`
}

type ExplainabilityRules struct {
	Base           float64  `yaml:"base"`
	Structure      []string `yaml:"structure"`
	MinStructure   int      `yaml:"min_structure"`
	TopicWords     []string `yaml:"topic_words"`
	StructureBonus float64  `yaml:"structure_bonus"`
	ModeBonus      float64  `yaml:"mode_bonus"`
	KeywordsBonus  float64  `yaml:"keywords_bonus"`
	TopicBonus     float64  `yaml:"topic_bonus"`
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
			panic(fmt.Sprintf("ethics: embedded rules.yaml: %v", err))
		}
		defaultRules = r
	})
	return defaultRules
}

// ParseRules decodes and validates a rules table. Weights must cover every
// dimension and sum to 1.
func ParseRules(data []byte) (Rules, error) {
	r := Rules{Threshold: 70}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parsing ethics rules: %w", err)
	}
	var sum float64
	for _, d := range Dimensions() {
		w, ok := r.Weights[d]
		if !ok {
			return Rules{}, fmt.Errorf("ethics rules: missing weight for %s", d)
		}
		sum += w
		if r.Recommendations[d] == "" {
			return Rules{}, fmt.Errorf("ethics rules: missing recommendation for %s", d)
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		return Rules{}, fmt.Errorf("ethics rules: weights sum to %.4f, want 1", sum)
	}
	return r, nil
}
