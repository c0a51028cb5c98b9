// Package ethics scores an article on seven Responsible-AI dimensions and
// combines them into a weighted overall score with recommendations.
package ethics

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/lexicon"
)

// ErrEmptyArticle is returned for an article with neither title nor body.
var ErrEmptyArticle = errors.New("article has no content to evaluate")

// Dimension is one axis of the ethics evaluation.
type Dimension string

const (
	Bias           Dimension = "bias"
	Fairness       Dimension = "fairness"
	Transparency   Dimension = "transparency"
	Privacy        Dimension = "privacy"
	HarmfulContent Dimension = "harmful_content"
	Accuracy       Dimension = "accuracy"
	Explainability Dimension = "explainability"
)

// Dimensions lists every dimension in recommendation order.
func Dimensions() []Dimension {
	return []Dimension{Bias, Fairness, Transparency, Privacy, HarmfulContent, Accuracy, Explainability}
}

// Report is the outcome of an evaluation.
type Report struct {
	OverallScore    float64               `json:"overall_score"`
	Scores          map[Dimension]float64 `json:"scores"`
	Recommendations []string              `json:"recommendations"`
	RulesVersion    string                `json:"rules_version"`
}

// Scorer evaluates articles against a compiled rules table. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	rules Rules

	privacy []*regexp.Regexp
	email   *regexp.Regexp
	phone   *regexp.Regexp
	harmful []*regexp.Regexp
	url     *regexp.Regexp
	date    *regexp.Regexp
	number  *regexp.Regexp
}

// New compiles rules into a Scorer.
func New(rules Rules) (*Scorer, error) {
	s := &Scorer{rules: rules}
	var err error
	compile := func(pattern string) *regexp.Regexp {
		if err != nil || pattern == "" {
			return nil
		}
		var re *regexp.Regexp
		re, err = regexp.Compile("(?i)" + pattern)
		if err != nil {
			err = fmt.Errorf("compiling %q: %w", pattern, err)
		}
		return re
	}

	for _, p := range rules.Privacy.Patterns {
		s.privacy = append(s.privacy, compile(p))
	}
	s.email = compile(rules.Privacy.EmailPattern)
	s.phone = compile(rules.Privacy.PhonePattern)
	for _, group := range rules.Harmful.Patterns {
		for _, p := range group {
			s.harmful = append(s.harmful, compile(p))
		}
	}
	s.url = compile(rules.Accuracy.URLPattern)
	s.date = compile(rules.Accuracy.DatePattern)
	s.number = compile(rules.Accuracy.NumberPattern)
	if err != nil {
		return nil, fmt.Errorf("ethics rules: %w", err)
	}
	return s, nil
}

var (
	defaultScorer     *Scorer
	defaultScorerOnce sync.Once
)

// Default returns a Scorer over the embedded rules.
func Default() *Scorer {
	defaultScorerOnce.Do(func() {
		s, err := New(DefaultRules())
		if err != nil {
			panic(fmt.Sprintf("ethics: %v", err))
		}
		defaultScorer = s
	})
	return defaultScorer
}

// Rules returns the tables the scorer was built from.
func (s *Scorer) Rules() Rules { return s.rules }

// Evaluate scores a. The article is read only.
func (s *Scorer) Evaluate(a article.Article) (Report, error) {
	if a.IsEmpty() {
		return Report{}, ErrEmptyArticle
	}

	text := strings.TrimSpace(a.Title + " " + article.PlainText(a.BodyHTML))
	lower := strings.ToLower(text)
	markup := strings.ToLower(a.Title + " " + a.BodyHTML)

	scores := map[Dimension]float64{
		Bias:           clamp(s.bias(lower)),
		Fairness:       clamp(s.fairness(lower)),
		Transparency:   clamp(s.transparency(markup, a)),
		Privacy:        clamp(s.privacyScore(text)),
		HarmfulContent: clamp(s.harmfulScore(text)),
		Accuracy:       clamp(s.accuracy(text, lower)),
		Explainability: clamp(s.explainability(markup, a)),
	}

	var overall float64
	var recs []string
	for _, d := range Dimensions() {
		overall += s.rules.Weights[d] * scores[d]
		if scores[d] < s.rules.Threshold {
			recs = append(recs, s.rules.Recommendations[d])
		}
	}

	return Report{
		OverallScore:    overall,
		Scores:          scores,
		Recommendations: recs,
		RulesVersion:    s.rules.Version,
	}, nil
}

func (s *Scorer) bias(lower string) float64 {
	r := s.rules.Bias
	score := 100.0
	for _, group := range r.Keywords {
		for _, kw := range group {
			kw = strings.ToLower(kw)
			idx := lexicon.Index(lower, kw)
			if idx < 0 {
				continue
			}
			ctx := window(lower, idx, len(kw), r.ContextWindow)
			if lexicon.Count(ctx, r.NegativeWords) > 0 {
				score -= r.Penalty
			}
		}
	}

	male := lexicon.Count(lower, r.MaleTerms)
	female := lexicon.Count(lower, r.FemaleTerms)
	if !balanced(male, female, r.BalanceRatio) {
		score -= r.ImbalancePenalty
	}
	return score
}

func balanced(male, female int, ratio float64) bool {
	if male == 0 && female == 0 {
		return true
	}
	if male == 0 || female == 0 {
		return false
	}
	return float64(min(male, female))/float64(max(male, female)) > ratio
}

func (s *Scorer) fairness(lower string) float64 {
	r := s.rules.Fairness
	score := 100.0
	if lexicon.Count(lower, r.Exclusive) > 2*lexicon.Count(lower, r.Inclusive) {
		score -= r.ExclusivePenalty
	}
	if lexicon.Count(lower, r.Contrast) > 0 {
		score += r.ContrastBonus
	}
	return score
}

func (s *Scorer) transparency(markup string, a article.Article) float64 {
	r := s.rules.Transparency
	score := r.Base
	if lexicon.Count(markup, r.Disclosure) > 0 {
		score += r.DisclosureBonus
	}
	if a.Mode.Valid() {
		score += r.ModeBonus
	}
	if !a.GeneratedAt.IsZero() {
		score += r.TimestampBonus
	}
	if lexicon.Count(markup, r.SourceWords) > 0 {
		score += r.SourceBonus
	}
	return score
}

func (s *Scorer) privacyScore(text string) float64 {
	r := s.rules.Privacy
	score := 100.0
	for _, re := range s.privacy {
		score -= r.PatternPenalty * float64(matches(re, text))
	}
	score -= r.EmailPenalty * float64(matches(s.email, text))
	score -= r.PhonePenalty * float64(matches(s.phone, text))
	return score
}

func (s *Scorer) harmfulScore(text string) float64 {
	r := s.rules.Harmful
	lower := strings.ToLower(text)
	score := 100.0
	for _, re := range s.harmful {
		if re == nil {
			continue
		}
		for _, loc := range re.FindAllStringIndex(lower, -1) {
			ctx := window(lower, loc[0], loc[1]-loc[0], r.ContextWindow)
			if lexicon.Count(ctx, r.Educational) == 0 {
				score -= r.Penalty
			}
		}
	}
	return score
}

func (s *Scorer) accuracy(text, lower string) float64 {
	r := s.rules.Accuracy
	score := r.Base
	if lexicon.Count(lower, r.SourceWords) > 0 {
		score += r.SourceBonus
	}
	if matches(s.url, text) > 0 {
		score += r.URLBonus
	}
	if matches(s.date, text) > 0 {
		score += r.DateBonus
	}
	if matches(s.number, text) >= r.MinNumbers {
		score += r.NumberBonus
	}
	if lexicon.Count(lower, r.Uncertainty) > 0 {
		score += r.UncertaintyBonus
	}
	return score
}

func (s *Scorer) explainability(markup string, a article.Article) float64 {
	r := s.rules.Explainability
	score := r.Base
	if lexicon.Count(markup, r.Structure) >= r.MinStructure {
		score += r.StructureBonus
	}
	if a.Mode.Valid() {
		score += r.ModeBonus
	}
	if len(a.Keywords) > 0 {
		score += r.KeywordsBonus
	}
	if lexicon.Count(markup, r.TopicWords) > 0 {
		score += r.TopicBonus
	}
	return score
}

func matches(re *regexp.Regexp, text string) int {
	if re == nil {
		return 0
	}
	return len(re.FindAllStringIndex(text, -1))
}

// window returns up to n runes either side of the match at byte offset idx.
func window(s string, idx, length, n int) string {
	start := idx
	for i := 0; i < n && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:start])
		start -= size
	}
	end := idx + length
	for i := 0; i < n && end < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return s[start:end]
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
