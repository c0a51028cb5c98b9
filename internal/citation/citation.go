// Package citation extracts the URLs an article cites and scores their
// validity, source credibility, citation format and completeness.
package citation

import (
	"errors"
	"fmt"
	"html"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/lexicon"
)

// ErrEmptyArticle is returned for an article with neither title nor body.
var ErrEmptyArticle = errors.New("article has no content to evaluate")

// Tier is the credibility class of a cited host.
type Tier string

const (
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
	TierUnknown Tier = "unknown"
)

// Format is a recognised citation style.
type Format string

const (
	FormatAPA     Format = "apa"
	FormatMLA     Format = "mla"
	FormatChicago Format = "chicago"
	FormatURL     Format = "url"
)

var scholarlyFormats = []Format{FormatAPA, FormatMLA, FormatChicago}

// Report is the outcome of a citation evaluation.
type Report struct {
	Score              float64           `json:"score"`
	URLs               []string          `json:"urls"`
	Validity           map[string]bool   `json:"validity"`
	Tiers              map[string]Tier   `json:"tiers"`
	Domains            map[string]string `json:"domains"`
	ValidCount         int               `json:"valid_count"`
	AverageCredibility float64           `json:"average_credibility"`
	Formats            []Format          `json:"formats"`
	Keywords           []string          `json:"keywords"`
	CompletenessScore  float64           `json:"completeness_score"`
	Recommendations    []string          `json:"recommendations"`
	RulesVersion       string            `json:"rules_version"`
}

// Signals are the inputs of the composite score.
type Signals struct {
	URLCount           int
	ValidCount         int
	AverageCredibility float64
	HasFormat          bool
	Completeness       float64
}

// Score combines signals into a value in [0, 100].
func (w Weights) Score(sig Signals) float64 {
	capN := w.URLCap
	if capN <= 0 {
		capN = 3
	}
	score := w.URLPresence * float64(min(sig.URLCount, capN)) / float64(capN)
	score += w.Validity * float64(sig.ValidCount) / float64(max(sig.URLCount, 1))
	score += w.Credibility * sig.AverageCredibility / 100
	if sig.HasFormat {
		score += w.Format
	}
	score += w.Completeness * sig.Completeness / 100
	return math.Round(math.Max(0, math.Min(100, score))*100) / 100
}

var (
	absoluteURLRe = regexp.MustCompile("(?i)https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")
	wwwURLRe      = regexp.MustCompile("(?i)www\\.[^\\s<>\"{}|\\\\^`\\[\\]]+")
	hrefRe        = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)
)

const trailingPunct = ".,;:!?)'\""

type tierPattern struct {
	tier Tier
	re   *regexp.Regexp
}

// Scorer evaluates citations against a compiled rules table. It is safe
// for concurrent use.
type Scorer struct {
	rules   Rules
	tiers   []tierPattern
	formats map[Format][]*regexp.Regexp
}

// New compiles rules into a Scorer.
func New(rules Rules) (*Scorer, error) {
	s := &Scorer{rules: rules, formats: make(map[Format][]*regexp.Regexp)}
	for _, tier := range []Tier{TierHigh, TierMedium, TierLow} {
		for _, p := range rules.Tiers[tier] {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("citation rules: tier %s pattern %q: %w", tier, p, err)
			}
			s.tiers = append(s.tiers, tierPattern{tier: tier, re: re})
		}
	}
	for _, f := range scholarlyFormats {
		for _, p := range rules.Formats[f] {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("citation rules: format %s pattern %q: %w", f, p, err)
			}
			s.formats[f] = append(s.formats[f], re)
		}
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
			panic(fmt.Sprintf("citation: %v", err))
		}
		defaultScorer = s
	})
	return defaultScorer
}

// Evaluate scores the citations in a. The article is read only.
func (s *Scorer) Evaluate(a article.Article) (Report, error) {
	if a.IsEmpty() {
		return Report{}, ErrEmptyArticle
	}

	found := extractURLs(a.BodyHTML)
	r := Report{
		URLs:         make([]string, 0, len(found)),
		Validity:     make(map[string]bool, len(found)),
		Tiers:        make(map[string]Tier, len(found)),
		Domains:      make(map[string]string, len(found)),
		RulesVersion: s.rules.Version,
	}

	var points float64
	for _, f := range found {
		host, ok := validHost(f.url)
		r.URLs = append(r.URLs, f.url)
		r.Validity[f.url] = ok
		tier := TierUnknown
		if ok {
			r.ValidCount++
			tier = s.tierOf(host)
			r.Domains[f.url] = registrableDomain(host)
		}
		r.Tiers[f.url] = tier
		points += s.rules.Points[tier]
	}
	if n := len(found); n > 0 {
		maxPoints := s.rules.Points[TierHigh]
		r.AverageCredibility = math.Round(points/(maxPoints*float64(n))*100*100) / 100
	}

	text := a.Title + " " + article.PlainText(a.BodyHTML)
	scholarly := false
	for _, f := range scholarlyFormats {
		for _, re := range s.formats[f] {
			if re.MatchString(text) {
				r.Formats = append(r.Formats, f)
				scholarly = true
				break
			}
		}
	}
	// url is informational and earns no format points.
	if len(found) > 0 {
		r.Formats = append(r.Formats, FormatURL)
	}

	lowerText := strings.ToLower(text)
	r.Keywords = lexicon.Found(lowerText, s.rules.Keywords)

	completeness := 0
	if len(found) > 0 {
		completeness++
	}
	if scholarly {
		completeness++
	}
	if len(r.Keywords) > 0 {
		completeness++
	}
	if s.urlNearKeyword(a.BodyHTML, found) {
		completeness++
	}
	r.CompletenessScore = float64(completeness) * 25

	r.Score = s.rules.Weights.Score(Signals{
		URLCount:           len(found),
		ValidCount:         r.ValidCount,
		AverageCredibility: r.AverageCredibility,
		HasFormat:          scholarly,
		Completeness:       r.CompletenessScore,
	})
	r.Recommendations = s.recommend(r, scholarly)
	return r, nil
}

func (s *Scorer) recommend(r Report, scholarly bool) []string {
	msgs := s.rules.Recommendations
	var out []string
	if len(r.URLs) == 0 {
		out = append(out, msgs.NoURLs)
	}
	if invalid := len(r.URLs) - r.ValidCount; invalid > 0 {
		out = append(out, fmt.Sprintf(msgs.InvalidURLs, invalid))
	}
	if r.AverageCredibility < s.rules.LowCredibility {
		out = append(out, msgs.LowCredibility)
	}
	if !scholarly {
		out = append(out, msgs.NoFormat)
	}
	if r.CompletenessScore < 100 {
		out = append(out, msgs.Incomplete)
	}
	return out
}

func (s *Scorer) tierOf(host string) Tier {
	host = strings.ToLower(host)
	for _, tp := range s.tiers {
		if tp.re.MatchString(host) {
			return tp.tier
		}
	}
	return TierUnknown
}

// urlNearKeyword reports whether any cited URL sits within the adjacency
// window of a citation keyword in the body markup. Keyword hits inside a
// cited URL or inside a tag do not count.
func (s *Scorer) urlNearKeyword(body string, found []foundURL) bool {
	if len(found) == 0 {
		return false
	}
	lower := strings.ToLower(body)
	if len(lower) != len(body) {
		lower = body
	}
	for _, kw := range s.rules.Keywords {
		kw = strings.ToLower(kw)
		for _, k := range lexicon.IndexAll(lower, kw) {
			kEnd := k + len(kw)
			if insideTag(body, k) || insideURL(found, k, kEnd) {
				continue
			}
			for _, f := range found {
				if gap(body, k, kEnd, f.start, f.end) <= s.rules.AdjacencyWindow {
					return true
				}
			}
		}
	}
	return false
}

func insideTag(body string, pos int) bool {
	return strings.LastIndexByte(body[:pos], '<') > strings.LastIndexByte(body[:pos], '>')
}

func insideURL(found []foundURL, start, end int) bool {
	for _, f := range found {
		if start < f.end && end > f.start {
			return true
		}
	}
	return false
}

// gap is the number of runes between two byte ranges of s; 0 if they overlap.
func gap(s string, aStart, aEnd, bStart, bEnd int) int {
	switch {
	case aEnd <= bStart:
		return utf8.RuneCountInString(s[aEnd:bStart])
	case bEnd <= aStart:
		return utf8.RuneCountInString(s[bEnd:aStart])
	}
	return 0
}

type foundURL struct {
	url        string
	start, end int
}

// extractURLs collects absolute, www. and href URLs from body in document
// order, trimmed of trailing punctuation and deduplicated.
func extractURLs(body string) []foundURL {
	var all []foundURL
	for _, loc := range absoluteURLRe.FindAllStringIndex(body, -1) {
		all = append(all, foundURL{url: body[loc[0]:loc[1]], start: loc[0], end: loc[1]})
	}
	for _, loc := range wwwURLRe.FindAllStringIndex(body, -1) {
		if loc[0] >= 2 && body[loc[0]-2:loc[0]] == "//" {
			continue
		}
		all = append(all, foundURL{url: "http://" + body[loc[0]:loc[1]], start: loc[0], end: loc[1]})
	}
	for _, m := range hrefRe.FindAllStringSubmatchIndex(body, -1) {
		v := strings.TrimSpace(body[m[2]:m[3]])
		lv := strings.ToLower(v)
		if v == "" || strings.HasPrefix(v, "#") || strings.HasPrefix(lv, "javascript:") || strings.HasPrefix(lv, "mailto:") {
			continue
		}
		all = append(all, foundURL{url: v, start: m[2], end: m[3]})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].start < all[j].start })

	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, f := range all {
		f.url = strings.TrimRight(html.UnescapeString(f.url), trailingPunct)
		if f.url == "" || seen[f.url] {
			continue
		}
		seen[f.url] = true
		out = append(out, f)
	}
	return out
}

func validHost(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := u.Hostname()
	return host, host != ""
}

func registrableDomain(host string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(host))
	if err != nil {
		return strings.ToLower(host)
	}
	return d
}
