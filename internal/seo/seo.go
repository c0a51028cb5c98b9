// Package seo computes an on-page SEO score for generated article markup and
// picks keywords from source text when the caller supplies none.
package seo

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/TobiSchelling/articleforge/internal/article"
)

// Report breaks the score down by signal.
type Report struct {
	Score          float64  `json:"score"`
	Density        float64  `json:"density"`
	Length         float64  `json:"length"`
	Headings       float64  `json:"headings"`
	Links          float64  `json:"links"`
	Images         float64  `json:"images"`
	Meta           float64  `json:"meta"`
	StructuredData float64  `json:"structured_data"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

var (
	headingRe = regexp.MustCompile(`(?i)<h[1-6][^>]*>`)
	linkRe    = regexp.MustCompile(`(?i)<a\s+[^>]*href`)
	imageRe   = regexp.MustCompile(`(?i)<img`)
	metaRe    = regexp.MustCompile(`(?i)<meta`)
	ldJSONRe  = regexp.MustCompile(`(?i)<script[^>]*application/ld\+json`)
)

// Score rates body markup against the target keywords. The result is in
// [0, 100].
func Score(body string, keywords []string) Report {
	var r Report

	text := strings.ToLower(article.PlainText(body))
	if words := len(strings.Fields(text)); words > 0 {
		hits := 0
		for _, kw := range keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				hits += strings.Count(text, kw)
			}
		}
		r.Density = math.Min(20, float64(hits)/float64(words)*1000)
	}

	switch n := utf8.RuneCountInString(body); {
	case n >= 2000:
		r.Length = 20
	case n >= 1500:
		r.Length = 15
	case n >= 1000:
		r.Length = 10
	default:
		r.Length = 5
	}

	switch n := len(headingRe.FindAllStringIndex(body, -1)); {
	case n >= 3:
		r.Headings = 15
	case n == 2:
		r.Headings = 10
	case n == 1:
		r.Headings = 5
	}

	if linkRe.MatchString(body) {
		r.Links = 10
	}
	if imageRe.MatchString(body) {
		r.Images = 10
	}
	if metaRe.MatchString(body) {
		r.Meta = 10
	}
	if ldJSONRe.MatchString(body) {
		r.StructuredData = 15
	}

	total := r.Density + r.Length + r.Headings + r.Links + r.Images + r.Meta + r.StructuredData
	r.Score = math.Round(math.Min(100, total)*100) / 100
	r.Suggestions = suggestions(r, text, keywords)
	return r
}

func suggestions(r Report, text string, keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Count(text, kw) < 2 {
			out = append(out, "키워드 '"+kw+"'을 더 자주 사용하세요.")
		}
	}
	if r.Headings < 10 {
		out = append(out, "더 많은 헤딩 태그를 사용하여 구조를 개선하세요.")
	}
	if r.Links == 0 {
		out = append(out, "관련 링크를 추가하여 사용자 경험을 향상시키세요.")
	}
	if r.Images == 0 {
		out = append(out, "관련 이미지를 추가하여 시각적 매력을 높이세요.")
	}
	if r.Length < 20 {
		out = append(out, "콘텐츠를 더 길게 작성하여 상세한 정보를 제공하세요.")
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "can": true, "was": true, "one": true, "our": true,
	"has": true, "have": true, "had": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "will": true, "would": true, "there": true,
	"their": true, "what": true, "about": true, "which": true, "when": true,
	"your": true, "into": true, "more": true, "also": true, "than": true,
	"them": true, "been": true, "were": true, "its": true, "how": true,
	"these": true, "those": true, "other": true, "some": true, "such": true,
	"그리고": true, "하지만": true, "그러나": true, "또한": true, "이것은": true,
	"있는": true, "있다": true, "없는": true, "하는": true, "합니다": true,
	"있습니다": true, "그": true, "이": true, "저": true, "것": true, "수": true,
	"등": true, "및": true, "위해": true, "대한": true, "통해": true,
}

var particles = []string{"에서", "으로", "에게", "을", "를", "이", "가", "은", "는", "의", "에", "로", "와", "과", "도"}

// ExtractKeywords returns up to n of the most frequent content words in
// text, in descending frequency with ties broken by first appearance. When
// nothing qualifies it returns defaults.
func ExtractKeywords(text string, n int, defaults []string) []string {
	type stat struct {
		word  string
		count int
		first int
	}
	stats := make(map[string]*stat)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, tok := range tokens {
		tok = stripParticle(tok)
		if utf8.RuneCountInString(tok) < 2 || stopwords[tok] || isNumber(tok) {
			continue
		}
		if s, ok := stats[tok]; ok {
			s.count++
			continue
		}
		stats[tok] = &stat{word: tok, count: 1, first: i}
	}

	ranked := make([]*stat, 0, len(stats))
	for _, s := range stats {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})

	if len(ranked) == 0 || n <= 0 {
		return append([]string(nil), defaults...)
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, s := range ranked {
		out[i] = s.word
	}
	return out
}

func stripParticle(tok string) string {
	for _, p := range particles {
		if strings.HasSuffix(tok, p) {
			rest := strings.TrimSuffix(tok, p)
			if utf8.RuneCountInString(rest) >= 2 {
				return rest
			}
		}
	}
	return tok
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ParseKeywords splits a comma-separated keyword list.
func ParseKeywords(s string) []string {
	var out []string
	for _, kw := range strings.Split(s, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
