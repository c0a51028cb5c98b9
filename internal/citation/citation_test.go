package citation

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/TobiSchelling/articleforge/internal/article"
)

func evaluate(t *testing.T, body string) Report {
	t.Helper()
	r, err := Default().Evaluate(article.Article{Title: "t", BodyHTML: body})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return r
}

func TestGovAndUnparseableURL(t *testing.T) {
	r := evaluate(t, `<p>See https://www.cdc.gov/flu for data and <a href="ht!tp:/bad">this</a>.</p>`)

	if len(r.URLs) != 2 {
		t.Fatalf("URLs = %v, want 2", r.URLs)
	}
	if r.ValidCount != 1 {
		t.Errorf("ValidCount = %d, want 1", r.ValidCount)
	}
	gov := "https://www.cdc.gov/flu"
	if !r.Validity[gov] || r.Validity["ht!tp:/bad"] {
		t.Errorf("Validity = %v", r.Validity)
	}
	if r.Tiers[gov] != TierHigh {
		t.Errorf("tier = %q, want high", r.Tiers[gov])
	}
	if r.Domains[gov] != "cdc.gov" {
		t.Errorf("domain = %q", r.Domains[gov])
	}
	if math.Abs(r.AverageCredibility-66.67) > 0.01 {
		t.Errorf("AverageCredibility = %v", r.AverageCredibility)
	}
	if math.Abs(r.Score-50.42) > 0.05 {
		t.Errorf("Score = %v, want ~50.42", r.Score)
	}

	rules := DefaultRules().Recommendations
	want := []string{"유효하지 않은 URL 1개를 수정하세요.", rules.NoFormat, rules.Incomplete}
	if !reflect.DeepEqual(r.Recommendations, want) {
		t.Errorf("Recommendations = %v, want %v", r.Recommendations, want)
	}
}

func TestWellCitedArticle(t *testing.T) {
	body := `<p>According to research (Smith, 2020), see <a href="https://www.nature.com/articles/x">출처</a>.</p>`
	r := evaluate(t, body)

	if len(r.URLs) != 1 {
		t.Fatalf("URLs = %v, want 1", r.URLs)
	}
	if !reflect.DeepEqual(r.Formats, []Format{FormatAPA, FormatURL}) {
		t.Errorf("Formats = %v", r.Formats)
	}
	if r.CompletenessScore != 100 {
		t.Errorf("CompletenessScore = %v", r.CompletenessScore)
	}
	if r.AverageCredibility != 100 {
		t.Errorf("AverageCredibility = %v", r.AverageCredibility)
	}
	if r.Score != 80 {
		t.Errorf("Score = %v, want 80", r.Score)
	}
	if len(r.Recommendations) != 0 {
		t.Errorf("Recommendations = %v", r.Recommendations)
	}
}

func TestBareURLEarnsNoFormatPoints(t *testing.T) {
	r := evaluate(t, "<p>See https://example.com/a today.</p>")

	if !reflect.DeepEqual(r.Formats, []Format{FormatURL}) {
		t.Errorf("Formats = %v", r.Formats)
	}
	if r.CompletenessScore != 25 {
		t.Errorf("CompletenessScore = %v, want 25", r.CompletenessScore)
	}
	if math.Abs(r.Score-42.08) > 0.01 {
		t.Errorf("Score = %v, want ~42.08", r.Score)
	}
	rules := DefaultRules().Recommendations
	found := false
	for _, rec := range r.Recommendations {
		if rec == rules.NoFormat {
			found = true
		}
	}
	if !found {
		t.Errorf("expected format recommendation, got %v", r.Recommendations)
	}
}

func TestKeywordInsideURLOrTagIsNotAdjacent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		// url present, "source" found in the text
		{"keyword in url path", "<p>Read https://example.com/source/a today.</p>", 50},
		// url present only; attribute text is not prose
		{"keyword in attribute", `<p>Read <a href="https://example.com/a" title="link">here</a>.</p>`, 25},
		{"keyword in prose", `<p>Read the source: <a href="https://example.com/a">here</a>.</p>`, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evaluate(t, tt.body).CompletenessScore; got != tt.want {
				t.Errorf("CompletenessScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoURLs(t *testing.T) {
	r := evaluate(t, "<p>Plain prose without any links.</p>")
	if len(r.URLs) != 0 || r.Score != 0 {
		t.Errorf("URLs = %v, Score = %v", r.URLs, r.Score)
	}
	rules := DefaultRules().Recommendations
	want := []string{rules.NoURLs, rules.LowCredibility, rules.NoFormat, rules.Incomplete}
	if !reflect.DeepEqual(r.Recommendations, want) {
		t.Errorf("Recommendations = %v", r.Recommendations)
	}
}

func TestExtractURLsNormalizesAndDedupes(t *testing.T) {
	body := `<p>Visit www.example.org/a, or http://www.example.org/a. Also https://blog.example.xyz/post).</p>` +
		`<a href="#top">top</a><a href="mailto:a@b.c">mail</a><a href="https://a.com/?x=1&amp;y=2">q</a>`
	var got []string
	for _, f := range extractURLs(body) {
		got = append(got, f.url)
	}
	want := []string{"http://www.example.org/a", "https://blog.example.xyz/post", "https://a.com/?x=1&y=2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractURLs = %v, want %v", got, want)
	}
}

func TestTiers(t *testing.T) {
	s := Default()
	tests := map[string]Tier{
		"en.wikipedia.org": TierHigh,
		"www.snu.ac.kr":    TierHigh,
		"www.reuters.com":  TierMedium,
		"example.org":      TierMedium,
		"me.blogspot.com":  TierLow,
		"cheap.xyz":        TierLow,
		"example.com":      TierUnknown,
	}
	for host, want := range tests {
		if got := s.tierOf(host); got != want {
			t.Errorf("tierOf(%q) = %q, want %q", host, got, want)
		}
	}
}

func TestScoreBoundsAndMonotonicInValidCount(t *testing.T) {
	w := DefaultRules().Weights
	for n := 0; n <= 6; n++ {
		for _, cred := range []float64{0, 33.33, 50, 100} {
			for _, format := range []bool{false, true} {
				for _, comp := range []float64{0, 25, 50, 75, 100} {
					prev := -1.0
					for valid := 0; valid <= n; valid++ {
						s := w.Score(Signals{URLCount: n, ValidCount: valid, AverageCredibility: cred, HasFormat: format, Completeness: comp})
						if s < 0 || s > 100 {
							t.Fatalf("score %v out of range", s)
						}
						if s < prev {
							t.Fatalf("score decreased from %v to %v at valid=%d n=%d", prev, s, valid, n)
						}
						prev = s
					}
				}
			}
		}
	}
}

func TestEvaluateEmptyArticle(t *testing.T) {
	if _, err := Default().Evaluate(article.Article{}); !errors.Is(err, ErrEmptyArticle) {
		t.Errorf("err = %v", err)
	}
}

func TestParseRulesRejectsBadWeights(t *testing.T) {
	data := strings.Replace(string(defaultRulesYAML), "url_presence: 30", "url_presence: 40", 1)
	if _, err := ParseRules([]byte(data)); err == nil {
		t.Error("expected error for weights not summing to 100")
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	rules := DefaultRules()
	rules.Tiers = map[Tier][]string{TierHigh: {"("}}
	if _, err := New(rules); err == nil {
		t.Error("expected compile error")
	}
}

func TestParseRulesRejectsMissingRecommendation(t *testing.T) {
	data := strings.Replace(string(defaultRulesYAML), "  no_format: ", "  unused: ", 1)
	if _, err := ParseRules([]byte(data)); err == nil {
		t.Error("expected error for missing recommendation text")
	}
}
