package seo

import (
	"reflect"
	"strings"
	"testing"
)

func TestScoreSignals(t *testing.T) {
	body := `<h1>Go</h1><h2>Channels</h2><h3>Select</h3>` +
		`<p>go channels go select go</p><a href="https://go.dev">docs</a><img src="x.png">` +
		`<meta name="description" content="x"><script type="application/ld+json">{}</script>`
	r := Score(body, []string{"go"})

	if r.Headings != 15 || r.Links != 10 || r.Images != 10 || r.Meta != 10 || r.StructuredData != 15 {
		t.Errorf("signals = %+v", r)
	}
	if r.Length != 5 {
		t.Errorf("Length = %v, want 5", r.Length)
	}
	if r.Density != 20 {
		t.Errorf("Density = %v, want capped 20", r.Density)
	}
	if r.Score != 85 {
		t.Errorf("Score = %v, want 85", r.Score)
	}
}

func TestScoreBareText(t *testing.T) {
	r := Score("<p>"+strings.Repeat("word ", 500)+"</p>", nil)
	if r.Score != 20 || r.Length != 20 {
		t.Errorf("Score = %v Length = %v", r.Score, r.Length)
	}
	if len(r.Suggestions) != 3 {
		t.Errorf("Suggestions = %v", r.Suggestions)
	}
}

func TestScoreEmpty(t *testing.T) {
	r := Score("", []string{"x"})
	if r.Score != 5 {
		t.Errorf("Score = %v, want 5", r.Score)
	}
}

func TestExtractKeywords(t *testing.T) {
	text := "Kubernetes schedules pods. Kubernetes restarts pods. The scheduler places pods on nodes."
	got := ExtractKeywords(text, 2, nil)
	if want := []string{"pods", "kubernetes"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractKeywords = %v, want %v", got, want)
	}
}

func TestExtractKeywordsKorean(t *testing.T) {
	text := "인공지능은 블로그를 바꾼다. 인공지능의 미래와 블로그의 역할."
	got := ExtractKeywords(text, 2, nil)
	if want := []string{"인공지능", "블로그"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractKeywords = %v, want %v", got, want)
	}
}

func TestExtractKeywordsFallsBackToDefaults(t *testing.T) {
	defaults := []string{"AI", "블로그", "콘텐츠"}
	got := ExtractKeywords("a 1 2 the", 5, defaults)
	if !reflect.DeepEqual(got, defaults) {
		t.Errorf("ExtractKeywords = %v", got)
	}
}

func TestParseKeywords(t *testing.T) {
	got := ParseKeywords(" go, ,rust ,")
	if want := []string{"go", "rust"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ParseKeywords = %v", got)
	}
}
