package extract

import (
	"fmt"
	"strings"
	"testing"
)

func articlePage(bodyChars int, navLinks int) string {
	var nav strings.Builder
	nav.WriteString("<nav>")
	for i := 0; i < navLinks; i++ {
		fmt.Fprintf(&nav, `<a href="/section/%d">Section %d</a>`, i, i)
	}
	nav.WriteString("</nav>")

	sentence := "Go makes concurrent programs easy to reason about. "
	var paras strings.Builder
	for paras.Len() < bodyChars {
		fmt.Fprintf(&paras, "<p>%s%s</p>", sentence, sentence)
	}

	return fmt.Sprintf(`<html><head><title>Go Concurrency</title></head><body>
%s
<article><h1>Go Concurrency</h1>%s</article>
<footer>Copyright</footer>
</body></html>`, nav.String(), paras.String())
}

func TestExtractSelectsArticleOverNav(t *testing.T) {
	e := Default()
	c := e.Extract(articlePage(2000, 50))

	if c.Empty() {
		t.Fatal("expected non-empty candidate")
	}
	if c.Selector != "article" {
		t.Errorf("expected article selector, got %q", c.Selector)
	}
	if strings.Contains(c.Text, "Section 1") {
		t.Error("nav text leaked into candidate")
	}
	if !strings.Contains(c.Text, "Go makes concurrent programs") {
		t.Error("article body missing from candidate")
	}
	if c.Score <= e.Rules().MinScore {
		t.Errorf("score %.2f not above floor", c.Score)
	}
}

func TestExtractNoiseOnlyPage(t *testing.T) {
	page := `<html><body>
<nav><a href="/a">Home</a><a href="/b">About</a></nav>
<script>var x = "lots of script text that should never be counted as content";</script>
<footer><p>Footer links and legal text</p></footer>
</body></html>`

	c := Default().Extract(page)
	if !c.Empty() {
		t.Errorf("expected empty text, got %q", c.Text)
	}
	if c.Score != 0 {
		t.Errorf("expected score 0, got %.2f", c.Score)
	}
}

func TestExtractMalformedInputDoesNotPanic(t *testing.T) {
	for _, in := range []string{"", "<<<>>>", "<div><p>unterminated", "plain text only"} {
		_ = Default().Extract(in)
	}
}

func TestLinkDensityPenalty(t *testing.T) {
	links := strings.Repeat(`<a href="/x">navigation link text</a> `, 40)
	page := fmt.Sprintf(`<html><body>
<div class="links">%s</div>
<div class="story">%s</div>
</body></html>`, links, strings.Repeat("<p>Plain prose paragraph with useful information inside.</p>", 20))

	c := Default().Extract(page)
	if strings.Contains(c.Text, "navigation link text") {
		t.Errorf("expected link-heavy block to lose, got %q", c.Text[:min(80, len(c.Text))])
	}
}

func TestClassHintBreaksTie(t *testing.T) {
	para := strings.Repeat("<p>Same length paragraph of text for both blocks here.</p>", 25)
	page := fmt.Sprintf(`<html><body>
<section class="teaser">%s</section>
<section class="post-content">%s<p>marker</p></section>
</body></html>`, para, para)

	c := Default().Extract(page)
	if c.Selector != ".post-content" {
		t.Errorf("expected .post-content, got %q", c.Selector)
	}
}

func TestCleanTextDropsNoiseLines(t *testing.T) {
	page := `<html><body><article>
<h2>Real heading</h2>
<p>Advertisement</p>
<p>First real paragraph with enough words to keep.</p>
<p>Read more</p>
<p>First real paragraph with enough words to keep.</p>
<p>` + strings.Repeat("More body text follows here. ", 60) + `</p>
</article></body></html>`

	c := Default().Extract(page)
	if strings.Contains(c.Text, "Advertisement") || strings.Contains(c.Text, "Read more") {
		t.Errorf("noise lines survived: %q", c.Text)
	}
	if strings.Count(c.Text, "First real paragraph") != 1 {
		t.Error("expected duplicate line to be removed")
	}
	if !strings.HasPrefix(c.Text, "Real heading\n\n") {
		t.Errorf("expected block structure to be preserved, got %q", c.Text[:min(40, len(c.Text))])
	}
}

func TestFallbackToBlockContainers(t *testing.T) {
	page := `<html><body><div id="wrapper"><div class="x">` +
		strings.Repeat("<p>Body text in a div without semantic markup at all.</p>", 30) +
		`</div></div></body></html>`

	c := Default().Extract(page)
	if c.Empty() {
		t.Fatal("expected fallback candidate")
	}
}

func TestParseRulesRejectsEmptyTables(t *testing.T) {
	if _, err := ParseRules([]byte("version: x\n")); err == nil {
		t.Error("expected error for rules without selectors")
	}
}

func TestCustomRules(t *testing.T) {
	rules := DefaultRules()
	rules.MinScore = 1000
	e, err := New(rules)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c := e.Extract(articlePage(2000, 0)); !c.Empty() {
		t.Error("expected nothing to clear an unreachable floor")
	}
}

func TestReadMetadata(t *testing.T) {
	page := `<html><head><title> Page Title </title>
<meta name="description" content="A short summary."></head><body></body></html>`
	m := ReadMetadata(page, "https://example.com/p")
	if m.Title != "Page Title" {
		t.Errorf("expected title, got %q", m.Title)
	}
	if m.Description != "A short summary." {
		t.Errorf("expected description, got %q", m.Description)
	}
	if m.Text() != "Page Title\n\nA short summary." {
		t.Errorf("unexpected fallback text %q", m.Text())
	}
}
