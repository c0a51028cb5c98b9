// Package extract selects the main content of an HTML page by scoring
// candidate containers on text length, structure, link density and
// class/id hints after boilerplate has been stripped.
package extract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrExtractionEmpty reports that no candidate cleared the score floor.
// It is not fatal: callers fall back to page metadata.
var ErrExtractionEmpty = errors.New("extraction produced no content")

// Candidate is a scored fragment of a parsed document.
type Candidate struct {
	Text     string
	Score    float64
	Selector string

	rawLen int
}

// Empty reports whether c carries no text.
func (c Candidate) Empty() bool {
	return strings.TrimSpace(c.Text) == ""
}

// Extractor scores candidate containers according to a Rules table.
type Extractor struct {
	rules     Rules
	noiseText []*regexp.Regexp
}

// New builds an Extractor from rules, compiling its text patterns.
func New(rules Rules) (*Extractor, error) {
	e := &Extractor{rules: rules}
	for _, p := range rules.NoiseTextPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compiling noise pattern %q: %w", p, err)
		}
		e.noiseText = append(e.noiseText, re)
	}
	return e, nil
}

// Default returns an Extractor over the embedded rules.
func Default() *Extractor {
	e, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return e
}

// Rules returns the tables this extractor was built with.
func (e *Extractor) Rules() Rules {
	return e.rules
}

// Extract returns the best main-content candidate of rawHTML. When nothing
// clears the floor it returns a zero Candidate; it never fails.
func (e *Extractor) Extract(rawHTML string) Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Candidate{}
	}

	// Noise must go before scoring so it cannot inflate candidate length.
	for _, sel := range e.rules.NoiseSelectors {
		doc.Find(sel).Remove()
	}

	seen := make(map[*html.Node]bool)
	best := e.bestOf(doc, e.rules.ContentSelectors, seen)
	if best.Score <= e.rules.MinScore {
		if fb := e.bestOf(doc, e.rules.FallbackSelectors, seen); better(fb, best) {
			best = fb
		}
	}

	if best.Score <= e.rules.MinScore || best.Empty() {
		return Candidate{}
	}
	return best
}

func (e *Extractor) bestOf(doc *goquery.Document, selectors []string, seen map[*html.Node]bool) Candidate {
	var best Candidate
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			node := s.Get(0)
			if seen[node] {
				return
			}
			seen[node] = true

			c := e.score(s)
			c.Selector = sel
			if better(c, best) {
				best = c
			}
		})
	}
	return best
}

// better orders candidates by score, then by raw text length.
func better(a, b Candidate) bool {
	if a.Empty() {
		return false
	}
	if b.Empty() {
		return true
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.rawLen > b.rawLen
}

func (e *Extractor) score(s *goquery.Selection) Candidate {
	raw := collapseSpace(s.Text())
	rawLen := utf8.RuneCountInString(raw)
	if rawLen == 0 {
		return Candidate{}
	}
	w := e.rules.Weights

	lengthTerm := math.Min(float64(rawLen)/w.LengthDivisor, w.LengthCap)

	structural := s.Find(e.rules.StructuralSelector).Length()
	structuralTerm := math.Min(float64(structural)/w.StructureDivisor, w.StructureCap)

	anchorLen := 0
	s.Find("a").Each(func(_ int, a *goquery.Selection) {
		anchorLen += utf8.RuneCountInString(collapseSpace(a.Text()))
	})
	linkTerm := w.LinkDensity * float64(anchorLen) / float64(rawLen)

	hintTerm := 0.0
	if class, ok := s.Attr("class"); ok && containsAny(strings.ToLower(class), e.rules.ClassHints) {
		hintTerm += w.ClassHint
	}
	if id, ok := s.Attr("id"); ok && containsAny(strings.ToLower(id), e.rules.IDHints) {
		hintTerm += w.IDHint
	}

	return Candidate{
		Text:   e.cleanText(s),
		Score:  lengthTerm + structuralTerm - linkTerm + hintTerm,
		rawLen: rawLen,
	}
}

// cleanText renders s with one line per block element, dropping noise lines
// and duplicates.
func (e *Extractor) cleanText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		renderText(n, &b)
	}

	seen := make(map[string]bool)
	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = collapseSpace(line)
		if utf8.RuneCountInString(line) < max(e.rules.MinLineLength, 1) {
			continue
		}
		if e.isNoiseLine(line) || seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n\n")
}

func (e *Extractor) isNoiseLine(line string) bool {
	for _, re := range e.noiseText {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

var blockTags = map[string]bool{
	"address": true, "article": true, "blockquote": true, "dd": true, "div": true,
	"dl": true, "dt": true, "figcaption": true, "figure": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "li": true, "main": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

func renderText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
	}
	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(c, b)
	}
	if block {
		b.WriteByte('\n')
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}
