package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Metadata is the minimal page description used when density scoring finds
// no main content.
type Metadata struct {
	Title       string
	Description string
}

// Text joins title and description into fallback source text.
func (m Metadata) Text() string {
	parts := make([]string, 0, 2)
	if m.Title != "" {
		parts = append(parts, m.Title)
	}
	if m.Description != "" {
		parts = append(parts, m.Description)
	}
	return strings.Join(parts, "\n\n")
}

// ReadMetadata pulls the title and description from rawHTML. Explicit
// <title>/<meta> tags win; readability fills whatever they leave empty.
func ReadMetadata(rawHTML, pageURL string) Metadata {
	var m Metadata

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML)); err == nil {
		m.Title = firstNonEmpty(
			doc.Find(`meta[property="og:title"]`).AttrOr("content", ""),
			doc.Find("title").First().Text(),
			doc.Find("h1").First().Text(),
		)
		m.Description = firstNonEmpty(
			doc.Find(`meta[name="description"]`).AttrOr("content", ""),
			doc.Find(`meta[property="og:description"]`).AttrOr("content", ""),
		)
	}

	if m.Title != "" && m.Description != "" {
		return m
	}

	parsed, _ := url.Parse(pageURL)
	if parsed == nil {
		parsed = &url.URL{}
	}
	art, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		return m
	}
	if m.Title == "" {
		m.Title = collapseSpace(art.Title)
	}
	if m.Description == "" {
		m.Description = collapseSpace(art.Excerpt)
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = collapseSpace(v); v != "" {
			return v
		}
	}
	return ""
}
