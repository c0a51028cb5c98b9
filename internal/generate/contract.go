package generate

import (
	"html"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/articleforge/internal/article"
)

// MaxMetaDescription is the longest meta description, in characters.
const MaxMetaDescription = 160

var (
	topHeadingRe = regexp.MustCompile(`(?i)<h[12][\s>]`)
	anyHeadingRe = regexp.MustCompile(`(?is)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
)

// Enforce makes a conform to the output contract: a title, a meta
// description of at most MaxMetaDescription characters, a body with a
// top-level heading, deduplicated keywords and an accurate word count.
func Enforce(a article.Article, in Input, now time.Time) article.Article {
	a = a.Clone()
	body := strings.TrimSpace(a.BodyHTML)

	a.Title = collapse(a.Title)
	if a.Title == "" {
		a.Title = deriveTitle(body, in)
	}
	if !topHeadingRe.MatchString(body) {
		body = "<h2>" + html.EscapeString(a.Title) + "</h2>\n" + body
	}
	a.BodyHTML = body

	meta := collapse(a.MetaDescription)
	if meta == "" {
		meta = collapse(leadParagraph(body))
	}
	if meta == "" {
		meta = a.Title
	}
	a.MetaDescription = TruncateRunes(meta, MaxMetaDescription)

	kw := a.Keywords
	if len(kw) == 0 {
		kw = strings.Split(in.Keywords, ",")
	}
	a.Keywords = dedupeKeywords(kw)

	a.WordCount = len(strings.Fields(article.PlainText(body)))
	a.Mode = in.Mode
	if a.GeneratedAt.IsZero() {
		a.GeneratedAt = now.UTC()
	}
	return a
}

// TruncateRunes shortens s to at most limit characters, cutting at a word
// boundary where one is near and marking the cut with "...".
func TruncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	r := []rune(s)[:limit-3]
	cut := len(r)
	for i := len(r) - 1; i > len(r)*2/3; i-- {
		if unicode.IsSpace(r[i]) {
			cut = i
			break
		}
	}
	out := strings.TrimRightFunc(string(r[:cut]), func(c rune) bool {
		return unicode.IsSpace(c) || unicode.IsPunct(c)
	})
	return out + "..."
}

func leadParagraph(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	var lead string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		lead = collapse(s.Text())
		return lead == ""
	})
	if lead != "" {
		return lead
	}
	doc.Find("h1, h2, h3, h4, h5, h6").Remove()
	return doc.Text()
}

func deriveTitle(body string, in Input) string {
	if m := anyHeadingRe.FindStringSubmatch(body); m != nil {
		if t := collapse(html.UnescapeString(tagRe.ReplaceAllString(m[1], " "))); t != "" {
			return t
		}
	}
	if words := strings.Fields(article.PlainText(body)); len(words) > 0 {
		if len(words) > 8 {
			words = words[:8]
		}
		return strings.Join(words, " ")
	}
	for _, kw := range strings.Split(in.Keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			return kw
		}
	}
	return "Untitled"
}

func dedupeKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = collapse(kw)
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
