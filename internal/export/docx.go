// Package export writes stored posts to Word documents.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/gingfrederik/docx"

	"github.com/TobiSchelling/articleforge/internal/database"
)

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote"

var headingSizes = map[string]int{"h1": 18, "h2": 16, "h3": 14, "h4": 13, "h5": 12, "h6": 12}

// Block is one paragraph-level element of an article body.
type Block struct {
	Tag  string
	Text string
}

// Blocks flattens body HTML into paragraph-level blocks in document order.
// Nested blocks (a paragraph inside a list item) are folded into their
// outermost block.
func Blocks(bodyHTML string) []Block {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return nil
	}

	var blocks []Block
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" {
			return
		}
		blocks = append(blocks, Block{Tag: goquery.NodeName(s), Text: text})
	})
	if len(blocks) == 0 {
		if text := strings.Join(strings.Fields(doc.Text()), " "); text != "" {
			blocks = append(blocks, Block{Tag: "p", Text: text})
		}
	}
	return blocks
}

// WritePosts writes posts into one document at path, separated by rules.
func WritePosts(path string, posts []*database.Post) error {
	if len(posts) == 0 {
		return fmt.Errorf("no posts to export")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	f := docx.NewFile()
	for i, p := range posts {
		if i > 0 {
			f.AddParagraph().AddText(strings.Repeat("-", 50))
		}
		addPost(f, p)
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}

func addPost(f *docx.File, p *database.Post) {
	f.AddParagraph().AddText(p.Title).Size(20)

	meta := fmt.Sprintf("Mode: %s | Words: %d | Created: %s", p.Mode, p.WordCount, p.CreatedAt.Format("2006-01-02"))
	f.AddParagraph().AddText(meta).Size(10).Color("808080")
	if p.SourceURL != "" {
		f.AddParagraph().AddText(p.SourceURL).Size(10).Color("0000FF")
	}
	if p.MetaDescription != "" {
		f.AddParagraph().AddText(p.MetaDescription).Size(11).Color("404040")
	}
	if len(p.Keywords) > 0 {
		f.AddParagraph().AddText("Keywords: " + strings.Join(p.Keywords, ", ")).Size(10).Color("808080")
	}
	f.AddParagraph()

	for _, b := range Blocks(p.BodyHTML) {
		switch {
		case headingSizes[b.Tag] > 0:
			f.AddParagraph().AddText(b.Text).Size(headingSizes[b.Tag])
		case b.Tag == "li":
			f.AddParagraph().AddText("• " + b.Text)
		case b.Tag == "blockquote":
			f.AddParagraph().AddText(b.Text).Color("404040")
		default:
			f.AddParagraph().AddText(b.Text)
		}
	}

	f.AddParagraph()
	f.AddParagraph().AddText("Quality scores").Size(14)
	f.AddParagraph().AddText(fmt.Sprintf("SEO: %.1f | Ethics: %s | Citations: %s",
		p.SEOScore, formatScore(p.EthicsScore), formatScore(p.CitationScore))).Size(10)
	if p.Ethics != nil {
		for _, rec := range p.Ethics.Recommendations {
			f.AddParagraph().AddText("• " + rec).Size(10).Color("808080")
		}
	}
	if p.Citation != nil {
		for _, rec := range p.Citation.Recommendations {
			f.AddParagraph().AddText("• " + rec).Size(10).Color("808080")
		}
	}
}

func formatScore(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}

// FileName returns a file name for a post: its id followed by a slug of its
// title. Letters of any script are kept.
func FileName(p *database.Post) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(p.Title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 60 {
			break
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return fmt.Sprintf("post-%d.docx", p.ID)
	}
	return fmt.Sprintf("%d-%s.docx", p.ID, slug)
}
