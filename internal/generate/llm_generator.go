package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/llm"
)

// ErrEmptyResponse is returned when the model produced no usable body.
var ErrEmptyResponse = errors.New("model returned an empty article")

// DefaultMaxTokens bounds a single generation request.
const DefaultMaxTokens = 4096

// LLMGenerator asks an LLM provider to write the article.
type LLMGenerator struct {
	provider  llm.Provider
	maxTokens int
	language  string
}

// NewLLMGenerator creates a generator writing in language (a display name
// such as "Korean"); empty means the language of the source text.
func NewLLMGenerator(provider llm.Provider, maxTokens int, language string) *LLMGenerator {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &LLMGenerator{provider: provider, maxTokens: maxTokens, language: language}
}

// Generate implements Generator.
func (g *LLMGenerator) Generate(ctx context.Context, in Input) (article.Article, error) {
	if g.provider == nil {
		return article.Article{}, errors.New("no LLM provider configured")
	}
	raw, err := g.provider.Generate(ctx, buildPrompt(in, g.language), g.maxTokens)
	if err != nil {
		return article.Article{}, fmt.Errorf("generating article: %w", err)
	}
	a, err := ParseResponse(raw)
	if err != nil {
		return article.Article{}, err
	}
	a.Mode = in.Mode
	return a, nil
}

func buildPrompt(in Input, language string) string {
	var b strings.Builder
	b.WriteString("You are an experienced blog writer. Turn the source material below into an original article.\n\n")
	b.WriteString(in.Mode.Guidelines())
	b.WriteString("\n\n")
	if kw := strings.TrimSpace(in.Keywords); kw != "" {
		fmt.Fprintf(&b, "Target keywords: %s\n", kw)
	}
	if in.TargetLength > 0 {
		fmt.Fprintf(&b, "Target length: about %d words\n", in.TargetLength)
	}
	if language != "" {
		fmt.Fprintf(&b, "Write in %s.\n", language)
	}
	b.WriteString(`
Respond with JSON only:
{"title": "...", "meta_description": "at most 160 characters", "body_html": "<h2>...</h2><p>...</p>", "keywords": ["..."]}

Source material:
`)
	b.WriteString(in.Text)
	return b.String()
}

// ParseResponse turns a model response into an article. JSON responses are
// read field by field; anything else is treated as Markdown or HTML, with a
// "Meta description:" line lifted out of the body.
func ParseResponse(raw string) (article.Article, error) {
	if fields := llm.ParseJSONResponse(raw); fields != nil {
		a := article.Article{
			Title:           stringField(fields, "title"),
			MetaDescription: stringField(fields, "meta_description", "description"),
			BodyHTML:        stringField(fields, "body_html", "body", "content"),
			Keywords:        keywordsField(fields["keywords"]),
		}
		if strings.TrimSpace(a.BodyHTML) == "" {
			return article.Article{}, ErrEmptyResponse
		}
		if !looksLikeHTML(a.BodyHTML) {
			a.BodyHTML = markdownToHTML(a.BodyHTML)
		}
		return a, nil
	}

	text := llm.StripCodeFences(raw)
	if strings.TrimSpace(text) == "" {
		return article.Article{}, ErrEmptyResponse
	}
	if !looksLikeHTML(text) {
		text = markdownToHTML(text)
	}
	body, meta := liftMetaLine(text)
	if strings.TrimSpace(body) == "" {
		return article.Article{}, ErrEmptyResponse
	}
	a := article.Article{BodyHTML: body, MetaDescription: meta}
	if m := anyHeadingRe.FindStringSubmatch(body); m != nil {
		a.Title = collapse(tagRe.ReplaceAllString(m[1], " "))
	}
	return a, nil
}

var metaPrefixes = []string{"메타 설명", "메타설명", "meta description"}

func liftMetaLine(body string) (string, string) {
	lines := strings.Split(body, "\n")
	kept := lines[:0]
	var meta string
	for _, line := range lines {
		if meta == "" {
			plain := collapse(tagRe.ReplaceAllString(line, " "))
			lower := strings.ToLower(plain)
			for _, p := range metaPrefixes {
				if strings.HasPrefix(lower, p) {
					rest := strings.TrimSpace(plain[len(p):])
					meta = strings.TrimSpace(strings.TrimLeft(rest, ":："))
					break
				}
			}
			if meta != "" {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), meta
}

func looksLikeHTML(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "<") && (strings.Contains(s, "</p>") || strings.Contains(s, "</h"))
}

func markdownToHTML(src string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "<p>" + src + "</p>"
	}
	return buf.String()
}

func stringField(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func keywordsField(v any) []string {
	switch kw := v.(type) {
	case []any:
		out := make([]string, 0, len(kw))
		for _, item := range kw {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Split(kw, ",")
	}
	return nil
}
