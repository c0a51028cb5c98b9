// Package article holds the value types shared by the generation and
// evaluation stages.
package article

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects the prompt-shaping strategy used by the generator.
type Mode int

const (
	ModeBasic Mode = iota
	ModeEnhanced
	ModeAEO
	ModeGEO
)

var modeNames = [...]string{"basic", "enhanced", "aeo", "geo"}

// Modes lists every supported mode in declaration order.
func Modes() []Mode {
	return []Mode{ModeBasic, ModeEnhanced, ModeAEO, ModeGEO}
}

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m >= ModeBasic && m <= ModeGEO
}

// ParseMode converts a mode name into a Mode. An empty string yields ModeBasic.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeBasic, nil
	}
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return ModeBasic, fmt.Errorf("unsupported mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Guidelines returns the writing instructions that distinguish this mode.
func (m Mode) Guidelines() string {
	switch m {
	case ModeEnhanced:
		return `Write an in-depth article following E-E-A-T principles:
- include concrete examples and practical insight
- cite trustworthy sources with links where facts are stated
- use a clear H2/H3 hierarchy with short paragraphs and lists`
	case ModeAEO:
		return `Optimize for answer engines (ChatGPT, Perplexity, Gemini):
- open every section with a direct one or two sentence answer
- add a FAQ section with question headings and concise answers
- keep sentences short, conversational and in the active voice
- prefer bullet lists, numbered steps and small tables`
	case ModeGEO:
		return `Optimize for generative search (Google AI Overviews, Copilot):
- build a clear hierarchy of H2/H3 sections covering the topic comprehensively
- attribute facts to named sources and include their URLs
- mention related entities, products and organisations explicitly
- summarise key takeaways in a list near the top`
	default:
		return `Write a clear, well structured blog article:
- use H2 headings for sections and paragraphs of 2-4 sentences
- work the keywords in naturally`
	}
}

// Article is a generated, publishable article. Evaluators receive it by value
// and must not modify the Keywords slice.
type Article struct {
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	BodyHTML        string    `json:"body_html"`
	Keywords        []string  `json:"keywords"`
	WordCount       int       `json:"word_count"`
	Mode            Mode      `json:"mode"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Clone returns a deep copy of a.
func (a Article) Clone() Article {
	if a.Keywords != nil {
		kw := make([]string, len(a.Keywords))
		copy(kw, a.Keywords)
		a.Keywords = kw
	}
	return a
}

// IsEmpty reports whether the article carries no content at all.
func (a Article) IsEmpty() bool {
	return strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.BodyHTML) == ""
}
