// Package translate converts source text into the target language, skipping
// text that is already written in it.
package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TobiSchelling/articleforge/internal/cache"
	"github.com/TobiSchelling/articleforge/internal/llm"
)

// DefaultThreshold is the script ratio above which translation is skipped.
const DefaultThreshold = 0.7

// Translator is a translation backend.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// Service applies the script-ratio check before calling a backend and
// degrades to passthrough on any backend failure.
type Service struct {
	backend   Translator
	threshold float64
	logger    *slog.Logger
}

// NewService wraps backend. A nil backend makes every call a passthrough.
func NewService(backend Translator, threshold float64, logger *slog.Logger) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, threshold: threshold, logger: logger}
}

// MaybeTranslate returns text in lang. It never fails: when the text is
// already predominantly in lang, or the backend errors, text is returned
// unchanged.
func (s *Service) MaybeTranslate(ctx context.Context, text, lang string) string {
	if strings.TrimSpace(text) == "" || lang == "" {
		return text
	}
	ratio := ScriptRatio(text, lang)
	if ratio > s.threshold {
		s.logger.Debug("translation skipped", "lang", lang, "ratio", ratio)
		return text
	}
	if s.backend == nil {
		return text
	}

	out, err := s.backend.Translate(ctx, text, lang)
	if err != nil {
		s.logger.Warn("translation failed, using source text", "lang", lang, "error", err)
		return text
	}
	if strings.TrimSpace(out) == "" {
		s.logger.Warn("translation returned empty text, using source text", "lang", lang)
		return text
	}
	return out
}

// LLMTranslator translates with a text-generation provider, one chunk at a
// time, caching chunk translations.
type LLMTranslator struct {
	provider  llm.Provider
	cache     cache.Cache[string]
	cacheTTL  time.Duration
	chunkSize int
	maxTokens int
}

// NewLLMTranslator creates a translator. c may be nil to disable caching.
func NewLLMTranslator(provider llm.Provider, c cache.Cache[string], chunkSize int) *LLMTranslator {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	return &LLMTranslator{
		provider:  provider,
		cache:     c,
		cacheTTL:  time.Hour,
		chunkSize: chunkSize,
		maxTokens: 4096,
	}
}

// Translate translates text into lang chunk by chunk. It fails on the
// first chunk that cannot be translated.
func (t *LLMTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	if t.provider == nil {
		return "", fmt.Errorf("no translation provider configured")
	}

	chunks := splitChunks(text, t.chunkSize)
	out := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		key := chunkKey(chunk, lang)
		if t.cache != nil {
			if cached, ok := t.cache.Get(key); ok {
				out = append(out, cached)
				continue
			}
		}

		translated, err := t.provider.Generate(ctx, translatePrompt(chunk, lang), t.maxTokens)
		if err != nil {
			return "", fmt.Errorf("translating chunk %d/%d: %w", i+1, len(chunks), err)
		}
		translated = llm.StripCodeFences(translated)
		if translated == "" {
			return "", fmt.Errorf("translating chunk %d/%d: empty response", i+1, len(chunks))
		}
		if t.cache != nil {
			t.cache.Set(key, translated, t.cacheTTL)
		}
		out = append(out, translated)
	}
	return strings.Join(out, "\n\n"), nil
}

func translatePrompt(text, lang string) string {
	return fmt.Sprintf(`Translate the following text into %s.
Keep the paragraph breaks, names, numbers and URLs unchanged.
Return only the translated text without commentary.

%s`, LanguageName(lang), text)
}

func chunkKey(chunk, lang string) string {
	sum := sha256.Sum256([]byte(normalizeLang(lang) + "\x00" + chunk))
	return "tr:" + hex.EncodeToString(sum[:])
}

// splitChunks groups paragraphs into chunks of at most size runes. A single
// paragraph longer than size is cut on rune boundaries.
func splitChunks(text string, size int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		if n > size {
			flush()
			runes := []rune(para)
			for start := 0; start < len(runes); start += size {
				end := min(start+size, len(runes))
				chunks = append(chunks, string(runes[start:end]))
			}
			continue
		}
		if curLen > 0 && curLen+2+n > size {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(para)
		curLen += n
	}
	flush()
	return chunks
}
