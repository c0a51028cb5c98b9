// Package generate produces articles from source text through an LLM and
// wraps any generator with response caching, retry with backoff, and an
// output contract that every returned article satisfies.
package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/TobiSchelling/articleforge/internal/article"
)

// Input is everything that determines a generated article.
type Input struct {
	Text         string
	Keywords     string
	Mode         article.Mode
	TargetLength int
}

// Key returns a stable hash of the input, used as the cache key.
func (in Input) Key() string {
	h := sha256.New()
	for _, part := range []string{in.Text, in.Keywords, in.Mode.String(), strconv.Itoa(in.TargetLength)} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return "gen:" + hex.EncodeToString(h.Sum(nil))
}

// Generator produces an article for an input.
type Generator interface {
	Generate(ctx context.Context, in Input) (article.Article, error)
}

// GenerationError is returned when generation fails terminally, either on a
// non-transient error or after the retry budget is spent.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
