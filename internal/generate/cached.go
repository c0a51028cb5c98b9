package generate

import (
	"context"
	"log/slog"
	"time"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/cache"
)

// DefaultCacheTTL is how long a generated article is reused.
const DefaultCacheTTL = 30 * time.Minute

// Cached wraps a Generator with a TTL cache, retry on transient failure,
// and output-contract enforcement.
type Cached struct {
	inner  Generator
	cache  cache.Cache[article.Article]
	ttl    time.Duration
	policy RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewCached wraps inner. A nil cache disables caching.
func NewCached(inner Generator, c cache.Cache[article.Article], ttl time.Duration, policy RetryPolicy, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		inner:  inner,
		cache:  c,
		ttl:    ttl,
		policy: policy,
		logger: logger.With("component", "generator"),
		now:    time.Now,
	}
}

// Generate returns the cached article for in when one is live; otherwise it
// calls the wrapped generator, retrying transient errors, and stores the
// contract-conforming result.
func (g *Cached) Generate(ctx context.Context, in Input) (article.Article, error) {
	key := in.Key()
	if g.cache != nil {
		if a, ok := g.cache.Get(key); ok {
			g.logger.Debug("generation cache hit", "key", key[:16])
			return a.Clone(), nil
		}
	}

	a, err := g.generateWithRetry(ctx, in)
	if err != nil {
		return article.Article{}, err
	}

	a = Enforce(a, in, g.now())
	if g.cache != nil {
		g.cache.Set(key, a.Clone(), g.ttl)
	}
	return a, nil
}

func (g *Cached) generateWithRetry(ctx context.Context, in Input) (article.Article, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= g.policy.MaxRetries; attempt++ {
		attempts++
		a, err := g.inner.Generate(ctx, in)
		if err == nil {
			if attempt > 0 {
				g.logger.Info("generation succeeded after retry", "attempts", attempts)
			}
			return a, nil
		}
		lastErr = err

		if !IsTransient(err) {
			g.logger.Warn("generation failed", "attempt", attempts, "error", err, "retryable", false)
			break
		}
		if attempt == g.policy.MaxRetries {
			break
		}

		delay := g.policy.Delay(attempt)
		g.logger.Warn("generation failed, backing off", "attempt", attempts, "delay", delay, "error", err)
		if err := sleepCtx(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	return article.Article{}, &GenerationError{Attempts: attempts, Err: lastErr}
}
