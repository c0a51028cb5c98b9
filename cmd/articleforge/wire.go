package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/cache"
	"github.com/TobiSchelling/articleforge/internal/citation"
	"github.com/TobiSchelling/articleforge/internal/config"
	"github.com/TobiSchelling/articleforge/internal/database"
	"github.com/TobiSchelling/articleforge/internal/ethics"
	"github.com/TobiSchelling/articleforge/internal/extract"
	"github.com/TobiSchelling/articleforge/internal/fetch"
	"github.com/TobiSchelling/articleforge/internal/generate"
	"github.com/TobiSchelling/articleforge/internal/llm"
	"github.com/TobiSchelling/articleforge/internal/pipeline"
	"github.com/TobiSchelling/articleforge/internal/translate"
)

func openDB() (*database.DB, error) {
	return database.OpenWithLogger(cfg.DatabasePath(), slog.Default())
}

func newPostRepository(db *database.DB) *database.PostRepository {
	return database.NewPostRepository(db)
}

// app holds everything a command that starts runs needs.
type app struct {
	db    *database.DB
	posts *database.PostRepository
	orch  *pipeline.Orchestrator
}

func newApp(ctx context.Context) (*app, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	posts := newPostRepository(db)

	deps, err := buildDeps(ctx, cfg, slog.Default())
	if err != nil {
		db.Close()
		return nil, err
	}
	deps.Repository = posts
	deps.Archiver = posts

	orch := pipeline.New(deps, pipeline.Options{
		EventBuffer:     cfg.Pipeline.EventBuffer,
		RunTTL:          cfg.Pipeline.RunTTL,
		TargetLanguage:  cfg.Translation.TargetLanguage,
		DefaultLength:   cfg.Generation.DefaultLength,
		DefaultKeywords: cfg.Generation.DefaultKeywords,
	})
	return &app{db: db, posts: posts, orch: orch}, nil
}

// Close cancels active runs, waits up to timeout for them and closes the
// database.
func (a *app) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.orch.Shutdown(ctx); err != nil {
		slog.Warn("runs still active at shutdown", "error", err)
	}
	a.db.Close()
}

// buildDeps wires the pipeline stages from configuration. Without a usable
// LLM provider the generator is left nil and runs are refused.
func buildDeps(ctx context.Context, c *config.Config, logger *slog.Logger) (pipeline.Deps, error) {
	extractor, ethicsScorer, citationScorer, err := buildEvaluators(c.Evaluation)
	if err != nil {
		return pipeline.Deps{}, err
	}

	deps := pipeline.Deps{
		Fetcher:   fetch.NewHTTPFetcher(c.Pipeline.FetchTimeout),
		Extractor: extractor,
		Ethics:    ethicsScorer,
		Citation:  citationScorer,
		Logger:    logger,
	}

	provider := llm.CreateProvider(ctx, llm.Options{
		Provider:     c.LLM.Provider,
		Model:        c.LLM.Model,
		OllamaURL:    c.LLM.OllamaURL,
		OpenAIModel:  c.LLM.OpenAIModel,
		OpenAIKeyEnv: c.LLM.APIKeyEnv,
		GeminiModel:  c.LLM.GeminiModel,
		GeminiKeyEnv: c.LLM.GeminiKeyEnv,
	})
	if provider == nil {
		deps.Translator = translate.NewService(nil, c.Translation.Threshold, logger)
		return deps, nil
	}

	backend := translate.NewLLMTranslator(provider, cache.NewMemoryCache[string](c.Translation.CacheSize), c.Translation.ChunkSize)
	deps.Translator = translate.NewService(backend, c.Translation.Threshold, logger)

	language := ""
	if c.Translation.TargetLanguage != "" {
		language = translate.LanguageName(c.Translation.TargetLanguage)
	}
	policy := generate.DefaultRetryPolicy()
	policy.MaxRetries = c.Generation.MaxRetries
	if c.Generation.BaseDelay > 0 {
		policy.BaseDelay = c.Generation.BaseDelay
	}
	generated := cache.NewMemoryCache[article.Article](c.Generation.CacheSize)
	generated.StartSweeper(ctx, c.Pipeline.ReapInterval)
	deps.Generator = generate.NewCached(
		generate.NewLLMGenerator(provider, c.LLM.MaxTokens, language),
		generated,
		c.Generation.CacheTTL,
		policy,
		logger,
	)
	return deps, nil
}

// buildEvaluators loads rule overrides, falling back to the embedded tables.
func buildEvaluators(e config.Evaluation) (*extract.Extractor, *ethics.Scorer, *citation.Scorer, error) {
	extractor := extract.Default()
	if e.ExtractRules != "" {
		data, err := os.ReadFile(e.ExtractRules)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading extraction rules: %w", err)
		}
		rules, err := extract.ParseRules(data)
		if err != nil {
			return nil, nil, nil, err
		}
		if extractor, err = extract.New(rules); err != nil {
			return nil, nil, nil, err
		}
	}

	ethicsScorer := ethics.Default()
	if e.EthicsRules != "" {
		data, err := os.ReadFile(e.EthicsRules)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading ethics rules: %w", err)
		}
		rules, err := ethics.ParseRules(data)
		if err != nil {
			return nil, nil, nil, err
		}
		if ethicsScorer, err = ethics.New(rules); err != nil {
			return nil, nil, nil, err
		}
	}

	citationScorer := citation.Default()
	if e.CitationRules != "" {
		data, err := os.ReadFile(e.CitationRules)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reading citation rules: %w", err)
		}
		rules, err := citation.ParseRules(data)
		if err != nil {
			return nil, nil, nil, err
		}
		if citationScorer, err = citation.New(rules); err != nil {
			return nil, nil, nil, err
		}
	}
	return extractor, ethicsScorer, citationScorer, nil
}
