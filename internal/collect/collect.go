// Package collect discovers source articles in feeds and search APIs and
// starts a pipeline run for each new one.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/pipeline"
)

// Starter starts pipeline runs.
type Starter interface {
	Start(req pipeline.Request) (string, error)
}

// SourceIndex reports whether a source URL has already produced a post.
type SourceIndex interface {
	HasSource(ctx context.Context, url string) (bool, error)
}

// Options shape the runs a batch starts.
type Options struct {
	DaysBack       int
	Limit          int
	Mode           article.Mode
	Keywords       string
	TargetLength   int
	TargetLanguage string
}

// Result holds the results of a batch.
type Result struct {
	TotalFound int
	Started    int
	Duplicates int
	Failed     int
	Sources    map[string]int
	RunIDs     []string
}

// Collector turns discovered entries into runs.
type Collector struct {
	sources []Source
	starter Starter
	index   SourceIndex
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// NewCollector creates a Collector. index may be nil, in which case only
// duplicates within one batch are skipped.
func NewCollector(sources []Source, starter Starter, index SourceIndex, opts Options, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DaysBack <= 0 {
		opts.DaysBack = 1
	}
	return &Collector{
		sources: sources,
		starter: starter,
		index:   index,
		opts:    opts,
		logger:  logger.With("component", "collect"),
		now:     time.Now,
	}
}

// Discover gathers entries from every source, newest first, without
// duplicates. Entries without a date sort last.
func (c *Collector) Discover(ctx context.Context) ([]Entry, error) {
	cutoff := c.now().AddDate(0, 0, -c.opts.DaysBack)

	var all []Entry
	var errs []error
	for _, src := range c.sources {
		entries, err := src.Entries(ctx, cutoff)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("source failed", "source", src.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		all = append(all, entries...)
	}
	if len(c.sources) > 0 && len(errs) == len(c.sources) {
		return nil, errors.Join(errs...)
	}

	seen := make(map[string]struct{}, len(all))
	unique := all[:0]
	for _, e := range all {
		if _, ok := seen[e.URL]; ok {
			continue
		}
		seen[e.URL] = struct{}{}
		unique = append(unique, e)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		a, b := unique[i].Published, unique[j].Published
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.After(b)
	})
	return unique, nil
}

// Collect discovers entries and starts a run for each one that has no post
// yet, up to the configured limit.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	entries, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}

	r := &Result{TotalFound: len(entries), Sources: make(map[string]int)}
	for _, e := range entries {
		if c.opts.Limit > 0 && r.Started >= c.opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return r, err
		}

		if c.index != nil {
			done, err := c.index.HasSource(ctx, e.URL)
			if err != nil {
				return r, fmt.Errorf("checking %s: %w", e.URL, err)
			}
			if done {
				r.Duplicates++
				continue
			}
		}

		id, err := c.starter.Start(pipeline.Request{
			URL:            e.URL,
			Text:           e.Content,
			Keywords:       c.opts.Keywords,
			Mode:           c.opts.Mode,
			TargetLength:   c.opts.TargetLength,
			TargetLanguage: c.opts.TargetLanguage,
		})
		if err != nil {
			c.logger.Warn("starting run failed", "url", e.URL, "error", err)
			r.Failed++
			continue
		}
		r.Started++
		r.Sources[e.Source]++
		r.RunIDs = append(r.RunIDs, id)
		c.logger.Debug("run started", "run", id, "url", e.URL, "title", e.Title)
	}

	c.logger.Info("batch started",
		"found", r.TotalFound, "started", r.Started, "duplicates", r.Duplicates, "failed", r.Failed)
	return r, nil
}
