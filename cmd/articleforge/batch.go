package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/articleforge/internal/article"
	"github.com/TobiSchelling/articleforge/internal/collect"
	"github.com/TobiSchelling/articleforge/internal/pipeline"
)

var (
	batchDaysBack int
	batchLimit    int
	batchMode     string
	batchKeywords string
	batchDryRun   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate posts for new articles in the configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts, err := batchOptions()
		if err != nil {
			return err
		}
		sources := batchSources()
		if len(sources) == 0 {
			return fmt.Errorf("no sources configured; add feeds or enable newsapi in the config")
		}

		if batchDryRun {
			entries, err := collect.NewCollector(sources, nil, nil, opts, nil).Discover(ctx)
			if err != nil {
				return err
			}
			pterm.DefaultSection.Printf("%d candidate articles\n", len(entries))
			for i, e := range entries {
				if opts.Limit > 0 && i >= opts.Limit {
					break
				}
				date := "undated"
				if !e.Published.IsZero() {
					date = e.Published.Format("2006-01-02")
				}
				fmt.Printf("  %s  %-20s %s\n", date, e.Source, e.Title)
			}
			return nil
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(30 * time.Second)

		result, err := collect.NewCollector(sources, a.orch, a.posts, opts, nil).Collect(ctx)
		if err != nil {
			return err
		}
		printCollectResult(result)
		if result.Started == 0 {
			return nil
		}

		outcomes := waitForRuns(ctx, a.orch, result.RunIDs)
		fmt.Println()
		pterm.DefaultSection.Println("Batch finished")
		fmt.Printf("  Completed: %d\n", outcomes[pipeline.EventCompleted])
		fmt.Printf("  Failed: %d\n", outcomes[pipeline.EventFailed])
		fmt.Printf("  Cancelled: %d\n", outcomes[pipeline.EventCancelled])
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchDaysBack, "days-back", 0, "Override lookback window (days)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "Maximum number of runs to start")
	batchCmd.Flags().StringVarP(&batchMode, "mode", "m", "", "Generation mode (defaults to batch.mode)")
	batchCmd.Flags().StringVarP(&batchKeywords, "keywords", "k", "", "Keywords for every run (defaults to batch.keywords)")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "List candidate articles without starting runs")
}

func batchOptions() (collect.Options, error) {
	mode, err := cfg.BatchMode()
	if err != nil {
		return collect.Options{}, err
	}
	if batchMode != "" {
		if mode, err = article.ParseMode(batchMode); err != nil {
			return collect.Options{}, err
		}
	}
	opts := collect.Options{
		DaysBack:       cfg.Batch.DaysBack,
		Limit:          cfg.Batch.Limit,
		Mode:           mode,
		Keywords:       cfg.Batch.Keywords,
		TargetLength:   cfg.Generation.DefaultLength,
		TargetLanguage: cfg.Translation.TargetLanguage,
	}
	if batchDaysBack > 0 {
		opts.DaysBack = batchDaysBack
	}
	if batchLimit > 0 {
		opts.Limit = batchLimit
	}
	if batchKeywords != "" {
		opts.Keywords = batchKeywords
	}
	return opts, nil
}

func batchSources() []collect.Source {
	var sources []collect.Source
	if len(cfg.Feeds) > 0 {
		feeds := make([]collect.FeedConfig, len(cfg.Feeds))
		for i, f := range cfg.Feeds {
			feeds[i] = collect.FeedConfig{URL: f.URL, Name: f.Name}
		}
		sources = append(sources, collect.NewFeedSource(feeds, nil))
	}
	if cfg.NewsAPI.Enabled {
		news := collect.NewNewsAPISource(cfg.NewsAPI.APIKeyEnv, cfg.NewsAPI.Query, cfg.NewsAPI.Language, nil)
		if news.IsConfigured() {
			sources = append(sources, news)
		} else {
			pterm.Warning.Printf("NewsAPI enabled but $%s is not set; skipping\n", cfg.NewsAPI.APIKeyEnv)
		}
	}
	return sources
}

func printCollectResult(r *collect.Result) {
	fmt.Println("\nCollection complete:")
	fmt.Printf("  Total found: %d\n", r.TotalFound)
	fmt.Printf("  Runs started: %d\n", r.Started)
	fmt.Printf("  Already published: %d\n", r.Duplicates)
	if r.Failed > 0 {
		fmt.Printf("  Failed to start: %d\n", r.Failed)
	}

	if len(r.Sources) > 0 {
		fmt.Println("\nRuns by source:")
		// Sort sources by count descending
		type kv struct {
			key string
			val int
		}
		var sorted []kv
		for k, v := range r.Sources {
			sorted = append(sorted, kv{k, v})
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
		for _, s := range sorted {
			fmt.Printf("  %s: %d\n", s.key, s.val)
		}
	}
	fmt.Println()
}

// waitForRuns blocks until every run has ended and counts the terminal
// kinds. An interrupt cancels the remaining runs.
func waitForRuns(ctx context.Context, orch *pipeline.Orchestrator, ids []string) map[pipeline.EventKind]int {
	done := make(chan pipeline.EventKind, len(ids))
	for _, id := range ids {
		stream, ok := orch.Events(id)
		if !ok {
			done <- pipeline.EventFailed
			continue
		}
		go func() {
			for {
				e, err := stream.Next(context.Background())
				if err != nil {
					done <- pipeline.EventFailed
					return
				}
				if e.Terminal() {
					done <- e.Kind
					return
				}
			}
		}()
	}

	var bar *pterm.ProgressbarPrinter
	if !plainOutput {
		bar, _ = pterm.DefaultProgressbar.WithTotal(len(ids)).WithTitle("Generating posts").Start()
	}

	outcomes := make(map[pipeline.EventKind]int)
	interrupted := ctx.Done()
	for n := 0; n < len(ids); {
		select {
		case kind := <-done:
			outcomes[kind]++
			n++
			if bar != nil {
				bar.Increment()
			} else {
				fmt.Printf("[%d/%d] %s\n", n, len(ids), kind)
			}
		case <-interrupted:
			interrupted = nil
			pterm.Warning.Println("Interrupted; cancelling remaining runs")
			for _, id := range ids {
				orch.Cancel(id)
			}
		}
	}
	if bar != nil {
		_, _ = bar.Stop()
	}
	return outcomes
}
