package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/articleforge/internal/article"
)

const defaultMaxPerFeed = 20

// Entry is one candidate source article discovered by a Source.
type Entry struct {
	URL       string
	Title     string
	Published time.Time // zero when the feed gives no date
	Content   string
	Source    string
}

// Source discovers entries published after cutoff.
type Source interface {
	Name() string
	Entries(ctx context.Context, cutoff time.Time) ([]Entry, error)
}

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedSource reads RSS and Atom feeds.
type FeedSource struct {
	feeds      []FeedConfig
	parser     *gofeed.Parser
	maxPerFeed int
	logger     *slog.Logger
}

// NewFeedSource creates a FeedSource. A nil logger uses slog.Default.
func NewFeedSource(feeds []FeedConfig, logger *slog.Logger) *FeedSource {
	if logger == nil {
		logger = slog.Default()
	}
	parser := gofeed.NewParser()
	parser.UserAgent = "articleforge/1.0 (+feed intake)"
	return &FeedSource{
		feeds:      feeds,
		parser:     parser,
		maxPerFeed: defaultMaxPerFeed,
		logger:     logger.With("component", "feeds"),
	}
}

func (fs *FeedSource) Name() string { return "feeds" }

// Entries parses every feed. A feed that fails is logged and skipped; an
// error is returned only when every feed failed.
func (fs *FeedSource) Entries(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	var all []Entry
	var errs []error
	for _, fc := range fs.feeds {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		entries, err := fs.parseFeed(ctx, fc.URL, name, cutoff)
		if err != nil {
			fs.logger.Warn("failed to parse feed", "url", fc.URL, "error", err)
			errs = append(errs, fmt.Errorf("feed %s: %w", fc.URL, err))
			continue
		}
		fs.logger.Info("parsed feed", "source", name, "entries", len(entries))
		all = append(all, entries...)
	}
	if len(fs.feeds) > 0 && len(errs) == len(fs.feeds) {
		return nil, errors.Join(errs...)
	}
	return all, nil
}

func (fs *FeedSource) parseFeed(ctx context.Context, feedURL, sourceName string, cutoff time.Time) ([]Entry, error) {
	feed, err := fs.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, item := range feed.Items {
		if len(entries) >= fs.maxPerFeed {
			break
		}
		entry, ok := parseItem(item, sourceName)
		if !ok {
			continue
		}
		if entry.Published.IsZero() || !entry.Published.Before(cutoff) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func parseItem(item *gofeed.Item, source string) (Entry, bool) {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if !strings.HasPrefix(itemURL, "http://") && !strings.HasPrefix(itemURL, "https://") {
		return Entry{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return Entry{}, false
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	return Entry{
		URL:       itemURL,
		Title:     title,
		Published: published,
		Content:   article.PlainText(content),
		Source:    source,
	}, true
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
