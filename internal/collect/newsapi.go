package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPISource searches NewsAPI for articles matching a query.
type NewsAPISource struct {
	BaseURL  string
	Query    string
	Language string
	PageSize int

	apiKey string
	client *http.Client
	logger *slog.Logger
}

// NewNewsAPISource reads its key from apiKeyEnv.
func NewNewsAPISource(apiKeyEnv, query, language string, logger *slog.Logger) *NewsAPISource {
	if logger == nil {
		logger = slog.Default()
	}
	if language == "" {
		language = "en"
	}
	return &NewsAPISource{
		BaseURL:  newsAPIBaseURL,
		Query:    query,
		Language: language,
		PageSize: 50,
		apiKey:   os.Getenv(apiKeyEnv),
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "newsapi"),
	}
}

func (c *NewsAPISource) Name() string { return "newsapi" }

// IsConfigured returns whether the API key and query are available.
func (c *NewsAPISource) IsConfigured() bool {
	return c.apiKey != "" && strings.TrimSpace(c.Query) != ""
}

// Entries runs the search for articles published since cutoff.
func (c *NewsAPISource) Entries(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("newsapi: api key or query not configured")
	}

	params := url.Values{
		"q":        {c.Query},
		"from":     {cutoff.Format("2006-01-02")},
		"language": {c.Language},
		"pageSize": {strconv.Itoa(min(max(c.PageSize, 1), 100))},
		"sortBy":   {"publishedAt"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating newsapi request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned HTTP %d", resp.StatusCode)
	}

	var result struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Content     string `json:"content"`
			Description string `json:"description"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding newsapi response: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %q: %s", result.Status, result.Message)
	}

	var entries []Entry
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" || a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var published time.Time
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			published = t
		}

		content := a.Content
		if content == "" {
			content = a.Description
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		entries = append(entries, Entry{
			URL:       a.URL,
			Title:     strings.TrimSpace(a.Title),
			Published: published,
			Content:   strings.TrimSpace(content),
			Source:    source,
		})
	}

	c.logger.Info("fetched newsapi articles", "query", c.Query, "entries", len(entries))
	return entries, nil
}
