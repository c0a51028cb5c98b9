package database

import (
	"time"

	"github.com/TobiSchelling/articleforge/internal/citation"
	"github.com/TobiSchelling/articleforge/internal/ethics"
	"github.com/TobiSchelling/articleforge/internal/seo"
)

// Post is a stored article with its evaluation reports.
type Post struct {
	ID              int64            `json:"id"`
	RunID           string           `json:"run_id"`
	Title           string           `json:"title"`
	MetaDescription string           `json:"meta_description"`
	BodyHTML        string           `json:"body_html"`
	Keywords        []string         `json:"keywords"`
	Mode            string           `json:"mode"`
	WordCount       int              `json:"word_count"`
	SourceURL       string           `json:"source_url,omitempty"`
	SEOScore        float64          `json:"seo_score"`
	EthicsScore     *float64         `json:"ethics_score,omitempty"`
	CitationScore   *float64         `json:"citation_score,omitempty"`
	SEO             *seo.Report      `json:"seo,omitempty"`
	Ethics          *ethics.Report   `json:"ethics,omitempty"`
	Citation        *citation.Report `json:"citation,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at,omitzero"`
	CreatedAt       time.Time        `json:"created_at"`
}

// PostSummary is the listing view of a post.
type PostSummary struct {
	ID              int64     `json:"id"`
	RunID           string    `json:"run_id"`
	Title           string    `json:"title"`
	MetaDescription string    `json:"meta_description"`
	Mode            string    `json:"mode"`
	WordCount       int       `json:"word_count"`
	SEOScore        float64   `json:"seo_score"`
	EthicsScore     *float64  `json:"ethics_score,omitempty"`
	CitationScore   *float64  `json:"citation_score,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PostFilter narrows ListPosts. Zero values mean "no restriction".
type PostFilter struct {
	Mode        string
	Query       string
	MinSEOScore float64
	Limit       int
	Offset      int
}

// RunRecord is an archived run.
type RunRecord struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	Request    string    `json:"request"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Stats contains aggregate database statistics.
type Stats struct {
	Posts           int
	ArchivedRuns    int
	FailedRuns      int
	CancelledRuns   int
	AverageSEO      float64
	AverageEthics   float64
	AverageCitation float64
}
