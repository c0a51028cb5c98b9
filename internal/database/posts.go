package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/TobiSchelling/articleforge/internal/citation"
	"github.com/TobiSchelling/articleforge/internal/ethics"
	"github.com/TobiSchelling/articleforge/internal/pipeline"
	"github.com/TobiSchelling/articleforge/internal/seo"
)

// ErrNotFound is returned when a post or run does not exist.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps ListPosts when the filter sets no limit.
const DefaultListLimit = 50

const maxListLimit = 500

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var summaryColumns = []string{
	"id", "run_id", "title", "meta_description", "mode", "word_count",
	"seo_score", "ethics_score", "citation_score", "created_at",
}

var postColumns = []string{
	"id", "run_id", "title", "meta_description", "body_html", "keywords", "mode",
	"word_count", "source_url", "seo_score", "ethics_score", "citation_score",
	"seo_report", "ethics_report", "citation_report", "warnings", "generated_at", "created_at",
}

// PostRepository stores pipeline results as posts and archives finished
// runs. It satisfies pipeline.Repository and pipeline.Archiver.
type PostRepository struct {
	db  *DB
	now func() time.Time
}

// NewPostRepository returns a repository backed by db.
func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (r *PostRepository) WithClock(now func() time.Time) *PostRepository {
	r.now = now
	return r
}

// Save stores res as the post for runID. Saving the same run twice keeps
// the first post.
func (r *PostRepository) Save(ctx context.Context, runID string, res pipeline.Result) error {
	a := res.Article

	keywords, err := marshalList(a.Keywords)
	if err != nil {
		return err
	}
	warnings, err := marshalList(res.Warnings)
	if err != nil {
		return err
	}
	seoJSON, err := json.Marshal(res.SEO)
	if err != nil {
		return fmt.Errorf("encoding seo report: %w", err)
	}

	var ethicsScore, citationScore sql.NullFloat64
	var ethicsJSON, citationJSON sql.NullString
	if res.Ethics != nil {
		ethicsScore = sql.NullFloat64{Float64: res.Ethics.OverallScore, Valid: true}
		if ethicsJSON, err = marshalNullable(res.Ethics); err != nil {
			return fmt.Errorf("encoding ethics report: %w", err)
		}
	}
	if res.Citation != nil {
		citationScore = sql.NullFloat64{Float64: res.Citation.Score, Valid: true}
		if citationJSON, err = marshalNullable(res.Citation); err != nil {
			return fmt.Errorf("encoding citation report: %w", err)
		}
	}

	var generatedAt sql.NullString
	if !a.GeneratedAt.IsZero() {
		generatedAt = sql.NullString{String: formatTime(a.GeneratedAt), Valid: true}
	}

	query, args, err := sq.Insert("posts").
		Columns(
			"run_id", "title", "meta_description", "body_html", "keywords", "mode",
			"word_count", "source_url", "seo_score", "ethics_score", "citation_score",
			"seo_report", "ethics_report", "citation_report", "warnings", "generated_at", "created_at",
		).
		Values(
			runID, a.Title, a.MetaDescription, a.BodyHTML, keywords, a.Mode.String(),
			a.WordCount, res.SourceURL, res.SEO.Score, ethicsScore, citationScore,
			string(seoJSON), ethicsJSON, citationJSON, warnings, generatedAt, formatTime(r.now()),
		).
		Suffix("ON CONFLICT(run_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := r.db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting post for run %s: %w", runID, err)
	}
	return nil
}

// ListPosts returns post summaries, newest first.
func (r *PostRepository) ListPosts(ctx context.Context, f PostFilter) ([]PostSummary, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, maxListLimit)

	q := sq.Select(summaryColumns...).
		From("posts").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))
	if f.Mode != "" {
		q = q.Where(sq.Eq{"mode": strings.ToLower(f.Mode)})
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		q = q.Where(sq.Like{"title": "%" + query + "%"})
	}
	if f.MinSEOScore > 0 {
		q = q.Where(sq.GtOrEq{"seo_score": f.MinSEOScore})
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building post query: %w", err)
	}
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	var posts []PostSummary
	for rows.Next() {
		var p PostSummary
		var ethicsScore, citationScore sql.NullFloat64
		var createdAt string
		if err := rows.Scan(&p.ID, &p.RunID, &p.Title, &p.MetaDescription, &p.Mode,
			&p.WordCount, &p.SEOScore, &ethicsScore, &citationScore, &createdAt); err != nil {
			return nil, err
		}
		p.EthicsScore = nullFloat(ethicsScore)
		p.CitationScore = nullFloat(citationScore)
		p.CreatedAt = parseTime(createdAt)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost returns the post with the given id.
func (r *PostRepository) GetPost(ctx context.Context, id int64) (*Post, error) {
	return r.getPost(ctx, sq.Eq{"id": id})
}

// GetPostByRun returns the post produced by runID.
func (r *PostRepository) GetPostByRun(ctx context.Context, runID string) (*Post, error) {
	return r.getPost(ctx, sq.Eq{"run_id": runID})
}

func (r *PostRepository) getPost(ctx context.Context, where sq.Eq) (*Post, error) {
	query, args, err := sq.Select(postColumns...).From("posts").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building post query: %w", err)
	}

	var p Post
	var keywords, warnings string
	var ethicsScore, citationScore sql.NullFloat64
	var seoReport, ethicsReport, citationReport, generatedAt sql.NullString
	var createdAt string
	err = r.db.conn.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.RunID, &p.Title, &p.MetaDescription, &p.BodyHTML, &keywords, &p.Mode,
		&p.WordCount, &p.SourceURL, &p.SEOScore, &ethicsScore, &citationScore,
		&seoReport, &ethicsReport, &citationReport, &warnings, &generatedAt, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading post: %w", err)
	}

	_ = json.Unmarshal([]byte(keywords), &p.Keywords)
	_ = json.Unmarshal([]byte(warnings), &p.Warnings)
	p.EthicsScore = nullFloat(ethicsScore)
	p.CitationScore = nullFloat(citationScore)
	if seoReport.Valid {
		p.SEO = decodeReport[seo.Report](seoReport.String)
	}
	if ethicsReport.Valid {
		p.Ethics = decodeReport[ethics.Report](ethicsReport.String)
	}
	if citationReport.Valid {
		p.Citation = decodeReport[citation.Report](citationReport.String)
	}
	if generatedAt.Valid {
		p.GeneratedAt = parseTime(generatedAt.String)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// CountPosts returns the number of stored posts.
func (r *PostRepository) CountPosts(ctx context.Context) (int, error) {
	var n int
	if err := r.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return n, nil
}

// HasSource reports whether a post generated from url already exists.
func (r *PostRepository) HasSource(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	query, args, err := sq.Select("1").From("posts").Where(sq.Eq{"source_url": url}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("building source query: %w", err)
	}
	var one int
	err = r.db.conn.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking source %s: %w", url, err)
	}
	return true, nil
}

// Stats returns aggregate figures over posts and archived runs.
func (r *PostRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var avgSEO, avgEthics, avgCitation sql.NullFloat64
	err := r.db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(seo_score), AVG(ethics_score), AVG(citation_score) FROM posts",
	).Scan(&s.Posts, &avgSEO, &avgEthics, &avgCitation)
	if err != nil {
		return Stats{}, fmt.Errorf("reading post stats: %w", err)
	}
	s.AverageSEO = avgSEO.Float64
	s.AverageEthics = avgEthics.Float64
	s.AverageCitation = avgCitation.Float64

	err = r.db.conn.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0)
		FROM runs`,
	).Scan(&s.ArchivedRuns, &s.FailedRuns, &s.CancelledRuns)
	if err != nil {
		return Stats{}, fmt.Errorf("reading run stats: %w", err)
	}
	return s, nil
}

func marshalList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(data), nil
}

func marshalNullable(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// decodeReport returns nil for unreadable report JSON; a stored post stays
// viewable even if a report's shape changed between releases.
func decodeReport[T any](data string) *T {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil
	}
	return &v
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
