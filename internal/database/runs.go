package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/TobiSchelling/articleforge/internal/pipeline"
)

var runColumns = []string{
	"id", "status", "stage", "error", "request", "started_at", "finished_at", "archived_at",
}

// ArchiveRun records a finished run before the orchestrator forgets it.
// Archiving the same run again replaces the earlier record.
func (r *PostRepository) ArchiveRun(ctx context.Context, run pipeline.Run) error {
	req, err := json.Marshal(run.Request)
	if err != nil {
		return fmt.Errorf("encoding run request: %w", err)
	}

	var finishedAt sql.NullString
	if !run.FinishedAt.IsZero() {
		finishedAt = sql.NullString{String: formatTime(run.FinishedAt), Valid: true}
	}

	query, args, err := sq.Replace("runs").
		Columns(runColumns...).
		Values(
			run.ID, string(run.Status), string(run.Stage), run.Error, string(req),
			formatTime(run.StartedAt), finishedAt, formatTime(r.now()),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building run insert: %w", err)
	}
	if _, err := r.db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("archiving run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns archived runs, most recently started first. A status of
// "" lists every run.
func (r *PostRepository) ListRuns(ctx context.Context, status string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q := sq.Select(runColumns...).
		From("runs").
		OrderBy("started_at DESC").
		Limit(uint64(min(limit, maxListLimit)))
	if status != "" {
		q = q.Where(sq.Eq{"status": status})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building run query: %w", err)
	}
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// GetRun returns the archived run with the given id.
func (r *PostRepository) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	query, args, err := sq.Select(runColumns...).From("runs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building run query: %w", err)
	}
	rec, err := scanRun(r.db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var startedAt, archivedAt string
	var finishedAt sql.NullString
	if err := row.Scan(&rec.ID, &rec.Status, &rec.Stage, &rec.Error, &rec.Request,
		&startedAt, &finishedAt, &archivedAt); err != nil {
		return RunRecord{}, err
	}
	rec.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		rec.FinishedAt = parseTime(finishedAt.String)
	}
	rec.ArchivedAt = parseTime(archivedAt)
	return rec, nil
}
