package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "posts",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    meta_description TEXT NOT NULL DEFAULT '',
    body_html TEXT NOT NULL,
    keywords TEXT NOT NULL DEFAULT '[]',
    mode TEXT NOT NULL,
    word_count INTEGER NOT NULL DEFAULT 0,
    seo_score REAL NOT NULL DEFAULT 0,
    ethics_score REAL,
    citation_score REAL,
    seo_report TEXT,
    ethics_report TEXT,
    citation_report TEXT,
    warnings TEXT NOT NULL DEFAULT '[]',
    generated_at TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);
CREATE INDEX IF NOT EXISTS idx_posts_mode ON posts(mode);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "archived runs",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    stage TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    request TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    archived_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`)
			return err
		},
	},
	{
		Version:     3,
		Description: "source url on posts",
		Up: func(tx *sql.Tx) error {
			var count int
			if err := tx.QueryRow(
				"SELECT COUNT(*) FROM pragma_table_info('posts') WHERE name = 'source_url'",
			).Scan(&count); err != nil {
				return err
			}
			if count == 0 {
				if _, err := tx.Exec("ALTER TABLE posts ADD COLUMN source_url TEXT NOT NULL DEFAULT ''"); err != nil {
					return err
				}
			}
			_, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_posts_source ON posts(source_url)")
			return err
		},
	},
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
