// Package journal records processing outcomes in SQLite for the status and
// jobs CLI surfaces. It is written after the fact: delivery and processing
// never depend on it, and a journal write failure is logged, not escalated.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the terminal outcome of one processed payload.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// Entry is one journal row.
type Entry struct {
	ID           int64
	JobID        string
	SourceFile   string
	Page         int
	Status       Status
	Stage        string
	OutputPath   string
	ErrorMessage string
	ArrivedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
}

// Summary aggregates journal counts.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Abandoned int
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    source_file TEXT NOT NULL,
    page INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    stage TEXT NOT NULL DEFAULT '',
    output_path TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    arrived_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs(source_file);
`

// Open initializes or connects to the journal database in dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one outcome row and returns its ID.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if entry.Status == "" {
		return 0, fmt.Errorf("journal entry requires a status")
	}
	if entry.ArrivedAt.IsZero() {
		entry.ArrivedAt = time.Now().UTC()
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            job_id, source_file, page, status, stage, output_path,
            error_message, arrived_at, finished_at, duration_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.JobID,
		entry.SourceFile,
		entry.Page,
		string(entry.Status),
		entry.Stage,
		entry.OutputPath,
		entry.ErrorMessage,
		entry.ArrivedAt.UTC().Format(time.RFC3339Nano),
		entry.FinishedAt.UTC().Format(time.RFC3339Nano),
		entry.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert journal entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns the most recent entries, newest first, optionally filtered by
// status. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]Entry, error) {
	query := `SELECT id, job_id, source_file, page, status, stage, output_path,
        error_message, arrived_at, finished_at, duration_ms FROM jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Summary returns aggregate counts per status.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize journal: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, fmt.Errorf("scan summary row: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusSucceeded:
			summary.Succeeded = count
		case StatusFailed:
			summary.Failed = count
		case StatusAbandoned:
			summary.Abandoned = count
		}
	}
	return summary, rows.Err()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var entry Entry
	var status, arrived, finished string
	var durationMS int64
	if err := rows.Scan(
		&entry.ID,
		&entry.JobID,
		&entry.SourceFile,
		&entry.Page,
		&status,
		&entry.Stage,
		&entry.OutputPath,
		&entry.ErrorMessage,
		&arrived,
		&finished,
		&durationMS,
	); err != nil {
		return Entry{}, fmt.Errorf("scan journal row: %w", err)
	}
	entry.Status = Status(status)
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	if ts, err := time.Parse(time.RFC3339Nano, arrived); err == nil {
		entry.ArrivedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, finished); err == nil {
		entry.FinishedAt = ts
	}
	return entry, nil
}

var titleCaser = cases.Title(language.English)

// DisplayTitle derives a human-friendly title from a source document name,
// for the jobs table.
func DisplayTitle(sourceFile string) string {
	stem := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	stem = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		return "Untitled"
	}
	return titleCaser.String(stem)
}
