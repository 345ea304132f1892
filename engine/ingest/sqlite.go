package ingest

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/fn"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DeadLetter is a row in the dead-letter ledger.
type DeadLetter struct {
	FailedRow
	RunID    string
	FailedAt time.Time
	Attempts int
}

// SQLiteDeadLetters keeps failed rows in a local SQLite file so a later run
// can retry exactly those rows.
type SQLiteDeadLetters struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the ledger at path.
func OpenSQLite(path string) (*SQLiteDeadLetters, error) {
	if path == "" {
		path = "dead_letters.db"
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ingest: create ledger directory: %w", err)
		}
	}

	// The collector and an upsert run may share the file.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("ingest: open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	data, err := migrations.ReadFile("migrations/001_dead_letters.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ingest: read migration: %w", err)
	}
	if _, err := db.Exec(string(data)); err != nil {
		db.Close()
		return nil, fmt.Errorf("ingest: migrate ledger: %w", err)
	}
	return &SQLiteDeadLetters{db: db}, nil
}

// Record inserts rows, bumping the attempt count of rows already present.
func (s *SQLiteDeadLetters) Record(ctx context.Context, runID string, rows []FailedRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ingest: record dead letters: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dead_letters (row_id, row_index, stage, reason, run_id, failed_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(row_id) DO UPDATE SET
			stage = excluded.stage,
			reason = excluded.reason,
			run_id = excluded.run_id,
			failed_at = excluded.failed_at,
			attempts = dead_letters.attempts + 1`)
	if err != nil {
		return fmt.Errorf("ingest: record dead letters: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.RowID, r.Index, r.Stage, r.Reason, runID, now); err != nil {
			return fmt.Errorf("ingest: record %s: %w", r.RowID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ingest: record dead letters: %w", err)
	}
	return nil
}

// Resolve removes rows that have since been written.
func (s *SQLiteDeadLetters) Resolve(ctx context.Context, rowIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ingest: resolve dead letters: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM dead_letters WHERE row_id = ?`)
	if err != nil {
		return fmt.Errorf("ingest: resolve dead letters: %w", err)
	}
	defer stmt.Close()

	for _, id := range rowIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("ingest: resolve %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ingest: resolve dead letters: %w", err)
	}
	return nil
}

// Pending lists unresolved rows ordered by row index.
func (s *SQLiteDeadLetters) Pending(ctx context.Context) ([]DeadLetter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_id, row_index, stage, reason, run_id, failed_at, attempts
		FROM dead_letters ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("ingest: list dead letters: %w", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var (
			d        DeadLetter
			failedAt string
		)
		if err := rows.Scan(&d.RowID, &d.Index, &d.Stage, &d.Reason, &d.RunID, &failedAt, &d.Attempts); err != nil {
			return nil, fmt.Errorf("ingest: scan dead letter: %w", err)
		}
		d.FailedAt, _ = time.Parse(time.RFC3339Nano, failedAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ingest: list dead letters: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteDeadLetters) Close() error { return s.db.Close() }

// SelectPending filters records down to the rows still in the ledger.
func SelectPending(records []domain.Record, pending []DeadLetter) []domain.Record {
	want := make(map[string]bool, len(pending))
	for _, d := range pending {
		want[d.RowID] = true
	}
	return fn.Filter(records, func(r domain.Record) bool { return want[r.ID()] })
}
