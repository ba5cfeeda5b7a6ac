// Package archive persists batch and retry outcomes to a local SQLite
// database for operator audit. Pipeline entities themselves stay ephemeral;
// the archive only records what the manager layer reported upward.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/genomic-pipeline-orchestrator/internal/domain"
)

// SQLiteArchive implements domain.ReportArchive on a local SQLite file.
type SQLiteArchive struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteArchive opens (or creates) the archive database and its schema.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps concurrent report writes from blocking API reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteArchive{db: db, dbPath: dbPath}, nil
}

// createSchema creates the archive tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS batch_reports (
		batch_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		completed_at DATETIME NOT NULL,
		successful_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		report_json TEXT NOT NULL,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS retry_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		retried_count INTEGER NOT NULL,
		failed_final_count INTEGER NOT NULL,
		outcome_json TEXT NOT NULL,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_batch_reports_started ON batch_reports(started_at);
	CREATE INDEX IF NOT EXISTS idx_retry_outcomes_batch ON retry_outcomes(batch_id);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveBatchReport stores one batch report.
func (a *SQLiteArchive) SaveBatchReport(ctx context.Context, report *domain.BatchReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize batch report: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO batch_reports (batch_id, started_at, completed_at, successful_count, failed_count, report_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.BatchID, report.StartedAt, report.CompletedAt,
		report.SuccessfulCount, report.FailedCount, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save batch report: %w", err)
	}
	return nil
}

// SaveRetryOutcome stores one retry outcome against its originating batch.
func (a *SQLiteArchive) SaveRetryOutcome(ctx context.Context, batchID string, outcome *domain.RetryOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to serialize retry outcome: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO retry_outcomes (batch_id, retried_count, failed_final_count, outcome_json)
		 VALUES (?, ?, ?, ?)`,
		batchID, len(outcome.Retried), len(outcome.FailedFinal), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save retry outcome: %w", err)
	}
	return nil
}

// ListBatchReports returns the most recent batch reports, newest first.
func (a *SQLiteArchive) ListBatchReports(ctx context.Context, limit int) ([]*domain.BatchReport, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT report_json FROM batch_reports ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.BatchReport
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan batch report: %w", err)
		}
		report := &domain.BatchReport{}
		if err := json.Unmarshal([]byte(payload), report); err != nil {
			return nil, fmt.Errorf("failed to deserialize batch report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// GetBatchReport fetches one archived report by batch ID.
func (a *SQLiteArchive) GetBatchReport(ctx context.Context, batchID string) (*domain.BatchReport, error) {
	var payload string
	err := a.db.QueryRowContext(ctx,
		`SELECT report_json FROM batch_reports WHERE batch_id = ?`, batchID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query batch report: %w", err)
	}

	report := &domain.BatchReport{}
	if err := json.Unmarshal([]byte(payload), report); err != nil {
		return nil, fmt.Errorf("failed to deserialize batch report: %w", err)
	}
	return report, nil
}

// Close closes the underlying database.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
