// Package store persists the per-meeting extraction cache and the
// append-only report log in a single SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"councildigest/internal/models"
)

// Store wraps the SQL database connection
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at path.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a small pool is plenty and keeps the
	// driver from piling up lock contention.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("✅ SQLite cache database ready")
	return s, nil
}

// initialize creates all required tables
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meeting_cache (
		meeting_code TEXT PRIMARY KEY,
		detail_json  TEXT NOT NULL,
		built_at     TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS reports (
		id           TEXT PRIMARY KEY,
		meeting_code TEXT NOT NULL,
		motion_id    INTEGER NOT NULL,
		reason       TEXT NOT NULL,
		comment      TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_meeting ON reports(meeting_code);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetCacheEntry returns the cache entry for a meeting, or nil when the
// meeting has never been extracted.
func (s *Store) GetCacheEntry(ctx context.Context, meetingCode string) (*models.CacheEntry, error) {
	var detailJSON string
	var builtAt time.Time

	err := s.db.QueryRowContext(ctx,
		`SELECT detail_json, built_at FROM meeting_cache WHERE meeting_code = ?`,
		meetingCode,
	).Scan(&detailJSON, &builtAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry := &models.CacheEntry{MeetingCode: meetingCode, BuiltAt: builtAt}
	if err := json.Unmarshal([]byte(detailJSON), &entry.Detail); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", meetingCode, err)
	}
	return entry, nil
}

// PutCacheEntry writes (or replaces) the cache entry for a meeting.
// The whole motion list is replaced atomically; entries are never
// patched in place.
func (s *Store) PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	detailJSON, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal detail: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meeting_cache (meeting_code, detail_json, built_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(meeting_code) DO UPDATE SET detail_json = excluded.detail_json, built_at = excluded.built_at`,
		entry.MeetingCode, string(detailJSON), entry.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// ListCacheEntries returns every persisted cache entry.
func (s *Store) ListCacheEntries(ctx context.Context) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT meeting_code, detail_json, built_at FROM meeting_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var entry models.CacheEntry
		var detailJSON string
		if err := rows.Scan(&entry.MeetingCode, &detailJSON, &entry.BuiltAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		if err := json.Unmarshal([]byte(detailJSON), &entry.Detail); err != nil {
			// One corrupt row should not take down the whole listing.
			log.Printf("⚠️  [STORE] Skipping corrupt cache entry %s: %v", entry.MeetingCode, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AppendReport appends one report to the log. Reports are never updated
// or deduplicated.
func (s *Store) AppendReport(ctx context.Context, report models.Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, meeting_code, motion_id, reason, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.MeetingCode, report.MotionID, report.Reason, report.Comment, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append report: %w", err)
	}
	return nil
}

// ReportSummary counts incorrect-information reports per motion. An
// empty meetingCode aggregates across all meetings.
func (s *Store) ReportSummary(ctx context.Context, meetingCode string) ([]models.MotionReportSummary, error) {
	query := `SELECT meeting_code, motion_id, COUNT(*)
		FROM reports
		WHERE reason = ?`
	args := []interface{}{models.ReasonIncorrectInformation}
	if meetingCode != "" {
		query += ` AND meeting_code = ?`
		args = append(args, meetingCode)
	}
	query += ` GROUP BY meeting_code, motion_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize reports: %w", err)
	}
	defer rows.Close()

	summaries := []models.MotionReportSummary{}
	for rows.Next() {
		var summary models.MotionReportSummary
		if err := rows.Scan(&summary.MeetingCode, &summary.MotionID, &summary.IncorrectReports); err != nil {
			return nil, fmt.Errorf("failed to scan report summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
