package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vidqc/internal/qc"
)

var (
	// ErrNotFound reports that no run matches the requested id.
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguousID reports an id prefix matching more than one run.
	ErrAmbiguousID = errors.New("run id prefix is ambiguous")
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// minPrefixLen guards against listing-by-accident with very short prefixes.
const minPrefixLen = 4

// Run is the summary row for one analysed file.
type Run struct {
	RunID        string    `json:"run_id"`
	File         string    `json:"file"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Duration     float64   `json:"duration_seconds"`
	Channels     int       `json:"channels"`
	IssueCount   int       `json:"issue_count"`
	FailedChecks int       `json:"failed_checks"`
}

// ListOptions filters List.
type ListOptions struct {
	Limit int
	// File restricts results to an exact path.
	File string
}

// Store persists analysis reports in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the history database and applies migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; concurrent analyze workers funnel through the pool
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
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

// Save records report and its per-check results. Saving the same run id
// again replaces the earlier row.
func (s *Store) Save(ctx context.Context, report *qc.Report) error {
	if report == nil || strings.TrimSpace(report.RunID) == "" {
		return errors.New("history: report without run id")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{
		"DELETE FROM check_results WHERE run_id = ?",
		"DELETE FROM runs WHERE run_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, report.RunID); err != nil {
			return fmt.Errorf("replace run: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (
            run_id, file, started_at, finished_at, duration_seconds,
            channels, issue_count, failed_checks, report_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.File,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		report.Metadata.Duration,
		report.Channels,
		report.IssueCount(),
		len(report.FailedChecks()),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, check := range report.Checks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO check_results (run_id, position, name, status, finding_count, detail)
            VALUES (?, ?, ?, ?, ?, ?)`,
			report.RunID, i, check.Name, string(check.Status), check.Count, nullableString(check.Detail),
		)
		if err != nil {
			return fmt.Errorf("insert check %s: %w", check.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Run, error) {
	query := `SELECT run_id, file, started_at, finished_at, duration_seconds,
            channels, issue_count, failed_checks FROM runs`
	var args []any
	if opts.File != "" {
		query += " WHERE file = ?"
		args = append(args, opts.File)
	}
	query += " ORDER BY started_at DESC, run_id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
		)
		if err := rows.Scan(&run.RunID, &run.File, &started, &finished, &run.Duration,
			&run.Channels, &run.IssueCount, &run.FailedChecks); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Get loads the full report for id. A unique prefix of at least four
// characters is accepted.
func (s *Store) Get(ctx context.Context, id string) (*qc.Report, error) {
	runID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}
	var payload string
	row := s.db.QueryRowContext(ctx, "SELECT report_json FROM runs WHERE run_id = ?", runID)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load run: %w", err)
	}
	var report qc.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &report, nil
}

// Checks returns the stored check results for id in execution order.
func (s *Store) Checks(ctx context.Context, id string) ([]qc.CheckResult, error) {
	runID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, status, finding_count, detail FROM check_results WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var results []qc.CheckResult
	for rows.Next() {
		var (
			result qc.CheckResult
			status string
			detail sql.NullString
		)
		if err := rows.Scan(&result.Name, &status, &result.Count, &detail); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		result.Status = qc.Status(status)
		result.Detail = detail.String
		results = append(results, result)
	}
	return results, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, errors.New("history: keep must be >= 0")
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE run_id NOT IN (
            SELECT run_id FROM runs ORDER BY started_at DESC, run_id LIMIT ?
        )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM check_results WHERE run_id NOT IN (SELECT run_id FROM runs)"); err != nil {
		return 0, fmt.Errorf("prune checks: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) resolveID(ctx context.Context, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	var exact int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM runs WHERE run_id = ?", id).Scan(&exact); err != nil {
		return "", fmt.Errorf("lookup run: %w", err)
	}
	if exact == 1 {
		return id, nil
	}
	if len(id) < minPrefixLen {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT run_id FROM runs WHERE substr(run_id, 1, ?) = ? LIMIT 2", len(id), id)
	if err != nil {
		return "", fmt.Errorf("lookup run prefix: %w", err)
	}
	defer rows.Close()
	var matches []string
	for rows.Next() {
		var match string
		if err := rows.Scan(&match); err != nil {
			return "", fmt.Errorf("scan run id: %w", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func nowString() string {
	return time.Now().UTC().Format(timeLayout)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
