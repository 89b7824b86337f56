// Package history persists reconciliation run records in a standalone
// SQLite file, kept apart from the order ledger so operators can archive
// or truncate it independently.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one reconciliation run: what ran, what it found, what it
// repaired, and what went wrong.
type RunRecord struct {
	ID                    int64    `json:"id"`
	Mode                  string   `json:"mode"`
	Trigger               string   `json:"trigger"` // "scheduled" | "manual"
	AccountsProcessed     int      `json:"accounts_processed"`
	OrdersChecked         int      `json:"orders_checked"`
	DiscrepanciesFound    int      `json:"discrepancies_found"`
	DiscrepanciesResolved int      `json:"discrepancies_resolved"`
	Errors                []string `json:"errors,omitempty"`
	Notes                 []string `json:"notes,omitempty"`
	StartedAt             int64    `json:"started_at"`
	FinishedAt            int64    `json:"finished_at"`
}

type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string

	maxRows int
}

func NewStore(path string, maxRows int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &Store{db: db, path: path, maxRows: maxRows}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reconciliation_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mode TEXT NOT NULL,
			trigger_type TEXT NOT NULL,
			accounts_processed INTEGER NOT NULL,
			orders_checked INTEGER NOT NULL,
			discrepancies_found INTEGER NOT NULL,
			discrepancies_resolved INTEGER NOT NULL,
			errors_json TEXT,
			notes_json TEXT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_mode ON reconciliation_runs(mode, id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append stores one run record and prunes old rows past the retention cap.
func (s *Store) Append(ctx context.Context, rec RunRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, fmt.Errorf("history store is closed")
	}
	errorsJSON, err := marshalList(rec.Errors)
	if err != nil {
		return 0, err
	}
	notesJSON, err := marshalList(rec.Notes)
	if err != nil {
		return 0, err
	}
	if rec.FinishedAt == 0 {
		rec.FinishedAt = time.Now().Unix()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO reconciliation_runs
		(mode, trigger_type, accounts_processed, orders_checked,
		 discrepancies_found, discrepancies_resolved, errors_json, notes_json,
		 started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.Mode, rec.Trigger, rec.AccountsProcessed, rec.OrdersChecked,
		rec.DiscrepanciesFound, rec.DiscrepanciesResolved, errorsJSON, notesJSON,
		rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.pruneLocked(ctx)
	return id, nil
}

func (s *Store) pruneLocked(ctx context.Context) {
	// Retention is best effort: a failed prune never fails the append.
	_, _ = s.db.ExecContext(ctx,
		`DELETE FROM reconciliation_runs WHERE id <= (
			SELECT id FROM reconciliation_runs ORDER BY id DESC LIMIT 1 OFFSET ?
		)`, s.maxRows)
}

// List returns run records for one mode, newest first.
func (s *Store) List(ctx context.Context, mode string, limit, offset int) ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("history store is closed")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, mode, trigger_type,
		accounts_processed, orders_checked, discrepancies_found,
		discrepancies_resolved, errors_json, notes_json, started_at, finished_at
		FROM reconciliation_runs WHERE mode = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		mode, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var errorsJSON, notesJSON sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Mode, &rec.Trigger,
			&rec.AccountsProcessed, &rec.OrdersChecked, &rec.DiscrepanciesFound,
			&rec.DiscrepanciesResolved, &errorsJSON, &notesJSON,
			&rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		rec.Errors = unmarshalList(errorsJSON.String)
		rec.Notes = unmarshalList(notesJSON.String)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func marshalList(list []string) (string, error) {
	if len(list) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}
