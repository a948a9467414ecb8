package diag

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists diagnostics to SQLite, suitable for
// single-process production use and for inspecting failures across
// long measurement runs.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite diagnostics store.
// The path should be a file path (e.g. "./diagnostics.db") or
// ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS diagnostics (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			node TEXT NOT NULL,
			phase TEXT NOT NULL,
			severity INTEGER NOT NULL,
			upstream TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_diagnostics_run
		ON diagnostics(run_id, frame)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO diagnostics (run_id, frame, node, phase, severity, upstream, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Frame, rec.Node, rec.Phase, int(rec.Severity),
		rec.Upstream, rec.Message, rec.Timestamp.Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("append diagnostic: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(runID string) ([]Record, error) {
	return s.query(`
		SELECT run_id, frame, node, phase, severity, upstream, message, timestamp
		FROM diagnostics WHERE run_id = ? ORDER BY seq
	`, runID)
}

// ListFrame implements Store.
func (s *SQLiteStore) ListFrame(runID string, frame uint64) ([]Record, error) {
	return s.query(`
		SELECT run_id, frame, node, phase, severity, upstream, message, timestamp
		FROM diagnostics WHERE run_id = ? AND frame = ? ORDER BY seq
	`, runID, frame)
}

func (s *SQLiteStore) query(q string, args ...any) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		var rec Record
		var severity int
		var ts string
		if err := rows.Scan(&rec.RunID, &rec.Frame, &rec.Node, &rec.Phase,
			&severity, &rec.Upstream, &rec.Message, &ts); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		rec.Severity = Severity(severity)
		if parsed, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			rec.Timestamp = parsed
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec(`DELETE FROM diagnostics WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
