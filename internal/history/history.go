// Package history persists completed run results to a local SQLite
// database (~/.local/share/polyflow/history.db by default).
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

// Store wraps an SQLite database holding run history.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the default history database path, honoring
// XDG_DATA_HOME.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "polyflow", "history.db")
}

// Open opens the history database at path, creating parent directories
// and the schema as needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id       TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL DEFAULT '',
			task         TEXT NOT NULL,
			success      INTEGER NOT NULL,
			reason       TEXT NOT NULL,
			iterations   INTEGER NOT NULL,
			final_answer TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			started_at   DATETIME NOT NULL,
			finished_at  DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

// Save records one completed run.
func (s *Store) Save(res *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO runs
			(run_id, user_id, task, success, reason, iterations, final_answer, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.UserID, res.Task, boolToInt(res.Success), string(res.Reason),
		res.Iterations, res.FinalAnswer, res.Err,
		res.StartedAt.UTC().Format(time.RFC3339), res.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", res.RunID, err)
	}
	return nil
}

// Entry is one row of run history.
type Entry struct {
	RunID      string
	UserID     string
	Task       string
	Success    bool
	Reason     models.Reason
	Iterations int
	StartedAt  time.Time
}

// List returns the most recent runs, newest first, up to limit.
func (s *Store) List(limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 20
	}

	rows, err := s.conn.Query(`
		SELECT run_id, user_id, task, success, reason, iterations, started_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			success int
			reason  string
			started string
		)
		if err := rows.Scan(&e.RunID, &e.UserID, &e.Task, &success, &reason, &e.Iterations, &started); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		e.Success = success != 0
		e.Reason = models.Reason(reason)
		e.StartedAt, err = time.Parse(time.RFC3339, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", e.RunID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the stored final answer for a run id.
func (s *Store) Get(runID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var answer string
	err := s.conn.QueryRow(`SELECT final_answer FROM runs WHERE run_id = ?`, runID).Scan(&answer)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return "", fmt.Errorf("get run %s: %w", runID, err)
	}
	return answer, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
