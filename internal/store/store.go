// Package store provides the SQLite-backed answer history trail. Every routed
// answer is appended with its routing decision and provenance (retrieved
// chunk IDs, generated SQL), so operators can audit why a question went down
// one path and what the engine based the answer on.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/dataq-go/internal/router"
)

// Entry is one persisted answer record.
type Entry struct {
	// AnswerID is the UUID of the answer.
	AnswerID string
	// Dataset is the dataset the question was asked against.
	Dataset string
	// Question is the question text.
	Question string
	// Strategy is the answering path that was taken.
	Strategy string
	// Reason is the routing reason code.
	Reason string
	// Degraded records whether a collaborator failed.
	Degraded bool
	// SQL is the generated statement, if the schema path ran.
	SQL string
	// ChunkIDs are the retrieved chunk IDs, if the RAG path ran.
	ChunkIDs []string
	// CreatedAt is when the answer was persisted.
	CreatedAt time.Time
}

// History is a SQLite-backed answer trail. It implements router.Recorder and
// is safe for concurrent use.
type History struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database,
// ~/.dataq/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".dataq")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a History at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*History, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single writer connection avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	h := &History{db: db}
	if err := h.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

// migrate creates the schema if it does not already exist.
func (h *History) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS answers (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    answer_id   TEXT    NOT NULL,
    dataset     TEXT    NOT NULL,
    question    TEXT    NOT NULL,
    strategy    TEXT    NOT NULL CHECK(strategy IN ('rag','traditional')),
    reason      TEXT    NOT NULL,
    degraded    INTEGER NOT NULL DEFAULT 0,
    sql_text    TEXT    NOT NULL DEFAULT '',
    chunk_ids   TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_answers_dataset_created
    ON answers (dataset, created_at);
`
	if _, err := h.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record appends one answer to the trail.
func (h *History) Record(ctx context.Context, a *router.Answer) error {
	ids := make([]string, 0, len(a.Retrieved))
	for _, r := range a.Retrieved {
		ids = append(ids, r.Chunk.ID)
	}

	const q = `INSERT INTO answers
        (answer_id, dataset, question, strategy, reason, degraded, sql_text, chunk_ids, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := h.db.ExecContext(ctx, q,
		a.ID, a.DatasetID, a.Question,
		string(a.Decision.Strategy), a.Decision.Reason,
		boolToInt(a.Degraded), a.SQL, strings.Join(ids, ","),
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries for the dataset, ordered
// oldest-first. An empty dataset matches all datasets.
func (h *History) Recent(ctx context.Context, dataset string, n int) ([]Entry, error) {
	const q = `
SELECT answer_id, dataset, question, strategy, reason, degraded, sql_text, chunk_ids, created_at FROM (
    SELECT id, answer_id, dataset, question, strategy, reason, degraded, sql_text, chunk_ids, created_at
    FROM   answers
    WHERE  (? = '' OR dataset = ?)
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := h.db.QueryContext(ctx, q, dataset, dataset, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var degraded int
		var ids string
		var ts int64
		if err := rows.Scan(&e.AnswerID, &e.Dataset, &e.Question, &e.Strategy,
			&e.Reason, &degraded, &e.SQL, &ids, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		e.Degraded = degraded != 0
		if ids != "" {
			e.ChunkIDs = strings.Split(ids, ",")
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return entries, nil
}

// Ping verifies the database connection is still usable. It is used by the
// server's readiness probes.
func (h *History) Ping(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (h *History) Close() error {
	if err := h.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
