// Package sqlite provides a SQLite-backed implementation of
// attemptlog.Repository.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — important because the saga goroutine writes while the HTTP handler
// may be reading (the attempt status endpoint).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jcmexdev/vending-sagas/internal/coordinator/attemptlog"

	// Register the pure-Go SQLite driver.
	// We use modernc.org/sqlite instead of mattn/go-sqlite3 to avoid CGO
	// requirements, making it easier to build and run in Docker (Alpine).
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup.
// The table is append-only: each row is an immutable event in the attempt's
// lifecycle. The row with the highest id per attempt_key is the current state.
const schema = `
CREATE TABLE IF NOT EXISTS saga_attempts (
    -- Surrogate primary key — auto-incremented by SQLite.
    id              INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Idempotency key of the order placement this row belongs to.
    -- Not UNIQUE because multiple rows exist per attempt (one per transition).
    attempt_key     TEXT        NOT NULL,

    -- Lifecycle phase at the time this row was written.
    phase           TEXT        NOT NULL,

    -- Name of the step that just executed (e.g. "reserve_stock").
    current_step    TEXT        NOT NULL DEFAULT '',

    -- JSON payload that started the attempt. Written once on STARTED, NULL after.
    payload         TEXT,

    -- JSON array of error strings accumulated during failure/compensation.
    error_messages  TEXT        NOT NULL DEFAULT '[]',

    -- Wall-clock timestamp of this event (RFC3339 stored as TEXT, SQLite idiom).
    updated_at      TEXT        NOT NULL
);

-- Index for the most common query: "give me all events for attempt X in order".
CREATE INDEX IF NOT EXISTS idx_saga_attempts_key ON saga_attempts(attempt_key, id);
`

// Repository is the SQLite implementation of attemptlog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path and applies
// the schema. WAL mode is enabled for better concurrent read/write performance.
//
//	repo, err := sqlite.Open("./data/attempts.db")
func Open(path string) (*Repository, error) {
	// The pure-Go driver uses _pragma query parameters to configure connection state.
	// WAL enables concurrent readers. busy_timeout waits for locks instead of
	// failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	// Use "sqlite", not "sqlite3" for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts a new attempt log entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *attemptlog.Entry) error {
	const q = `
		INSERT INTO saga_attempts
			(attempt_key, phase, current_step, payload, error_messages, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?)`

	errorMessages := entry.ErrorMessages
	if errorMessages == "" {
		errorMessages = "[]"
	}

	_, err := r.db.ExecContext(ctx, q,
		entry.AttemptKey,
		string(entry.Phase),
		entry.CurrentStep,
		nullableString(entry.Payload),
		errorMessages,
		entry.UpdatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save attempt log for %q: %w", entry.AttemptKey, err)
	}
	return nil
}

// GetLatest returns the most recent log entry for a given attempt key.
func (r *Repository) GetLatest(ctx context.Context, attemptKey string) (*attemptlog.Entry, error) {
	const q = `
		SELECT attempt_key, phase, current_step, COALESCE(payload,''), error_messages, updated_at
		FROM   saga_attempts
		WHERE  attempt_key = ?
		ORDER  BY id DESC
		LIMIT  1`

	row := r.db.QueryRowContext(ctx, q, attemptKey)

	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sqlite: attempt %q not found", attemptKey)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get latest for %q: %w", attemptKey, err)
	}
	return entry, nil
}

// ListUnfinished returns the current (latest) entry of every non-terminal
// attempt. The payload is pulled from the most recent payload-bearing row
// (the STARTED row of the latest submission) so recovery can replay the
// attempt input; a key re-submitted after FAILED has several STARTED rows
// and must still yield exactly one entry.
func (r *Repository) ListUnfinished(ctx context.Context) ([]*attemptlog.Entry, error) {
	const q = `
		SELECT cur.attempt_key, cur.phase, cur.current_step,
		       COALESCE(started.payload, ''), cur.error_messages, cur.updated_at
		FROM   saga_attempts cur
		JOIN   (SELECT attempt_key, MAX(id) AS max_id
		        FROM saga_attempts GROUP BY attempt_key) last
		       ON cur.id = last.max_id
		LEFT JOIN saga_attempts started
		       ON started.id = (SELECT MAX(s.id) FROM saga_attempts s
		                        WHERE s.attempt_key = cur.attempt_key
		                          AND s.payload IS NOT NULL)
		WHERE  cur.phase NOT IN ('COMMITTED', 'FAILED')
		ORDER  BY cur.id`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list unfinished attempts: %w", err)
	}
	defer rows.Close()

	var entries []*attemptlog.Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan unfinished attempt: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (*attemptlog.Entry, error) {
	var entry attemptlog.Entry
	var updatedAt string
	err := scan(
		&entry.AttemptKey,
		&entry.Phase,
		&entry.CurrentStep,
		&entry.Payload,
		&entry.ErrorMessages,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.UpdatedAt, err = parseRFC3339(updatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// applySchema runs the DDL statements once. Idempotent due to IF NOT EXISTS.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so SQLite stores NULL instead
// of an empty TEXT — keeps the payload column clean on non-STARTED rows.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
