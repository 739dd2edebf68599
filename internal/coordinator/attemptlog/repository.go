package attemptlog

import "context"

// Repository is the port (interface) for persisting attempt log entries.
// The orchestrator depends on this abstraction, not on SQLite directly,
// so you can swap the implementation for Postgres, in-memory (tests), etc.
type Repository interface {
	// Save persists a new log entry. Each call appends a row; the table is
	// an append-only audit log, not an upsert.
	Save(ctx context.Context, entry *Entry) error

	// GetLatest returns the most recent entry for an attempt key.
	GetLatest(ctx context.Context, attemptKey string) (*Entry, error)

	// ListUnfinished returns the latest entry of every attempt whose phase
	// is not terminal, with Payload filled in from the STARTED row. Used by
	// the startup recovery sweep.
	ListUnfinished(ctx context.Context) ([]*Entry, error)
}
