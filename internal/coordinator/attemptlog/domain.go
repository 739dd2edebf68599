// Package attemptlog defines the domain types for the persisted saga
// attempt log.
//
// Every order placement is one attempt, keyed by its idempotency key. The
// log is a durable audit trail of each phase transition the attempt goes
// through. It serves two purposes:
//
//  1. Observability: you can query the store to see exactly where an
//     attempt is (or was) and which step produced an error.
//
//  2. Recovery: on restart, the order service reads the log and resumes or
//     compensates attempts that were in-flight when the process crashed —
//     a reservation without a payment must be released, a payment without
//     an order row must be committed.
package attemptlog

import "time"

// Phase is the lifecycle state of a saga attempt.
type Phase string

const (
	PhaseStarted       Phase = "STARTED"
	PhaseStockReserved Phase = "STOCK_RESERVED"
	PhasePaid          Phase = "PAID"
	PhaseCommitted     Phase = "COMMITTED"
	PhaseCompensating  Phase = "COMPENSATING"
	PhaseFailed        Phase = "FAILED"
)

// Terminal reports whether an attempt in this phase is finished.
func (p Phase) Terminal() bool {
	return p == PhaseCommitted || p == PhaseFailed
}

// Entry is a single row in the attempt log.
// It captures a point-in-time snapshot of one attempt.
type Entry struct {
	// AttemptKey is the idempotency key of the order placement.
	AttemptKey string

	// Phase is the lifecycle state at the time this row was written.
	Phase Phase

	// CurrentStep is the name of the step that was just executed or failed.
	CurrentStep string

	// Payload is the JSON-serialised input that started the attempt.
	// Stored once at STARTED so the attempt can be replayed from the log.
	Payload string

	// ErrorMessages accumulates failure details, one per failed step.
	// Stored as a JSON array of strings.
	ErrorMessages string

	// UpdatedAt is the wall-clock time of this log entry.
	UpdatedAt time.Time
}
