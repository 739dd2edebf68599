// Package alert escalates states that represent a financial or stock
// discrepancy: a compensation that exhausted its retry budget, or an order
// commit left pending after a successful payment. These are not user-facing
// errors; they need an operator.
package alert

import (
	"context"
	"log/slog"
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// Event is one operational escalation.
type Event struct {
	Severity   Severity  `json:"severity"`
	AttemptKey string    `json:"attempt_key"`
	Reason     string    `json:"reason"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers escalations to whoever is on call.
type Notifier interface {
	Escalate(ctx context.Context, event Event)
}

// LogNotifier writes escalations to the structured log. It is the fallback
// when no broker is configured, and the floor for every other notifier:
// an escalation must never be silently dropped.
type LogNotifier struct{}

func (LogNotifier) Escalate(ctx context.Context, event Event) {
	slog.ErrorContext(ctx, "OPERATIONAL ALERT",
		"severity", string(event.Severity),
		"attempt_key", event.AttemptKey,
		"reason", event.Reason,
		"detail", event.Detail,
	)
}
