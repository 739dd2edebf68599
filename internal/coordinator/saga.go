package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcmexdev/vending-sagas/internal/coordinator/attemptlog"
	"github.com/jcmexdev/vending-sagas/internal/pkg/alert"
	"github.com/jcmexdev/vending-sagas/internal/pkg/metrics"
)

// Step represents a single unit of work in the saga.
// Each step before the pivot must have a compensating action to undo its
// effects. Steps run under the attempt's idempotency key, so executing a
// step (or its compensation) twice has the effect of executing it once.
type Step interface {
	Name() string
	// Phase is the attempt phase recorded after the step succeeds.
	Phase() attemptlog.Phase
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// forwardOnly marks steps past the pivot: once payment has succeeded, a
// failure here must be retried forward, never compensated — the customer
// has been charged and given change.
type forwardOnly interface {
	ForwardOnly() bool
}

// terminal is implemented by errors that are definitive rejections
// (insufficient stock, insufficient payment, ...). Everything else is an
// unknown outcome and is retried idempotently.
type terminal interface {
	Terminal() bool
}

// IsTerminal reports whether err is a definitive business rejection rather
// than an ambiguous transport failure.
func IsTerminal(err error) bool {
	var t terminal
	return errors.As(err, &t) && t.Terminal()
}

// ErrCommitPending is returned when the order record could not be written
// after a successful payment. The attempt stays in PAID for recovery; it is
// never compensated.
var ErrCommitPending = errors.New("order commit pending after successful payment")

// CompensationError reports a compensation that exhausted its retry budget.
// It represents a ledger discrepancy and is escalated, not swallowed.
type CompensationError struct {
	Step string
	Err  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation of %s failed: %v", e.Step, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }

// RetryPolicy bounds the retries of a single step or compensation.
// Backoff grows linearly with the attempt number.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

var (
	// DefaultStepRetry covers forward steps: a couple of retries resolve
	// most transient transport failures without holding the client long.
	DefaultStepRetry = RetryPolicy{MaxAttempts: 3, Backoff: 200 * time.Millisecond}
	// DefaultCompensationRetry is more generous: a released reservation is
	// mandatory for ledger correctness.
	DefaultCompensationRetry = RetryPolicy{MaxAttempts: 5, Backoff: 500 * time.Millisecond}
)

// Orchestrator drives one saga attempt through its steps, records every
// phase transition in the attempt log, and compensates executed steps in
// LIFO order when a later step fails.
type Orchestrator struct {
	attemptKey string
	steps      []Step
	log        attemptlog.Repository // nil-safe: logging skipped if nil
	notifier   alert.Notifier
	saga       *metrics.Saga // nil-safe
	stepRetry  RetryPolicy
	compRetry  RetryPolicy

	errs []string
}

func NewOrchestrator(attemptKey string, steps []Step, log attemptlog.Repository, notifier alert.Notifier) *Orchestrator {
	if notifier == nil {
		notifier = alert.LogNotifier{}
	}
	return &Orchestrator{
		attemptKey: attemptKey,
		steps:      steps,
		log:        log,
		notifier:   notifier,
		stepRetry:  DefaultStepRetry,
		compRetry:  DefaultCompensationRetry,
	}
}

// WithMetrics attaches saga counters.
func (o *Orchestrator) WithMetrics(saga *metrics.Saga) *Orchestrator {
	o.saga = saga
	return o
}

// WithRetryPolicies overrides the default step and compensation budgets.
func (o *Orchestrator) WithRetryPolicies(step, compensation RetryPolicy) *Orchestrator {
	o.stepRetry = step
	o.compRetry = compensation
	return o
}

// Start runs the saga steps sequentially until COMMITTED or FAILED.
// payload is the JSON-serialised attempt input, stored on the STARTED row
// so a crashed attempt can be recovered from the log alone.
func (o *Orchestrator) Start(ctx context.Context, payload string) error {
	start := time.Now()
	if o.saga != nil {
		o.saga.ObserveStarted()
	}
	o.record(ctx, attemptlog.PhaseStarted, "", payload)

	var executed []Step
	for _, step := range o.steps {
		slog.InfoContext(ctx, "executing saga step", "attempt_key", o.attemptKey, "step", step.Name())

		if err := o.executeWithRetry(ctx, step); err != nil {
			if fo, ok := step.(forwardOnly); ok && fo.ForwardOnly() {
				// Past the pivot. Leave the attempt non-terminal so the
				// recovery sweep retries the commit; never roll back the
				// charge because the order row write failed.
				o.appendError(fmt.Sprintf("%s: %v", step.Name(), err))
				o.record(ctx, attemptlog.PhasePaid, step.Name(), "")
				o.notifier.Escalate(ctx, alert.Event{
					Severity:   alert.SeverityCritical,
					AttemptKey: o.attemptKey,
					Reason:     "order_commit_pending",
					Detail:     err.Error(),
					OccurredAt: time.Now().UTC(),
				})
				if o.saga != nil {
					o.saga.ObserveFailed(time.Since(start), false)
				}
				return ErrCommitPending
			}

			slog.ErrorContext(ctx, "saga step failed, starting rollback",
				"attempt_key", o.attemptKey, "step", step.Name(), "error", err)
			o.appendError(fmt.Sprintf("%s: %v", step.Name(), err))

			// An ambiguous failure may have landed server-side, so the
			// failed step is compensated along with the steps before it;
			// its compensation is a keyed no-op if the call never arrived.
			// A terminal rejection definitively did not land.
			toCompensate := executed
			if !IsTerminal(err) {
				toCompensate = append(toCompensate, step)
			}
			if len(toCompensate) > 0 {
				o.record(ctx, attemptlog.PhaseCompensating, step.Name(), "")
				o.rollback(ctx, toCompensate)
			}
			o.record(ctx, attemptlog.PhaseFailed, step.Name(), "")
			if o.saga != nil {
				o.saga.ObserveFailed(time.Since(start), len(toCompensate) > 0)
			}
			return err
		}

		// Track successful step for potential compensation (LIFO).
		executed = append(executed, step)
		o.record(ctx, step.Phase(), step.Name(), "")
	}

	slog.InfoContext(ctx, "saga completed", "attempt_key", o.attemptKey)
	if o.saga != nil {
		o.saga.ObserveCompleted(time.Since(start))
	}
	return nil
}

// executeWithRetry retries ambiguous failures under the idempotency key.
// A timed-out call may have succeeded server-side, so re-executing is the
// only safe way to learn the outcome; terminal rejections abort at once.
func (o *Orchestrator) executeWithRetry(ctx context.Context, step Step) error {
	var err error
	for attempt := 1; attempt <= o.stepRetry.MaxAttempts; attempt++ {
		err = step.Execute(ctx)
		if err == nil || IsTerminal(err) {
			return err
		}
		slog.WarnContext(ctx, "saga step outcome unknown, retrying",
			"attempt_key", o.attemptKey, "step", step.Name(), "try", attempt, "error", err)
		if !sleep(ctx, time.Duration(attempt)*o.stepRetry.Backoff) {
			return err
		}
	}
	return err
}

// rollback compensates executed steps in reverse order. Each compensation
// is retried until it succeeds or the budget is exhausted; exhaustion is a
// ledger discrepancy and is escalated, never dropped.
func (o *Orchestrator) rollback(ctx context.Context, steps []Step) {
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		slog.InfoContext(ctx, "compensating saga step", "attempt_key", o.attemptKey, "step", step.Name())

		var err error
		for attempt := 1; attempt <= o.compRetry.MaxAttempts; attempt++ {
			err = step.Compensate(ctx)
			if err == nil {
				break
			}
			slog.WarnContext(ctx, "compensation failed, retrying",
				"attempt_key", o.attemptKey, "step", step.Name(), "try", attempt, "error", err)
			if !sleep(ctx, time.Duration(attempt)*o.compRetry.Backoff) {
				break
			}
		}
		if err != nil {
			compErr := &CompensationError{Step: step.Name(), Err: err}
			o.appendError(compErr.Error())
			o.notifier.Escalate(ctx, alert.Event{
				Severity:   alert.SeverityCritical,
				AttemptKey: o.attemptKey,
				Reason:     "compensation_failed",
				Detail:     compErr.Error(),
				OccurredAt: time.Now().UTC(),
			})
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, phase attemptlog.Phase, step, payload string) {
	if o.log == nil {
		return
	}
	errorMessages, _ := json.Marshal(o.errs)
	entry := &attemptlog.Entry{
		AttemptKey:    o.attemptKey,
		Phase:         phase,
		CurrentStep:   step,
		Payload:       payload,
		ErrorMessages: string(errorMessages),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := o.log.Save(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to persist attempt log entry",
			"attempt_key", o.attemptKey, "phase", string(phase), "error", err)
	}
}

func (o *Orchestrator) appendError(msg string) {
	o.errs = append(o.errs, msg)
}

// sleep waits d unless the context ends first; reports whether the caller
// should keep retrying.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
