// Package app drives the order-placement saga: menu lookup, stock
// reservation, payment, and the final order commit, with compensation on
// partial failure and recovery of attempts interrupted by a crash.
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/vending-sagas/internal/coordinator"
	"github.com/jcmexdev/vending-sagas/internal/coordinator/attemptlog"
	"github.com/jcmexdev/vending-sagas/internal/order-service/core/domain/entity"
	"github.com/jcmexdev/vending-sagas/internal/order-service/core/ports"
	"github.com/jcmexdev/vending-sagas/internal/pkg/alert"
	"github.com/jcmexdev/vending-sagas/internal/pkg/cache"
	"github.com/jcmexdev/vending-sagas/internal/pkg/metrics"
)

const receiptCacheTTL = 24 * time.Hour

// Service wires the saga dependencies together. One Service serves all
// requests; per-attempt state lives in the orchestrator and its steps.
type Service struct {
	menus     ports.MenuRepository
	orders    ports.OrderRepository
	inventory coordinator.InventoryGateway
	billing   coordinator.BillingGateway
	attempts  attemptlog.Repository
	receipts  cache.Cache
	notifier  alert.Notifier
	saga      *metrics.Saga
}

func NewService(
	menus ports.MenuRepository,
	orders ports.OrderRepository,
	inventory coordinator.InventoryGateway,
	billing coordinator.BillingGateway,
	attempts attemptlog.Repository,
	receipts cache.Cache,
	notifier alert.Notifier,
	saga *metrics.Saga,
) *Service {
	if receipts == nil {
		receipts = cache.Noop{}
	}
	if notifier == nil {
		notifier = alert.LogNotifier{}
	}
	return &Service{
		menus:     menus,
		orders:    orders,
		inventory: inventory,
		billing:   billing,
		attempts:  attempts,
		receipts:  receipts,
		notifier:  notifier,
		saga:      saga,
	}
}

// attemptPayload is the JSON stored on the attempt's STARTED row. It holds
// everything recovery needs to finish or unwind the attempt; change is not
// stored because it is derivable (payment − total price).
type attemptPayload struct {
	MenuID        int64          `json:"menu_id"`
	MenuName      string         `json:"menu_name"`
	Quantity      int            `json:"quantity"`
	PaymentAmount int            `json:"payment_amount"`
	TotalPrice    int            `json:"total_price"`
	Usage         map[string]int `json:"usage"`
}

// PlaceOrder runs one saga attempt to a terminal state. The idempotency
// key makes the whole call replayable: a key that already committed
// returns the original receipt without touching any ledger.
func (s *Service) PlaceOrder(ctx context.Context, key string, menuID int64, quantity, paymentAmount int) (entity.Receipt, error) {
	if quantity <= 0 {
		return entity.Receipt{}, entity.ErrInvalidQuantity
	}
	if paymentAmount < 0 {
		return entity.Receipt{}, entity.ErrInvalidPayment
	}
	if key == "" {
		key = uuid.NewString()
	}

	if receipt, ok := s.replayReceipt(ctx, key); ok {
		return receipt, nil
	}

	menu, err := s.menus.GetMenuItem(ctx, menuID)
	if err != nil {
		return entity.Receipt{}, err
	}

	usage := menu.UsageFor(quantity)
	totalPrice := menu.Price * quantity

	payload, err := json.Marshal(attemptPayload{
		MenuID:        menuID,
		MenuName:      menu.Name,
		Quantity:      quantity,
		PaymentAmount: paymentAmount,
		TotalPrice:    totalPrice,
		Usage:         usage,
	})
	if err != nil {
		return entity.Receipt{}, err
	}

	reserve := coordinator.NewReserveStockStep(s.inventory, key, usage)
	charge := coordinator.NewChargePaymentStep(s.billing, key, paymentAmount, totalPrice)
	commit := coordinator.NewCommitOrderStep(s.orders, key, menuID, quantity, totalPrice, charge)

	orch := coordinator.NewOrchestrator(key, []coordinator.Step{reserve, charge, commit}, s.attempts, s.notifier).
		WithMetrics(s.saga)

	// The saga must reach a terminal state even if the client disconnects:
	// ledger mutations are externally visible once issued.
	sagaCtx := context.WithoutCancel(ctx)
	if err := orch.Start(sagaCtx, string(payload)); err != nil {
		return entity.Receipt{}, err
	}

	receipt := entity.Receipt{
		OrderID:    commit.OrderID(),
		MenuName:   menu.Name,
		Quantity:   quantity,
		TotalPrice: totalPrice,
		Change:     charge.Change(),
	}
	s.cacheReceipt(sagaCtx, key, receipt)
	return receipt, nil
}

// GetMenu lists the menu reference data.
func (s *Service) GetMenu(ctx context.Context) ([]entity.MenuItem, error) {
	return s.menus.ListMenu(ctx)
}

// AttemptStatus returns the latest attempt log entry for a key.
func (s *Service) AttemptStatus(ctx context.Context, key string) (*attemptlog.Entry, error) {
	return s.attempts.GetLatest(ctx, key)
}

// Recover sweeps attempts left non-terminal by a crash and drives each to
// a terminal state: anything before the payment pivot is released, a paid
// attempt gets its order commit retried. Run once at startup.
func (s *Service) Recover(ctx context.Context) error {
	entries, err := s.attempts.ListUnfinished(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		var payload attemptPayload
		if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
			s.notifier.Escalate(ctx, alert.Event{
				Severity:   alert.SeverityCritical,
				AttemptKey: entry.AttemptKey,
				Reason:     "unrecoverable_attempt",
				Detail:     "attempt payload missing or malformed",
				OccurredAt: time.Now().UTC(),
			})
			continue
		}

		slog.InfoContext(ctx, "recovering interrupted attempt",
			"attempt_key", entry.AttemptKey, "phase", string(entry.Phase))

		switch entry.Phase {
		case attemptlog.PhasePaid:
			s.recoverPaid(ctx, entry.AttemptKey, payload)
		default:
			// STARTED, STOCK_RESERVED or COMPENSATING. Release is keyed and
			// conditional on the reservation having landed, so it is safe
			// even when the crash hit before the reserve call went out.
			s.recoverUnpaid(ctx, entry.AttemptKey, payload)
		}
	}
	return nil
}

func (s *Service) recoverUnpaid(ctx context.Context, key string, payload attemptPayload) {
	// The crash window may hide a charge that landed before its PAID row
	// was written, so the refund runs alongside the release. Both are
	// keyed no-ops when the forward call never arrived.
	release := func(ctx context.Context) error { return s.inventory.Release(ctx, key, payload.Usage) }
	refund := func(ctx context.Context) error { return s.billing.Refund(ctx, key, payload.TotalPrice) }

	for _, compensate := range []func(context.Context) error{release, refund} {
		policy := coordinator.DefaultCompensationRetry
		var err error
		for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
			if err = compensate(ctx); err == nil {
				break
			}
			time.Sleep(time.Duration(attempt) * policy.Backoff)
		}
		if err != nil {
			// Stays non-terminal; the next sweep picks it up again.
			s.notifier.Escalate(ctx, alert.Event{
				Severity:   alert.SeverityCritical,
				AttemptKey: key,
				Reason:     "compensation_failed",
				Detail:     err.Error(),
				OccurredAt: time.Now().UTC(),
			})
			return
		}
	}
	s.recordRecovery(ctx, key, attemptlog.PhaseFailed, "recover_release")
}

func (s *Service) recoverPaid(ctx context.Context, key string, payload attemptPayload) {
	orderID, err := s.orders.CommitOrder(ctx, entity.Order{
		MenuID:         payload.MenuID,
		Quantity:       payload.Quantity,
		TotalPrice:     payload.TotalPrice,
		ChangeAmount:   payload.PaymentAmount - payload.TotalPrice,
		IdempotencyKey: key,
	})
	if err != nil {
		// The customer has been charged; never compensate here.
		s.notifier.Escalate(ctx, alert.Event{
			Severity:   alert.SeverityCritical,
			AttemptKey: key,
			Reason:     "order_commit_pending",
			Detail:     err.Error(),
			OccurredAt: time.Now().UTC(),
		})
		return
	}

	s.recordRecovery(ctx, key, attemptlog.PhaseCommitted, "recover_commit")
	s.cacheReceipt(ctx, key, entity.Receipt{
		OrderID:    orderID,
		MenuName:   payload.MenuName,
		Quantity:   payload.Quantity,
		TotalPrice: payload.TotalPrice,
		Change:     payload.PaymentAmount - payload.TotalPrice,
	})
}

func (s *Service) recordRecovery(ctx context.Context, key string, phase attemptlog.Phase, step string) {
	entry := &attemptlog.Entry{
		AttemptKey:  key,
		Phase:       phase,
		CurrentStep: step,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.attempts.Save(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to record recovery outcome", "attempt_key", key, "error", err)
	}
}

// replayReceipt short-circuits a repeated attempt key: first the redis
// fast path, then the durable orders table.
func (s *Service) replayReceipt(ctx context.Context, key string) (entity.Receipt, bool) {
	cacheKey := s.receipts.GenerateKey("receipt", key)
	if cached, err := s.receipts.Get(ctx, cacheKey); err == nil && cached != "" {
		var receipt entity.Receipt
		if err := json.Unmarshal([]byte(cached), &receipt); err == nil {
			return receipt, true
		}
	}

	order, found, err := s.orders.GetByIdempotencyKey(ctx, key)
	if err != nil || !found {
		return entity.Receipt{}, false
	}
	menu, err := s.menus.GetMenuItem(ctx, order.MenuID)
	if err != nil {
		return entity.Receipt{}, false
	}
	return entity.Receipt{
		OrderID:    order.ID,
		MenuName:   menu.Name,
		Quantity:   order.Quantity,
		TotalPrice: order.TotalPrice,
		Change:     order.ChangeAmount,
	}, true
}

func (s *Service) cacheReceipt(ctx context.Context, key string, receipt entity.Receipt) {
	content, err := json.Marshal(receipt)
	if err != nil {
		return
	}
	cacheKey := s.receipts.GenerateKey("receipt", key)
	if err := s.receipts.Set(ctx, cacheKey, string(content), receiptCacheTTL); err != nil {
		slog.WarnContext(ctx, "failed to cache receipt", "error", err)
	}
}
