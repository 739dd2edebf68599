package coordinator

import (
	"context"
	"fmt"

	"github.com/jcmexdev/vending-sagas/internal/coordinator/attemptlog"
	"github.com/jcmexdev/vending-sagas/internal/order-service/core/domain/entity"
	"github.com/jcmexdev/vending-sagas/internal/order-service/core/ports"
)

// InventoryGateway is the slice of the inventory service the saga needs.
// Both calls carry the attempt's idempotency key; Release only credits the
// ledger if a reservation under the same key actually landed, which makes
// compensating an ambiguous Reserve safe.
type InventoryGateway interface {
	Reserve(ctx context.Context, key string, usage map[string]int) error
	Release(ctx context.Context, key string, usage map[string]int) error
}

// BillingGateway is the slice of the billing service the saga needs.
type BillingGateway interface {
	Charge(ctx context.Context, key string, amountTendered, totalPrice int) (change int, err error)
	Refund(ctx context.Context, key string, totalPrice int) error
}

// --- ReserveStockStep ---

type ReserveStockStep struct {
	gateway InventoryGateway
	key     string
	usage   map[string]int
}

func NewReserveStockStep(gateway InventoryGateway, key string, usage map[string]int) *ReserveStockStep {
	return &ReserveStockStep{gateway: gateway, key: key, usage: usage}
}

func (s *ReserveStockStep) Name() string { return "reserve_stock" }

func (s *ReserveStockStep) Phase() attemptlog.Phase { return attemptlog.PhaseStockReserved }

func (s *ReserveStockStep) Execute(ctx context.Context) error {
	if err := s.gateway.Reserve(ctx, s.key, s.usage); err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	return nil
}

// Compensate credits back exactly the amounts reserved in Execute.
func (s *ReserveStockStep) Compensate(ctx context.Context) error {
	if err := s.gateway.Release(ctx, s.key, s.usage); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}

// --- ChargePaymentStep ---

type ChargePaymentStep struct {
	gateway        BillingGateway
	key            string
	amountTendered int
	totalPrice     int
	change         int
}

func NewChargePaymentStep(gateway BillingGateway, key string, amountTendered, totalPrice int) *ChargePaymentStep {
	return &ChargePaymentStep{
		gateway:        gateway,
		key:            key,
		amountTendered: amountTendered,
		totalPrice:     totalPrice,
	}
}

func (s *ChargePaymentStep) Name() string { return "charge_payment" }

func (s *ChargePaymentStep) Phase() attemptlog.Phase { return attemptlog.PhasePaid }

func (s *ChargePaymentStep) Execute(ctx context.Context) error {
	change, err := s.gateway.Charge(ctx, s.key, s.amountTendered, s.totalPrice)
	if err != nil {
		return fmt.Errorf("charge payment: %w", err)
	}
	s.change = change
	return nil
}

// Change returns the change computed by a successful Execute.
func (s *ChargePaymentStep) Change() int { return s.change }

func (s *ChargePaymentStep) Compensate(ctx context.Context) error {
	if err := s.gateway.Refund(ctx, s.key, s.totalPrice); err != nil {
		return fmt.Errorf("refund payment: %w", err)
	}
	return nil
}

// --- CommitOrderStep ---

// CommitOrderStep persists the order record. It runs after the payment
// pivot: its failure is retried forward and never triggers compensation.
type CommitOrderStep struct {
	recorder ports.OrderRecorder
	key      string
	menuID   int64
	quantity int
	price    int
	charge   *ChargePaymentStep
	orderID  int64
}

func NewCommitOrderStep(recorder ports.OrderRecorder, key string, menuID int64, quantity, price int, charge *ChargePaymentStep) *CommitOrderStep {
	return &CommitOrderStep{
		recorder: recorder,
		key:      key,
		menuID:   menuID,
		quantity: quantity,
		price:    price,
		charge:   charge,
	}
}

func (s *CommitOrderStep) Name() string { return "commit_order" }

func (s *CommitOrderStep) Phase() attemptlog.Phase { return attemptlog.PhaseCommitted }

func (s *CommitOrderStep) ForwardOnly() bool { return true }

func (s *CommitOrderStep) Execute(ctx context.Context) error {
	id, err := s.recorder.CommitOrder(ctx, entity.Order{
		MenuID:         s.menuID,
		Quantity:       s.quantity,
		TotalPrice:     s.price,
		ChangeAmount:   s.charge.Change(),
		IdempotencyKey: s.key,
	})
	if err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	s.orderID = id
	return nil
}

// OrderID returns the ID assigned on commit.
func (s *CommitOrderStep) OrderID() int64 { return s.orderID }

func (s *CommitOrderStep) Compensate(ctx context.Context) error {
	// Last step; never compensated.
	return nil
}
