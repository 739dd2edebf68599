package billingservice

import (
	"context"
	"fmt"

	"github.com/jcmexdev/vending-sagas/internal/billing-service/domain"
)

const (
	opCharge = "charge"
	opRefund = "refund"
)

// IService exposes the cash ledger operations.
type IService interface {
	Snapshot(ctx context.Context) (domain.Ledger, error)
	Charge(ctx context.Context, key string, amountTendered, totalPrice int) (change int, err error)
	Refund(ctx context.Context, key string, totalPrice int) error
	PostCost(ctx context.Context, item string) error
}

type service struct {
	repo IRepo
}

func NewService(repo IRepo) IService {
	return &service{repo: repo}
}

func (s service) Snapshot(ctx context.Context) (domain.Ledger, error) {
	return s.repo.GetLedger(ctx)
}

// Charge validates payment against price and the register's ability to
// make change, then applies balance += price and sales += price in one
// transaction. A replayed key returns the originally computed change
// without touching the ledger again.
func (s service) Charge(ctx context.Context, key string, amountTendered, totalPrice int) (int, error) {
	if amountTendered < 0 || totalPrice < 0 {
		return 0, fmt.Errorf("negative amount: tendered=%d price=%d", amountTendered, totalPrice)
	}

	var change int
	err := s.repo.Transact(ctx, func(ctx context.Context) error {
		if key != "" {
			prior, found, err := s.repo.GetProcessed(ctx, opCharge, key)
			if err != nil {
				return err
			}
			if found {
				// A charge that was since refunded is consumed, not
				// replayable.
				_, refunded, err := s.repo.GetProcessed(ctx, opRefund, key)
				if err != nil {
					return err
				}
				if refunded {
					return domain.ErrAttemptCompensated
				}
				change = prior
				return nil
			}
		}

		ledger, err := s.repo.LockLedgerForUpdate(ctx)
		if err != nil {
			return err
		}

		if amountTendered < totalPrice {
			return domain.ErrInsufficientPayment
		}
		change = amountTendered - totalPrice
		if change > ledger.CashRegister {
			return domain.ErrInsufficientChange
		}

		ledger.CashRegister += totalPrice
		ledger.TotalSales += totalPrice
		if err := s.repo.UpdateLedger(ctx, ledger); err != nil {
			return err
		}

		if key != "" {
			return s.repo.MarkProcessed(ctx, opCharge, key, change)
		}
		return nil
	})
	return change, err
}

// Refund reverses a prior Charge's sales and balance effect exactly.
// Idempotent per key: a second delivery is a no-op, and so is a refund
// whose charge never landed — reversing a payment that was never taken
// would corrupt the register.
func (s service) Refund(ctx context.Context, key string, totalPrice int) error {
	if totalPrice < 0 {
		return fmt.Errorf("negative refund amount %d", totalPrice)
	}

	return s.repo.Transact(ctx, func(ctx context.Context) error {
		if key != "" {
			_, charged, err := s.repo.GetProcessed(ctx, opCharge, key)
			if err != nil {
				return err
			}
			if !charged {
				return nil
			}
			_, found, err := s.repo.GetProcessed(ctx, opRefund, key)
			if err != nil {
				return err
			}
			if found {
				return nil
			}
		}

		ledger, err := s.repo.LockLedgerForUpdate(ctx)
		if err != nil {
			return err
		}
		if ledger.CashRegister < totalPrice {
			// A refund should only ever undo a charge that is still in the
			// register; going below zero means the ledgers have diverged.
			return domain.ErrInsufficientFunds
		}
		ledger.CashRegister -= totalPrice
		ledger.TotalSales -= totalPrice
		if err := s.repo.UpdateLedger(ctx, ledger); err != nil {
			return err
		}

		if key != "" {
			return s.repo.MarkProcessed(ctx, opRefund, key, 0)
		}
		return nil
	})
}

// PostCost debits the register by the item's fixed unit cost and credits
// cumulative inventory cost. Triggered by replenishment, independent of
// the order saga.
func (s service) PostCost(ctx context.Context, item string) error {
	cost, ok := domain.UnitCosts[item]
	if !ok {
		return domain.ErrInvalidItem
	}

	return s.repo.Transact(ctx, func(ctx context.Context) error {
		ledger, err := s.repo.LockLedgerForUpdate(ctx)
		if err != nil {
			return err
		}
		if ledger.CashRegister < cost {
			return domain.ErrInsufficientFunds
		}
		ledger.CashRegister -= cost
		ledger.InventoryCost += cost
		return s.repo.UpdateLedger(ctx, ledger)
	})
}
