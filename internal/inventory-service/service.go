package inventoryservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/vending-sagas/internal/inventory-service/domain"
)

const (
	opReserve = "reserve"
	opRelease = "release"
)

// IService exposes the ledger operations. Reserve and Release carry the
// caller's idempotency key; with an empty key deduplication is skipped.
type IService interface {
	Snapshot(ctx context.Context) (domain.Ledger, error)
	Reserve(ctx context.Context, key string, usage map[string]int) error
	Release(ctx context.Context, key string, usage map[string]int) error
	Replenish(ctx context.Context, item string, amount int) error
}

// BillingGateway posts replenishment costs to the billing service.
type BillingGateway interface {
	PostCost(ctx context.Context, item string) error
}

type service struct {
	repo    IRepo
	billing BillingGateway
}

func NewService(repo IRepo, billing BillingGateway) IService {
	return &service{repo: repo, billing: billing}
}

func (s service) Snapshot(ctx context.Context) (domain.Ledger, error) {
	return s.repo.GetLedger(ctx)
}

// Reserve debits every requested resource in one atomic step. If any
// resource is short, nothing is reserved and the error names every
// deficient resource. A repeated key is a no-op: the first delivery
// already debited the ledger.
func (s service) Reserve(ctx context.Context, key string, usage map[string]int) error {
	if err := validateUsage(usage); err != nil {
		return err
	}

	return s.repo.Transact(ctx, func(ctx context.Context) error {
		if key != "" {
			done, err := s.repo.IsProcessed(ctx, opReserve, key)
			if err != nil {
				return err
			}
			if done {
				// A reservation that was since released is consumed, not
				// replayable: reporting success here would let an order
				// commit without any stock debited.
				released, err := s.repo.IsProcessed(ctx, opRelease, key)
				if err != nil {
					return err
				}
				if released {
					return domain.ErrAttemptCompensated
				}
				return nil
			}
		}

		ledger, err := s.repo.LockLedgerForUpdate(ctx)
		if err != nil {
			return err
		}

		var deficient []string
		for _, name := range domain.ResourceNames {
			if ledger.Get(name) < usage[name] {
				deficient = append(deficient, name)
			}
		}
		if len(deficient) > 0 {
			return &domain.InsufficientStockError{Deficient: deficient}
		}

		for _, name := range domain.ResourceNames {
			ledger.Apply(name, -usage[name])
		}
		if err := s.repo.UpdateLedger(ctx, ledger); err != nil {
			return err
		}

		if key != "" {
			return s.repo.MarkProcessed(ctx, opReserve, key)
		}
		return nil
	})
}

// Release is the compensating credit for a prior Reserve. Re-invoking it
// for an already-released reservation must not double-credit the ledger,
// so the key is deduplicated in the same transaction as the credit. A
// Release whose Reserve never landed (the reservation call timed out
// before reaching us) is likewise a no-op: crediting stock that was never
// debited would corrupt the ledger.
func (s service) Release(ctx context.Context, key string, usage map[string]int) error {
	if err := validateUsage(usage); err != nil {
		return err
	}

	return s.repo.Transact(ctx, func(ctx context.Context) error {
		if key != "" {
			reserved, err := s.repo.IsProcessed(ctx, opReserve, key)
			if err != nil {
				return err
			}
			if !reserved {
				return nil
			}
			done, err := s.repo.IsProcessed(ctx, opRelease, key)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}

		ledger, err := s.repo.LockLedgerForUpdate(ctx)
		if err != nil {
			return err
		}
		for _, name := range domain.ResourceNames {
			ledger.Apply(name, usage[name])
		}
		if err := s.repo.UpdateLedger(ctx, ledger); err != nil {
			return err
		}

		if key != "" {
			return s.repo.MarkProcessed(ctx, opRelease, key)
		}
		return nil
	})
}

// Replenish credits a single resource and posts the replenishment cost to
// billing. The posting is not part of the saga: a failure is logged for
// the cost-accounting reconciliation, never rolled into the stock credit.
func (s service) Replenish(ctx context.Context, item string, amount int) error {
	if !domain.ValidResource(item) {
		return domain.ErrInvalidResource
	}
	if amount <= 0 {
		return fmt.Errorf("replenish amount must be positive, got %d", amount)
	}

	err := s.repo.Transact(ctx, func(ctx context.Context) error {
		ledger, err := s.repo.LockLedgerForUpdate(ctx)
		if err != nil {
			return err
		}
		ledger.Apply(item, amount)
		return s.repo.UpdateLedger(ctx, ledger)
	})
	if err != nil {
		return err
	}

	if err := s.billing.PostCost(ctx, item); err != nil {
		slog.ErrorContext(ctx, "cost posting failed after replenish", "item", item, "error", err)
	}
	return nil
}

func validateUsage(usage map[string]int) error {
	for name, amount := range usage {
		if !domain.ValidResource(name) {
			return domain.ErrInvalidResource
		}
		if amount < 0 {
			return fmt.Errorf("negative amount %d for %s", amount, name)
		}
	}
	return nil
}
