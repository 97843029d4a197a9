package service

import (
	"context"
	"fmt"

	"marketplace-orders/internal/apperror"
	"marketplace-orders/internal/repository"

	"gorm.io/gorm"
)

// InventoryLedger is the only path that mutates stock.
type InventoryLedger interface {
	// Reserve decrements stock by quantity only if at least quantity is available.
	// observed is the stock the caller read before the write; it is reported back
	// when the decrement loses. A negative observed falls back to the live value.
	Reserve(ctx context.Context, w *repository.Work, productID string, variantID *string, quantity, observed int) error
	// Restore is the unconditional inverse of Reserve, used by cancellation and refund.
	Restore(ctx context.Context, w *repository.Work, productID string, variantID *string, quantity int) error
}

type inventoryLedgerImpl struct {
	inventoryRepo repository.InventoryRepository
}

func NewInventoryLedger(inventoryRepo repository.InventoryRepository) InventoryLedger {
	return &inventoryLedgerImpl{
		inventoryRepo: inventoryRepo,
	}
}

func (l *inventoryLedgerImpl) Reserve(ctx context.Context, w *repository.Work, productID string, variantID *string, quantity, observed int) error {
	if quantity < 1 {
		return apperror.Validation("quantity must be at least 1")
	}

	ok, err := l.inventoryRepo.Decrement(ctx, w.DB, productID, variantID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock for %s: %w", productID, err)
	}

	if !ok {
		if observed >= 0 {
			return apperror.InsufficientStock(productID, observed)
		}
		available, err := l.inventoryRepo.Available(ctx, w.DB, productID, variantID)
		if repository.IsNotFound(err) {
			return apperror.NotFound("product %s not found", productID)
		}
		if err != nil {
			return fmt.Errorf("read stock for %s: %w", productID, err)
		}
		return apperror.InsufficientStock(productID, available)
	}

	w.OnRollback(func(db *gorm.DB) error {
		return l.inventoryRepo.Increment(db.Statement.Context, db, productID, variantID, quantity)
	})
	return nil
}

func (l *inventoryLedgerImpl) Restore(ctx context.Context, w *repository.Work, productID string, variantID *string, quantity int) error {
	if err := l.inventoryRepo.Increment(ctx, w.DB, productID, variantID, quantity); err != nil {
		return fmt.Errorf("restore stock for %s: %w", productID, err)
	}

	w.OnRollback(func(db *gorm.DB) error {
		// quantity was just added, so the conditional decrement cannot fail on stock
		_, err := l.inventoryRepo.Decrement(db.Statement.Context, db, productID, variantID, quantity)
		return err
	})
	return nil
}
