package service

import (
	"context"
	"fmt"

	"marketplace-orders/internal/model"
	"marketplace-orders/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CommissionLine struct {
	SellerID  string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Type      model.CommissionType
	Rate      decimal.Decimal
}

// CommissionLedger records seller earnings for an order and moves them through
// pending → approved → paid, or to cancelled.
type CommissionLedger interface {
	Record(ctx context.Context, w *repository.Work, orderID string, lines []CommissionLine) ([]*model.Commission, error)
	Approve(ctx context.Context, w *repository.Work, orderID string) error
	Cancel(ctx context.Context, w *repository.Work, orderID string) error
}

type commissionLedgerImpl struct {
	commissionRepo repository.CommissionRepository
	sellerRepo     repository.SellerRepository
}

func NewCommissionLedger(commissionRepo repository.CommissionRepository, sellerRepo repository.SellerRepository) CommissionLedger {
	return &commissionLedgerImpl{
		commissionRepo: commissionRepo,
		sellerRepo:     sellerRepo,
	}
}

func (l *commissionLedgerImpl) Record(ctx context.Context, w *repository.Work, orderID string, lines []CommissionLine) ([]*model.Commission, error) {
	commissions := make([]*model.Commission, 0, len(lines))
	earnings := make(map[string]decimal.Decimal)
	var sellers []string

	for _, line := range lines {
		c := &model.Commission{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			SellerID:  line.SellerID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Type:      line.Type,
			Rate:      line.Rate,
			Amount:    model.CommissionAmount(line.Type, line.UnitPrice, line.Quantity, line.Rate),
			Status:    model.CommissionPending,
		}
		commissions = append(commissions, c)

		if _, seen := earnings[c.SellerID]; !seen {
			sellers = append(sellers, c.SellerID)
		}
		earnings[c.SellerID] = earnings[c.SellerID].Add(c.Amount)
	}

	if err := l.commissionRepo.Create(ctx, w.DB, commissions); err != nil {
		return nil, fmt.Errorf("store commissions: %w", err)
	}
	w.OnRollback(func(db *gorm.DB) error {
		return l.commissionRepo.DeleteByOrder(db.Statement.Context, db, orderID)
	})

	for _, sellerID := range sellers {
		amount := earnings[sellerID]
		if err := l.sellerRepo.AddEarnings(ctx, w.DB, sellerID, amount); err != nil {
			return nil, fmt.Errorf("credit seller %s: %w", sellerID, err)
		}
		w.OnRollback(func(db *gorm.DB) error {
			return l.sellerRepo.AddEarnings(db.Statement.Context, db, sellerID, amount.Neg())
		})
	}

	return commissions, nil
}

func (l *commissionLedgerImpl) Approve(ctx context.Context, w *repository.Work, orderID string) error {
	commissions, err := l.commissionRepo.FindByOrder(ctx, w.DB, orderID)
	if err != nil {
		return fmt.Errorf("load commissions: %w", err)
	}

	for _, c := range commissions {
		moved, err := l.commissionRepo.MoveStatus(ctx, w.DB, c.ID,
			[]model.CommissionStatus{model.CommissionPending}, model.CommissionApproved)
		if err != nil {
			return fmt.Errorf("approve commission %s: %w", c.ID, err)
		}
		if moved {
			id := c.ID
			w.OnRollback(func(db *gorm.DB) error {
				_, err := l.commissionRepo.MoveStatus(db.Statement.Context, db, id,
					[]model.CommissionStatus{model.CommissionApproved}, model.CommissionPending)
				return err
			})
		}
	}
	return nil
}

// Cancel cancels every pending or approved commission and takes the amount back
// off the seller's running total.
func (l *commissionLedgerImpl) Cancel(ctx context.Context, w *repository.Work, orderID string) error {
	commissions, err := l.commissionRepo.FindByOrder(ctx, w.DB, orderID)
	if err != nil {
		return fmt.Errorf("load commissions: %w", err)
	}

	for _, c := range commissions {
		prev := c.Status
		moved, err := l.commissionRepo.MoveStatus(ctx, w.DB, c.ID,
			[]model.CommissionStatus{model.CommissionPending, model.CommissionApproved}, model.CommissionCancelled)
		if err != nil {
			return fmt.Errorf("cancel commission %s: %w", c.ID, err)
		}
		if !moved {
			continue
		}

		if err := l.sellerRepo.AddEarnings(ctx, w.DB, c.SellerID, c.Amount.Neg()); err != nil {
			return fmt.Errorf("debit seller %s: %w", c.SellerID, err)
		}

		id, sellerID, amount := c.ID, c.SellerID, c.Amount
		w.OnRollback(func(db *gorm.DB) error {
			if _, err := l.commissionRepo.MoveStatus(db.Statement.Context, db, id,
				[]model.CommissionStatus{model.CommissionCancelled}, prev); err != nil {
				return err
			}
			return l.sellerRepo.AddEarnings(db.Statement.Context, db, sellerID, amount)
		})
	}
	return nil
}
