package repository

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

const (
	ModeAtomic     = "atomic"
	ModeSequential = "sequential"
)

// Work is the handle shared by every repository call inside one unit of work.
// Steps register their inverse with OnRollback; only the sequential strategy
// ever runs them, the atomic strategy relies on the store rolling back.
type Work struct {
	DB   *gorm.DB
	undo []func(db *gorm.DB) error
}

func (w *Work) OnRollback(fn func(db *gorm.DB) error) {
	w.undo = append(w.undo, fn)
}

type UnitOfWork interface {
	Mode() string
	Do(ctx context.Context, fn func(w *Work) error) error
}

type txUnitOfWork struct {
	db *gorm.DB
}

func NewTxUnitOfWork(db *gorm.DB) UnitOfWork {
	return &txUnitOfWork{db: db}
}

func (u *txUnitOfWork) Mode() string { return ModeAtomic }

func (u *txUnitOfWork) Do(ctx context.Context, fn func(w *Work) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Work{DB: tx})
	})
}

// sequentialUnitOfWork applies each step directly and unwinds with the
// registered compensations on failure. A crash between steps can leave
// partial state, so every run is logged as degraded.
type sequentialUnitOfWork struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewSequentialUnitOfWork(db *gorm.DB, log *slog.Logger) UnitOfWork {
	return &sequentialUnitOfWork{db: db, log: log}
}

func (u *sequentialUnitOfWork) Mode() string { return ModeSequential }

func (u *sequentialUnitOfWork) Do(ctx context.Context, fn func(w *Work) error) error {
	u.log.WarnContext(ctx, "transaction degraded: running sequential unit of work")

	w := &Work{DB: u.db.WithContext(ctx)}
	err := fn(w)
	if err == nil {
		return nil
	}

	// compensations must run even when the request context is gone
	cctx := context.WithoutCancel(ctx)
	for i := len(w.undo) - 1; i >= 0; i-- {
		if cerr := w.undo[i](u.db.WithContext(cctx)); cerr != nil {
			u.log.ErrorContext(cctx, "compensation step failed, manual reconciliation needed",
				slog.Int("step", i), slog.Any("err", cerr), slog.Any("cause", err))
		}
	}
	return err
}

// CheckTransactions reports whether the store accepts multi-statement transactions.
func CheckTransactions(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin: %w", tx.Error)
	}
	defer tx.Rollback()

	var one int
	if err := tx.Raw("SELECT 1").Scan(&one).Error; err != nil {
		return fmt.Errorf("select in tx: %w", err)
	}
	return nil
}

// NewUnitOfWork picks the strategy once. mode is auto, on or off.
func NewUnitOfWork(ctx context.Context, db *gorm.DB, mode string, log *slog.Logger) UnitOfWork {
	switch mode {
	case "on":
		return NewTxUnitOfWork(db)
	case "off":
		return NewSequentialUnitOfWork(db, log)
	}

	if err := CheckTransactions(ctx, db); err != nil {
		log.WarnContext(ctx, "store does not support transactions, using sequential compensation", slog.Any("err", err))
		return NewSequentialUnitOfWork(db, log)
	}
	return NewTxUnitOfWork(db)
}
