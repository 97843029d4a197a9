// Package testutil provides a throwaway sqlite store and catalog fixtures for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"marketplace-orders/internal/client"
	"marketplace-orders/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated sqlite database in a per-test temp dir with one open
// connection. Concurrent callers queue in the pool, so statements never
// interleave; race tests that need that use NewConcurrentDB.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	return openDB(t, 1)
}

// NewConcurrentDB opens the same kind of database with conns connections.
// Transactions begin IMMEDIATE so competing writers wait on the busy timeout
// instead of failing a lock upgrade, and reads outside a transaction run on
// their own connection.
func NewConcurrentDB(t testing.TB, conns int) *gorm.DB {
	t.Helper()
	return openDB(t, conns)
}

func openDB(t testing.TB, conns int) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "orders.db") + "?_busy_timeout=10000&_foreign_keys=on&_txlock=immediate"
	db, err := client.OpenDatabase("sqlite", dsn)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, client.Migrate(db))
	return db
}

// Product returns an approved, published product with a 10% commission.
func Product(id, sellerID, price string, stock int) model.Product {
	return model.Product{
		ID:             id,
		SellerID:       sellerID,
		Name:           "Product " + id,
		Price:          decimal.RequireFromString(price),
		Currency:       "INR",
		Stock:          stock,
		ApprovalStatus: model.ApprovalApproved,
		Published:      true,
		CommissionType: model.CommissionPercentage,
		CommissionRate: decimal.NewFromInt(10),
	}
}

// Seed inserts the sellers referenced by products, then the products.
func Seed(t testing.TB, db *gorm.DB, products ...model.Product) {
	t.Helper()
	ctx := context.Background()

	for _, p := range products {
		seller := model.Seller{ID: p.SellerID, Name: "Seller " + p.SellerID}
		require.NoError(t, db.WithContext(ctx).Where(model.Seller{ID: p.SellerID}).FirstOrCreate(&seller).Error)
	}
	for i := range products {
		require.NoError(t, db.WithContext(ctx).Create(&products[i]).Error)
	}
}

func Stock(t testing.TB, db *gorm.DB, productID string) int {
	t.Helper()

	var p model.Product
	require.NoError(t, db.Select("stock").Where("id = ?", productID).First(&p).Error)
	return p.Stock
}

func VariantStock(t testing.TB, db *gorm.DB, variantID string) int {
	t.Helper()

	var v model.ProductVariant
	require.NoError(t, db.Select("stock").Where("id = ?", variantID).First(&v).Error)
	return v.Stock
}

func Earnings(t testing.TB, db *gorm.DB, sellerID string) decimal.Decimal {
	t.Helper()

	var s model.Seller
	require.NoError(t, db.Where("id = ?", sellerID).First(&s).Error)
	return s.TotalEarnings
}

func Count(t testing.TB, db *gorm.DB, m interface{}) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}
