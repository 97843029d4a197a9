package repository

import (
	"context"
	"sync/atomic"
	"testing"

	"marketplace-orders/internal/model"
	"marketplace-orders/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestInventory_DecrementIsConditional(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.Seed(t, db, testutil.Product("p1", "s1", "100", 5))
	repo := NewInventoryRepository(db)
	ctx := context.Background()

	ok, err := repo.Decrement(ctx, db, "p1", nil, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Decrement(ctx, db, "p1", nil, 3)
	require.NoError(t, err)
	assert.False(t, ok, "only 2 left")

	available, err := repo.Available(ctx, nil, "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, available)
}

func TestInventory_UnknownProduct(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewInventoryRepository(db)
	ctx := context.Background()

	ok, err := repo.Decrement(ctx, db, "missing", nil, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Available(ctx, nil, "missing", nil)
	assert.True(t, IsNotFound(err))

	assert.True(t, IsNotFound(repo.Increment(ctx, db, "missing", nil, 1)))
}

func TestInventory_VariantStockIsSeparate(t *testing.T) {
	db := testutil.NewDB(t)
	p := testutil.Product("p1", "s1", "100", 50)
	p.Variants = []model.ProductVariant{{ID: "v1", ProductID: "p1", Size: "M", Stock: 2}}
	testutil.Seed(t, db, p)

	repo := NewInventoryRepository(db)
	ctx := context.Background()
	variant := "v1"

	ok, err := repo.Decrement(ctx, db, "p1", &variant, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Decrement(ctx, db, "p1", &variant, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 0, testutil.VariantStock(t, db, "v1"))
	assert.Equal(t, 50, testutil.Stock(t, db, "p1"))

	require.NoError(t, repo.Increment(ctx, db, "p1", &variant, 1))
	assert.Equal(t, 1, testutil.VariantStock(t, db, "v1"))
}

func TestInventory_ConcurrentDecrementsNeverOversell(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.Seed(t, db, testutil.Product("p1", "s1", "100", 10))
	repo := NewInventoryRepository(db)

	var won atomic.Int32
	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			ok, err := repo.Decrement(context.Background(), db, "p1", nil, 1)
			if ok {
				won.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(10), won.Load())
	assert.Equal(t, 0, testutil.Stock(t, db, "p1"))
}

func TestSeller_AddEarningsUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSellerRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AddEarnings(ctx, db, "s9", decimal.NewFromInt(40)))
	require.NoError(t, repo.AddEarnings(ctx, db, "s9", decimal.NewFromInt(15)))
	require.NoError(t, repo.AddEarnings(ctx, db, "s9", decimal.NewFromInt(-5)))

	seller, err := repo.Get(ctx, "s9")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(seller.TotalEarnings), "got %s", seller.TotalEarnings)
}
