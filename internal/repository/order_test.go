package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-orders/internal/logger"
	"marketplace-orders/internal/model"
	"marketplace-orders/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newOrder(id, customerID string, key *string) *model.Order {
	return &model.Order{
		ID:             id,
		OrderNumber:    "ORD-" + id,
		IdempotencyKey: key,
		CustomerID:     customerID,
		Items: []model.OrderItem{
			{ProductID: "p1", SellerID: "s1", Quantity: 1, UnitPrice: decimal.NewFromInt(100)},
		},
		Total:         decimal.NewFromInt(100),
		Currency:      "INR",
		PaymentMethod: model.PaymentMethodCOD,
		PaymentStatus: model.PaymentStatusPending,
		Status:        model.OrderStatusPending,
	}
}

func TestOrder_IdempotencyKeyIsUnique(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	key := "checkout-1"

	require.NoError(t, repo.Create(ctx, db, newOrder("o1", "c1", &key)))
	err := repo.Create(ctx, db, newOrder("o2", "c1", &key))
	assert.True(t, IsDuplicateKey(err), "got %v", err)

	// orders without a key never collide
	require.NoError(t, repo.Create(ctx, db, newOrder("o3", "c1", nil)))
	require.NoError(t, repo.Create(ctx, db, newOrder("o4", "c1", nil)))

	found, err := repo.FindByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "o1", found.ID)
	assert.Len(t, found.Items, 1)
}

func TestOrder_TransitionStatusIsOptimistic(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, db, newOrder("o1", "c1", nil)))

	err := repo.TransitionStatus(ctx, db, "o1", model.OrderStatusPending, model.OrderStatusShipped,
		map[string]interface{}{"tracking_number": "TRK1"})
	require.NoError(t, err)

	err = repo.TransitionStatus(ctx, db, "o1", model.OrderStatusPending, model.OrderStatusCanceled, nil)
	assert.ErrorIs(t, err, ErrStaleStatus)

	order, err := repo.FindByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, order.Status)
	assert.Equal(t, "TRK1", order.TrackingNumber)
}

func TestOrder_UpdatePaymentStatusFollowsTable(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, db, newOrder("o1", "c1", nil)))

	moved, err := repo.UpdatePaymentStatus(ctx, db, "o1", model.PaymentStatusRefunded, nil)
	require.NoError(t, err)
	assert.False(t, moved, "pending cannot be refunded")

	moved, err = repo.UpdatePaymentStatus(ctx, db, "o1", model.PaymentStatusPaid, nil)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.UpdatePaymentStatus(ctx, db, "o1", model.PaymentStatusPaid, nil)
	require.NoError(t, err)
	assert.False(t, moved, "already paid")
}

func TestOrder_ListScopes(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	a := newOrder("o1", "c1", nil)
	b := newOrder("o2", "c2", nil)
	b.Items[0].SellerID = "s2"
	require.NoError(t, repo.Create(ctx, db, a))
	require.NoError(t, repo.Create(ctx, db, b))

	orders, total, err := repo.List(ctx, OrderFilter{CustomerID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "o1", orders[0].ID)

	orders, total, err = repo.List(ctx, OrderFilter{SellerID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "o2", orders[0].ID)

	_, total, err = repo.List(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestWebhookEvent_PairIsUnique(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWebhookEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &model.WebhookEvent{EventID: "evt_1", EntityID: "pay_1", EventType: "payment.captured"}))
	err := repo.Insert(ctx, &model.WebhookEvent{EventID: "evt_1", EntityID: "pay_1", EventType: "payment.captured"})
	assert.True(t, IsDuplicateKey(err), "got %v", err)

	// same event id, different entity is a different delivery
	require.NoError(t, repo.Insert(ctx, &model.WebhookEvent{EventID: "evt_1", EntityID: "pay_2"}))

	removed, err := repo.PruneBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestUnitOfWork_AtomicRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.Seed(t, db, testutil.Product("p1", "s1", "100", 5))
	inventory := NewInventoryRepository(db)
	uow := NewUnitOfWork(context.Background(), db, "auto", logger.Discard())
	require.Equal(t, ModeAtomic, uow.Mode())

	boom := errors.New("boom")
	err := uow.Do(context.Background(), func(w *Work) error {
		ok, err := inventory.Decrement(context.Background(), w.DB, "p1", nil, 2)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, testutil.Stock(t, db, "p1"))
}

func TestUnitOfWork_SequentialCompensatesInReverse(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.Seed(t, db, testutil.Product("p1", "s1", "100", 5))
	inventory := NewInventoryRepository(db)
	uow := NewUnitOfWork(context.Background(), db, "off", logger.Discard())
	require.Equal(t, ModeSequential, uow.Mode())

	var order []int
	boom := errors.New("boom")
	err := uow.Do(context.Background(), func(w *Work) error {
		ok, err := inventory.Decrement(context.Background(), w.DB, "p1", nil, 2)
		require.NoError(t, err)
		require.True(t, ok)
		w.OnRollback(func(db *gorm.DB) error {
			order = append(order, 1)
			return inventory.Increment(db.Statement.Context, db, "p1", nil, 2)
		})
		w.OnRollback(func(db *gorm.DB) error {
			order = append(order, 2)
			return nil
		})
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{2, 1}, order)
	assert.Equal(t, 5, testutil.Stock(t, db, "p1"))
}
