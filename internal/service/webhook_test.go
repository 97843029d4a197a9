package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"marketplace-orders/internal/apperror"
	"marketplace-orders/internal/logger"
	"marketplace-orders/internal/model"
	"marketplace-orders/internal/repository"
	"marketplace-orders/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pendingOnlineOrder stores an order awaiting capture of gateway order gatewayOrderID.
func pendingOnlineOrder(t *testing.T, h *harness, id, gatewayOrderID string, total int64) *model.Order {
	t.Helper()

	order := &model.Order{
		ID:             id,
		OrderNumber:    "ORD-" + id,
		CustomerID:     "c1",
		Items:          []model.OrderItem{{ProductID: "p1", SellerID: "s1", Quantity: 1, UnitPrice: decimal.NewFromInt(total)}},
		Total:          decimal.NewFromInt(total),
		Currency:       "INR",
		PaymentMethod:  model.PaymentMethodOnline,
		PaymentStatus:  model.PaymentStatusPending,
		GatewayOrderID: &gatewayOrderID,
		Status:         model.OrderStatusPending,
	}
	require.NoError(t, h.orderRepo.Create(context.Background(), h.db, order))
	return order
}

func paymentEvent(t *testing.T, event, paymentID, gatewayOrderID string, amountMinor int64) []byte {
	t.Helper()

	var payload model.GatewayWebhookEvent
	payload.Event = event
	payload.Payload.Payment.Entity = model.GatewayPaymentEntity{
		ID:       paymentID,
		OrderID:  gatewayOrderID,
		Amount:   amountMinor,
		Currency: "INR",
		Status:   "captured",
	}

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func signedHeaders(body []byte, eventID string) http.Header {
	headers := http.Header{}
	headers.Set("X-Razorpay-Signature", Sign(testWebhookSecret, string(body)))
	if eventID != "" {
		headers.Set("X-Razorpay-Event-Id", eventID)
	}
	return headers
}

func TestWebhook_CapturedIsAppliedExactlyOnce(t *testing.T) {
	h := newHarness(t, "on")
	ctx := context.Background()
	order := pendingOnlineOrder(t, h, "o1", "order_w1", 499)

	body := paymentEvent(t, model.WebhookPaymentCaptured, "pay_w1", "order_w1", 49900)

	first, err := h.webhooks.HandleWebhook(ctx, signedHeaders(body, "evt_1"), body)
	require.NoError(t, err)
	assert.True(t, first.Processed)
	assert.False(t, first.Duplicate)
	require.NotNil(t, first.OrderID)
	assert.Equal(t, order.ID, *first.OrderID)

	second, err := h.webhooks.HandleWebhook(ctx, signedHeaders(body, "evt_1"), body)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Processed)
	require.NotNil(t, second.OrderID)
	assert.Equal(t, order.ID, *second.OrderID)

	stored, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, model.OrderStatusProcessing, stored.Status)
	require.NotNil(t, stored.GatewayPaymentID)
	assert.Equal(t, "pay_w1", *stored.GatewayPaymentID)

	require.Len(t, stored.History, 1)
	assert.Equal(t, gatewayActor.ID, stored.History[0].ActorID)

	assert.Equal(t, int64(1), testutil.Count(t, h.db, &model.WebhookEvent{}))
}

func TestWebhook_RedeliveryUnderNewEventIDDoesNotReapply(t *testing.T) {
	h := newHarness(t, "on")
	ctx := context.Background()
	order := pendingOnlineOrder(t, h, "o1", "order_w1", 499)

	body := paymentEvent(t, model.WebhookPaymentCaptured, "pay_w1", "order_w1", 49900)
	for _, id := range []string{"evt_1", "evt_2"} {
		res, err := h.webhooks.HandleWebhook(ctx, signedHeaders(body, id), body)
		require.NoError(t, err)
		assert.True(t, res.Processed)
	}

	stored, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.History, 1, "second capture finds the order already paid")
	assert.Equal(t, int64(2), testutil.Count(t, h.db, &model.WebhookEvent{}))
}

func TestWebhook_EventIDFallsBackToBodyDigest(t *testing.T) {
	h := newHarness(t, "on")
	ctx := context.Background()

	body := paymentEvent(t, "refund.created", "pay_x", "", 100)

	first, err := h.webhooks.HandleWebhook(ctx, signedHeaders(body, ""), body)
	require.NoError(t, err)
	assert.True(t, first.Processed)

	second, err := h.webhooks.HandleWebhook(ctx, signedHeaders(body, ""), body)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	var event model.WebhookEvent
	require.NoError(t, h.db.First(&event).Error)
	assert.Contains(t, event.EventID, "sha256:")
	assert.Equal(t, "pay_x", event.EntityID)
	assert.Equal(t, "refund.created", event.EventType)
	assert.JSONEq(t, string(body), string(event.Payload))
}

func TestWebhook_SignatureProblemsAreRejected(t *testing.T) {
	h := newHarness(t, "on")
	ctx := context.Background()
	body := paymentEvent(t, model.WebhookPaymentCaptured, "pay_w1", "order_w1", 49900)

	_, err := h.webhooks.HandleWebhook(ctx, http.Header{}, body)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation), "got %v", err)

	headers := http.Header{}
	headers.Set("X-Razorpay-Signature", Sign("someone-else", string(body)))
	_, err = h.webhooks.HandleWebhook(ctx, headers, body)
	assert.True(t, apperror.IsKind(err, apperror.KindPaymentVerificationFailed), "got %v", err)

	assert.Equal(t, int64(0), testutil.Count(t, h.db, &model.WebhookEvent{}))
}

func TestWebhook_UnknownOrderIsAcknowledgedAndRecorded(t *testing.T) {
	h := newHarness(t, "on")
	body := paymentEvent(t, model.WebhookPaymentCaptured, "pay_z", "order_unknown", 100)

	res, err := h.webhooks.HandleWebhook(context.Background(), signedHeaders(body, "evt_z"), body)
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Nil(t, res.OrderID)
	assert.Equal(t, int64(1), testutil.Count(t, h.db, &model.WebhookEvent{}))
}

func TestWebhook_UnparseableBodyIsAcknowledged(t *testing.T) {
	h := newHarness(t, "on")
	body := []byte("not json")

	res, err := h.webhooks.HandleWebhook(context.Background(), signedHeaders(body, "evt_bad"), body)
	require.NoError(t, err)
	assert.False(t, res.Processed)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, &model.WebhookEvent{}))
}

func TestWebhook_AmountMismatchIsNotApplied(t *testing.T) {
	h := newHarness(t, "on")
	ctx := context.Background()
	order := pendingOnlineOrder(t, h, "o1", "order_w1", 499)

	body := paymentEvent(t, model.WebhookPaymentCaptured, "pay_w1", "order_w1", 100)
	res, err := h.webhooks.HandleWebhook(ctx, signedHeaders(body, "evt_1"), body)
	require.NoError(t, err)
	assert.True(t, res.Processed, "acknowledged so the gateway stops retrying")

	stored, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
}

func TestWebhook_FailedThenCaptured(t *testing.T) {
	for _, mode := range []string{"on", "off"} {
		t.Run(mode, func(t *testing.T) {
			h := newHarness(t, mode)
			ctx := context.Background()
			order := pendingOnlineOrder(t, h, "o1", "order_w1", 499)

			failed := paymentEvent(t, model.WebhookPaymentFailed, "pay_a", "order_w1", 49900)
			_, err := h.webhooks.HandleWebhook(ctx, signedHeaders(failed, "evt_1"), failed)
			require.NoError(t, err)

			stored, err := h.orderRepo.FindByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, model.PaymentStatusFailed, stored.PaymentStatus)
			assert.Equal(t, model.OrderStatusPending, stored.Status)

			captured := paymentEvent(t, model.WebhookPaymentCaptured, "pay_b", "order_w1", 49900)
			_, err = h.webhooks.HandleWebhook(ctx, signedHeaders(captured, "evt_2"), captured)
			require.NoError(t, err)

			stored, err = h.orderRepo.FindByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
			assert.Equal(t, model.OrderStatusProcessing, stored.Status)
		})
	}
}

func TestWebhook_LateFailureDoesNotUndoPayment(t *testing.T) {
	h := newHarness(t, "on")
	ctx := context.Background()
	order := pendingOnlineOrder(t, h, "o1", "order_w1", 499)

	captured := paymentEvent(t, model.WebhookPaymentCaptured, "pay_a", "order_w1", 49900)
	_, err := h.webhooks.HandleWebhook(ctx, signedHeaders(captured, "evt_1"), captured)
	require.NoError(t, err)

	failed := paymentEvent(t, model.WebhookPaymentFailed, "pay_b", "order_w1", 49900)
	_, err = h.webhooks.HandleWebhook(ctx, signedHeaders(failed, "evt_2"), failed)
	require.NoError(t, err)

	stored, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
}

func TestReplayGuard_HandlerRunsOnce(t *testing.T) {
	db := testutil.NewDB(t)
	guard := NewWebhookReplayGuard(repository.NewWebhookEventRepository(db), logger.Discard())
	ctx := context.Background()

	runs := 0
	handler := func(ctx context.Context) error {
		runs++
		return assert.AnError
	}

	for i := 0; i < 3; i++ {
		_, err := guard.ProcessIfNew(ctx, &model.WebhookEvent{EventID: "evt_1", EntityID: "pay_1"}, handler)
		require.NoError(t, err, "handler failures are swallowed")
	}
	assert.Equal(t, 1, runs)
}

func TestWebhook_CaptureSettlesAuthorizedOrder(t *testing.T) {
	for _, event := range []string{model.WebhookPaymentCaptured, model.WebhookOrderPaid} {
		t.Run(event, func(t *testing.T) {
			h := newHarness(t, "on", testutil.Product("p1", "s1", "499", 10))
			ctx := context.Background()
			h.gateway.AddPayment("pay_auth", "order_auth", "499.00", model.GatewayPaymentAuthorized)

			res, err := h.orders.CreateOrder(ctx, "c1", "", prepaidRequest("order_auth", "pay_auth", line("p1", 1)))
			require.NoError(t, err)
			assert.Equal(t, model.PaymentStatusPending, res.Order.PaymentStatus)
			assert.Equal(t, model.OrderStatusPending, res.Order.Status)
			require.NotNil(t, res.Order.GatewayOrderID)
			assert.Equal(t, "order_auth", *res.Order.GatewayOrderID)
			assert.Equal(t, 9, testutil.Stock(t, h.db, "p1"))

			body := paymentEvent(t, event, "pay_auth", "order_auth", 49900)
			for _, id := range []string{"evt_1", "evt_1", "evt_2"} {
				_, err := h.webhooks.HandleWebhook(ctx, signedHeaders(body, id), body)
				require.NoError(t, err)
			}

			stored, err := h.orderRepo.FindByID(ctx, res.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
			assert.Equal(t, model.OrderStatusProcessing, stored.Status)
			require.Len(t, stored.History, 2)
			assert.Equal(t, model.OrderStatusProcessing, stored.History[1].To)

			var payment model.Payment
			require.NoError(t, h.db.First(&payment, "gateway_payment_id = ?", "pay_auth").Error)
			assert.Equal(t, model.GatewayPaymentCaptured, payment.Status)
		})
	}
}
