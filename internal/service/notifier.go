package service

import (
	"context"
	"log/slog"

	"marketplace-orders/internal/model"
)

// OrderNotifier is the email / invoice collaborator. Calls are dispatched
// asynchronously and never affect the order itself.
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, order *model.Order) error
	OrderStatusChanged(ctx context.Context, order *model.Order, from, to model.OrderStatus) error
}

// LogNotifier records notifications in the log, for environments without a mailer.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) OrderPlaced(ctx context.Context, order *model.Order) error {
	n.Log.InfoContext(ctx, "order confirmation queued",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("invoice_ref", order.InvoiceRef),
		slog.String("total", order.Total.StringFixed(2)))
	return nil
}

func (n LogNotifier) OrderStatusChanged(ctx context.Context, order *model.Order, from, to model.OrderStatus) error {
	n.Log.InfoContext(ctx, "order status notification queued",
		slog.String("order_id", order.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	return nil
}
