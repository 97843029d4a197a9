package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketplace-orders/internal/client"
	"marketplace-orders/internal/model"

	"github.com/shopspring/decimal"
)

type Refund struct {
	PaymentID string
	Amount    decimal.Decimal
	Reason    string
}

// FakeGateway is an in-memory client.PaymentGateway.
type FakeGateway struct {
	mu       sync.Mutex
	payments map[string]*model.GatewayPayment
	refunds  []Refund

	// FetchDelay makes FetchPayment block, honouring ctx.
	FetchDelay time.Duration
	FetchErr   error
	RefundErr  error
}

var _ client.PaymentGateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{payments: make(map[string]*model.GatewayPayment)}
}

// AddPayment registers a payment the gateway will report as status.
func (g *FakeGateway) AddPayment(paymentID, gatewayOrderID, amount, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.payments[paymentID] = &model.GatewayPayment{
		ID:       paymentID,
		OrderID:  gatewayOrderID,
		Status:   status,
		Amount:   decimal.RequireFromString(amount),
		Currency: "INR",
		Method:   "card",
	}
}

func (g *FakeGateway) Refunds() []Refund {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Refund(nil), g.refunds...)
}

func (g *FakeGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*model.GatewayOrder, error) {
	return &model.GatewayOrder{
		ID:       "order_" + receipt,
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *FakeGateway) FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error) {
	if g.FetchDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", client.ErrGatewayUnavailable, ctx.Err())
		case <-time.After(g.FetchDelay):
		}
	}
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s not found", client.ErrGatewayRejected, paymentID)
	}
	copied := *p
	return &copied, nil
}

func (g *FakeGateway) Refund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (string, error) {
	if g.RefundErr != nil {
		return "", g.RefundErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.refunds = append(g.refunds, Refund{PaymentID: paymentID, Amount: amount, Reason: reason})
	return fmt.Sprintf("rfnd_%d", len(g.refunds)), nil
}
