package client

import (
	"context"
	"errors"
	"fmt"

	"marketplace-orders/internal/config"
	"marketplace-orders/internal/model"

	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable marks transport failures, timeouts and 5xx answers.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected marks 4xx answers: the gateway understood and refused.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
)

type PaymentGateway interface {
	// CreateOrder opens a gateway-side order the client checkout pays against.
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*model.GatewayOrder, error)
	// FetchPayment returns the gateway's own view of a payment.
	FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error)
	// Refund refunds amount of a captured payment and returns the refund id.
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (string, error)
}

func NewPaymentGateway(cfg *config.Config) (PaymentGateway, error) {
	switch cfg.Gateway.Provider {
	case "", "rest":
		return NewRestGateway(&cfg.Gateway), nil
	case "braintree":
		return NewBraintreeGateway(&cfg.BrainTree), nil
	default:
		return nil, fmt.Errorf("unknown payment gateway provider %q", cfg.Gateway.Provider)
	}
}

// ToMinorUnits converts a major-unit amount (rupees) to gateway minor units (paise).
func ToMinorUnits(amount decimal.Decimal, exp int32) int64 {
	return amount.Shift(exp).Round(0).IntPart()
}

func FromMinorUnits(amount int64, exp int32) decimal.Decimal {
	return decimal.New(amount, -exp)
}
