package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"marketplace-orders/internal/config"
	"marketplace-orders/internal/model"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
)

type braintreeGateway struct {
	gateway *braintree.Braintree
}

// NewBraintreeGateway initializes the Braintree SDK gateway. Braintree has no
// gateway-side order, so the merchant receipt doubles as the gateway order id
// and is expected back on the transaction's OrderId.
func NewBraintreeGateway(cfg *config.Braintree) PaymentGateway {
	env := braintree.Sandbox
	if cfg.Environment == "production" {
		env = braintree.Production
	}

	return &braintreeGateway{
		gateway: braintree.New(
			env,
			cfg.MerchantID,
			cfg.PublicKey,
			cfg.PrivateKey,
		),
	}
}

func (c *braintreeGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*model.GatewayOrder, error) {
	token, err := c.gateway.ClientToken().Generate(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate client token: %w", braintreeError(err))
	}

	return &model.GatewayOrder{
		ID:          receipt,
		Amount:      amount,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
		ClientToken: token,
	}, nil
}

func (c *braintreeGateway) FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error) {
	tx, err := c.gateway.Transaction().Find(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("find transaction %s: %w", paymentID, braintreeError(err))
	}

	amount := decimal.Zero
	if tx.Amount != nil {
		amount = decimal.New(tx.Amount.Unscaled, -int32(tx.Amount.Scale))
	}

	return &model.GatewayPayment{
		ID:       tx.Id,
		OrderID:  tx.OrderId,
		Status:   braintreeStatus(tx.Status),
		Amount:   amount,
		Currency: tx.CurrencyISOCode,
	}, nil
}

func (c *braintreeGateway) Refund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (string, error) {
	// braintree expects NewDecimal(unscaled, scale): "50.00" -> NewDecimal(5000, 2)
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	tx, err := c.gateway.Transaction().Refund(ctx, paymentID, braintree.NewDecimal(cents, 2))
	if err != nil {
		return "", fmt.Errorf("refund %s (%s): %w", paymentID, reason, braintreeError(err))
	}

	return tx.Id, nil
}

// braintreeError classifies an SDK error the way the REST client classifies
// status codes: 4xx and validation errors are rejections, the rest is an outage.
func braintreeError(err error) error {
	status := 0

	var apiErr braintree.APIError
	var invalid braintree.InvalidResponseError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode()
	case errors.As(err, &invalid) && invalid.Response() != nil && invalid.Response().Response != nil:
		status = invalid.Response().StatusCode
	}

	// a validation error parsed from the body may carry no status
	if status == 0 && apiErr != nil {
		status = http.StatusUnprocessableEntity
	}

	if status >= 400 && status < 500 {
		return fmt.Errorf("%w: %w", ErrGatewayRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
}

func braintreeStatus(status braintree.TransactionStatus) string {
	switch status {
	case braintree.TransactionStatusAuthorized:
		return model.GatewayPaymentAuthorized
	case braintree.TransactionStatusSubmittedForSettlement,
		braintree.TransactionStatusSettling,
		braintree.TransactionStatusSettled:
		return model.GatewayPaymentCaptured
	case braintree.TransactionStatusProcessorDeclined,
		braintree.TransactionStatusGatewayRejected,
		braintree.TransactionStatusFailed:
		return model.GatewayPaymentFailed
	default:
		return string(status)
	}
}
