package dto

import (
	"encoding/json"

	"marketplace-orders/internal/model"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
	// client-side price snapshot; optional
	Price         decimal.NullDecimal `json:"price"`
	Size          string              `json:"size,omitempty"`
	Color         string              `json:"color,omitempty"`
	Customization json.RawMessage     `json:"customization,omitempty"`
}

type PaymentProof struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

type CreateOrderRequest struct {
	Items           []LineItem     `json:"items"`
	ShippingAddress model.Address  `json:"shippingAddress"`
	BillingAddress  *model.Address `json:"billingAddress,omitempty"`
	PaymentMethod   string         `json:"paymentMethod"`
	Payment         *PaymentProof  `json:"payment,omitempty"`
	IdempotencyKey  string         `json:"idempotencyKey,omitempty"`
}

type OrderResponse struct {
	Order     *model.Order `json:"order"`
	Duplicate bool         `json:"duplicate,omitempty"`
	// duplicate_request on an idempotent replay
	Kind string `json:"kind,omitempty"`
}

type OrderListResponse struct {
	Orders []*model.Order `json:"orders"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type UpdateStatusRequest struct {
	Status         string `json:"status"`
	Notes          string `json:"notes,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CreatePaymentOrderRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Receipt string          `json:"receipt"`
}

type VerifyPaymentRequest struct {
	PaymentProof
	Amount decimal.Decimal `json:"amount"`
}

type VerifyPaymentResponse struct {
	Verified bool           `json:"verified"`
	Payment  *model.Payment `json:"payment"`
}

type ErrorBody struct {
	Kind           string   `json:"kind"`
	Message        string   `json:"message"`
	AvailableStock *int     `json:"availableStock,omitempty"`
	Allowed        []string `json:"allowed,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
