package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a gateway payment that passed verification. One gateway payment
// can back at most one order.
type Payment struct {
	GatewayPaymentID string          `gorm:"primaryKey;size:64;not null" json:"gatewayPaymentId"`
	GatewayOrderID   string          `gorm:"size:64;index;not null" json:"gatewayOrderId"`
	OrderID          string          `gorm:"size:36;index" json:"orderId,omitempty"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency         string          `gorm:"size:8;not null" json:"currency"`
	Status           string          `gorm:"size:32;not null" json:"status"`
	Method           string          `gorm:"size:32" json:"method,omitempty"`
	VerifiedAt       time.Time       `json:"verifiedAt"`
}

// gateway-side payment statuses
const (
	GatewayPaymentCaptured   = "captured"
	GatewayPaymentAuthorized = "authorized"
	GatewayPaymentFailed     = "failed"
	GatewayPaymentRefunded   = "refunded"
)

// GatewayOrder is what the gateway returns when a checkout is opened.
type GatewayOrder struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Receipt  string          `json:"receipt"`
	Status   string          `json:"status"`
	// client SDK token, for gateways that need one
	ClientToken string `json:"clientToken,omitempty"`
}

// GatewayPayment is the authoritative payment as fetched from the gateway.
// Amount is in major units.
type GatewayPayment struct {
	ID       string
	OrderID  string
	Status   string
	Amount   decimal.Decimal
	Currency string
	Method   string
}

// webhook payload as posted by the gateway

type GatewayPaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
}

type GatewayOrderEntity struct {
	ID       string `json:"id"`
	Receipt  string `json:"receipt"`
	Amount   int64  `json:"amount"`
	Status   string `json:"status"`
	Currency string `json:"currency"`
}

type GatewayWebhookPayload struct {
	Payment struct {
		Entity GatewayPaymentEntity `json:"entity"`
	} `json:"payment"`
	Order struct {
		Entity GatewayOrderEntity `json:"entity"`
	} `json:"order"`
}

type GatewayWebhookEvent struct {
	ID        string                `json:"id,omitempty"`
	Event     string                `json:"event"`
	Payload   GatewayWebhookPayload `json:"payload"`
	CreatedAt int64                 `json:"created_at"`
}

const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookPaymentFailed   = "payment.failed"
	WebhookOrderPaid       = "order.paid"
)
