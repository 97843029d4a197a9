package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Order struct {
	ID          string `gorm:"primaryKey;size:36;not null" json:"id"`
	OrderNumber string `gorm:"size:32;uniqueIndex;not null" json:"orderNumber"`
	// NULL for requests without a key; unique when present
	IdempotencyKey *string `gorm:"size:128;uniqueIndex" json:"idempotencyKey,omitempty"`
	CustomerID     string  `gorm:"size:64;index;not null" json:"customerId"`

	Items    []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	Total    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total"`
	Currency string          `gorm:"size:8;not null" json:"currency"`

	ShippingAddress datatypes.JSONType[Address] `json:"shippingAddress"`
	BillingAddress  datatypes.JSONType[Address] `json:"billingAddress"`

	PaymentMethod    PaymentMethod `gorm:"size:32;not null" json:"paymentMethod"`
	PaymentStatus    PaymentStatus `gorm:"size:16;index;not null" json:"paymentStatus"`
	GatewayOrderID   *string       `gorm:"size:64;index" json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string       `gorm:"size:64;index" json:"gatewayPaymentId,omitempty"`

	Status  OrderStatus        `gorm:"size:16;index;not null" json:"status"`
	History []OrderStatusEvent `gorm:"foreignKey:OrderID" json:"statusHistory,omitempty"`

	TrackingNumber string     `gorm:"size:64" json:"trackingNumber,omitempty"`
	Carrier        string     `gorm:"size:64" json:"carrier,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`

	InvoiceRef string `gorm:"size:64" json:"invoiceRef,omitempty"`

	CancelReason string     `gorm:"size:255" json:"cancelReason,omitempty"`
	CanceledBy   string     `gorm:"size:64" json:"canceledBy,omitempty"`
	CanceledAt   *time.Time `json:"canceledAt,omitempty"`

	RefundRef  string     `gorm:"size:64" json:"refundRef,omitempty"`
	RefundedAt *time.Time `json:"refundedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OrderItem is a price snapshot taken at placement. Never updated afterwards.
type OrderItem struct {
	ID uint `gorm:"primaryKey" json:"-"`
	// FK → orders.id
	OrderID   string          `gorm:"size:36;index;not null" json:"-"`
	ProductID string          `gorm:"size:64;index;not null" json:"productId"`
	VariantID *string         `gorm:"size:64" json:"variantId,omitempty"`
	SellerID  string          `gorm:"size:64;index;not null" json:"sellerId"`
	Name      string          `gorm:"size:255" json:"name"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"unitPrice"`
	Size      string          `gorm:"size:32" json:"size,omitempty"`
	Color     string          `gorm:"size:32" json:"color,omitempty"`

	Customization datatypes.JSON `json:"customization,omitempty"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatusEvent is one row of the append-only status history.
type OrderStatusEvent struct {
	ID        uint        `gorm:"primaryKey" json:"-"`
	OrderID   string      `gorm:"size:36;index;not null" json:"-"`
	From      OrderStatus `gorm:"size:16" json:"from,omitempty"`
	To        OrderStatus `gorm:"size:16;not null" json:"to"`
	ActorID   string      `gorm:"size:64" json:"actorId"`
	Note      string      `gorm:"size:512" json:"note,omitempty"`
	CreatedAt time.Time   `json:"at"`
}

// SumLines is the order total: Σ unitPrice × quantity.
func SumLines(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}
