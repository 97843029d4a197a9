package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CommissionType string

const (
	CommissionPercentage CommissionType = "percentage"
	CommissionFixed      CommissionType = "fixed"
)

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionApproved  CommissionStatus = "approved"
	CommissionPaid      CommissionStatus = "paid"
	CommissionCancelled CommissionStatus = "cancelled"
)

type Commission struct {
	ID        string           `gorm:"primaryKey;size:36;not null" json:"id"`
	OrderID   string           `gorm:"size:36;index;not null" json:"orderId"`
	SellerID  string           `gorm:"size:64;index;not null" json:"sellerId"`
	ProductID string           `gorm:"size:64;not null" json:"productId"`
	Quantity  int              `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"unitPrice"`
	Type      CommissionType   `gorm:"size:16;not null" json:"commissionType"`
	Rate      decimal.Decimal  `gorm:"type:decimal(10,4);not null" json:"commissionRate"`
	Amount    decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"commissionAmount"`
	Status    CommissionStatus `gorm:"size:16;index;not null" json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// BeforeSave keeps Amount derived from the inputs it depends on.
func (c *Commission) BeforeSave(tx *gorm.DB) error {
	c.Amount = CommissionAmount(c.Type, c.UnitPrice, c.Quantity, c.Rate)
	return nil
}

// CommissionAmount computes the seller's earning for one line.
// percentage: round(unitPrice × quantity × rate / 100); fixed: rate × quantity.
func CommissionAmount(typ CommissionType, unitPrice decimal.Decimal, quantity int, rate decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(int64(quantity))
	switch typ {
	case CommissionFixed:
		return rate.Mul(qty)
	default:
		return unitPrice.Mul(qty).Mul(rate).Div(decimal.NewFromInt(100)).Round(0)
	}
}
