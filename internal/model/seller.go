package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Seller is the account credited with commissions.
type Seller struct {
	ID            string          `gorm:"primaryKey;size:64;not null" json:"id"`
	Name          string          `gorm:"size:255" json:"name"`
	TotalEarnings decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"totalEarnings"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
