package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Product is the catalog entry. Stock is only ever changed through the
// inventory ledger's conditional updates.
type Product struct {
	ID             string          `gorm:"primaryKey;size:64;not null" json:"id"`
	SellerID       string          `gorm:"size:64;index;not null" json:"sellerId"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Price          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	Currency       string          `gorm:"size:8;not null" json:"currency"`
	Stock          int             `gorm:"not null;default:0;check:chk_products_stock,stock >= 0" json:"stock"`
	ApprovalStatus ApprovalStatus  `gorm:"size:16;index;not null" json:"approvalStatus"`
	Published      bool            `gorm:"not null;default:false" json:"published"`

	// empty type falls back to the configured default
	CommissionType CommissionType  `gorm:"size:16" json:"commissionType,omitempty"`
	CommissionRate decimal.Decimal `gorm:"type:decimal(10,4)" json:"commissionRate"`

	Variants []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Product) Purchasable() bool {
	return p.ApprovalStatus == ApprovalApproved && p.Published
}

type ProductVariant struct {
	ID        string `gorm:"primaryKey;size:64;not null" json:"id"`
	ProductID string `gorm:"size:64;index;not null" json:"productId"`
	Size      string `gorm:"size:32" json:"size,omitempty"`
	Color     string `gorm:"size:32" json:"color,omitempty"`
	// NULL means the product price applies
	Price decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"price"`
	Stock int                 `gorm:"not null;default:0;check:chk_product_variants_stock,stock >= 0" json:"stock"`
}

// EffectivePrice is the live catalog price for a product or one of its variants.
func EffectivePrice(p *Product, v *ProductVariant) decimal.Decimal {
	if v != nil && v.Price.Valid {
		return v.Price.Decimal
	}
	return p.Price
}
