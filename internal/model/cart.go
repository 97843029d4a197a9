package model

import "time"

type CartItem struct {
	ID         uint    `gorm:"primaryKey"`
	CustomerID string  `gorm:"size:64;index;not null"`
	ProductID  string  `gorm:"size:64;not null"`
	VariantID  *string `gorm:"size:64"`
	Quantity   int     `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
