package service

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PricePolicy decides which unit price an order line is charged. The client's
// snapshot wins while it stays within TolerancePercent of the catalog; past
// that the line is clamped to the lower of the two (or the catalog price when
// ClampToLower is off).
type PricePolicy struct {
	TolerancePercent decimal.Decimal
	ClampToLower     bool
}

// Trusted returns the price to charge and whether it differs from what the client sent.
func (p PricePolicy) Trusted(client decimal.NullDecimal, catalog decimal.Decimal) (decimal.Decimal, bool) {
	if !client.Valid || !client.Decimal.IsPositive() || !catalog.IsPositive() {
		return catalog, false
	}

	diff := client.Decimal.Sub(catalog).Abs().Div(catalog).Mul(hundred)
	if diff.LessThanOrEqual(p.TolerancePercent) {
		return client.Decimal, false
	}

	if p.ClampToLower {
		return decimal.Min(client.Decimal, catalog), true
	}
	return catalog, true
}
