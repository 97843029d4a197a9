package service

import (
	"strings"
	"testing"

	"marketplace-orders/internal/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricePolicy_Trusted(t *testing.T) {
	catalog := decimal.NewFromInt(100)

	tests := []struct {
		name     string
		policy   PricePolicy
		client   decimal.NullDecimal
		want     string
		adjusted bool
	}{
		{"no client price", PricePolicy{TolerancePercent: decimal.NewFromInt(10), ClampToLower: true}, decimal.NullDecimal{}, "100", false},
		{"within tolerance below", PricePolicy{TolerancePercent: decimal.NewFromInt(10), ClampToLower: true}, decimal.NewNullDecimal(decimal.NewFromInt(91)), "91", false},
		{"at the edge", PricePolicy{TolerancePercent: decimal.NewFromInt(10), ClampToLower: true}, decimal.NewNullDecimal(decimal.NewFromInt(110)), "110", false},
		{"far above clamps to catalog", PricePolicy{TolerancePercent: decimal.NewFromInt(10), ClampToLower: true}, decimal.NewNullDecimal(decimal.NewFromInt(200)), "100", true},
		{"far below keeps lower", PricePolicy{TolerancePercent: decimal.NewFromInt(10), ClampToLower: true}, decimal.NewNullDecimal(decimal.NewFromInt(50)), "50", true},
		{"far below without clamping", PricePolicy{TolerancePercent: decimal.NewFromInt(10)}, decimal.NewNullDecimal(decimal.NewFromInt(50)), "100", true},
		{"zero client price ignored", PricePolicy{TolerancePercent: decimal.NewFromInt(10), ClampToLower: true}, decimal.NewNullDecimal(decimal.Zero), "100", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, adjusted := tt.policy.Trusted(tt.client, catalog)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
			assert.Equal(t, tt.adjusted, adjusted)
		})
	}
}

func TestNormalizeIdempotencyKey(t *testing.T) {
	key, err := NormalizeIdempotencyKey("  header-key ", "body-key")
	require.NoError(t, err)
	assert.Equal(t, "header-key", key)

	key, err = NormalizeIdempotencyKey("", " body-key")
	require.NoError(t, err)
	assert.Equal(t, "body-key", key)

	key, err = NormalizeIdempotencyKey("", "")
	require.NoError(t, err)
	assert.Empty(t, key)

	_, err = NormalizeIdempotencyKey(strings.Repeat("k", 129), "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}
