package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestConfidenceTier(t *testing.T) {
	assert.Equal(t, TierHigh, ConfidenceTier(1.0))
	assert.Equal(t, TierHigh, ConfidenceTier(0.90))
	assert.Equal(t, TierMedium, ConfidenceTier(0.89))
	assert.Equal(t, TierMedium, ConfidenceTier(0.70))
	assert.Equal(t, TierLow, ConfidenceTier(0.69))
	assert.Equal(t, TierLow, ConfidenceTier(0))
}

func TestValidateAllocations(t *testing.T) {
	t.Run("exact sum", func(t *testing.T) {
		allocs := []Allocation{
			{StockSymbol: "PEP", Amount: dec("0.60")},
			{StockSymbol: "NKE", Amount: dec("0.40")},
		}
		assert.NoError(t, ValidateAllocations(allocs, dec("1.00")))
	})

	t.Run("within one cent", func(t *testing.T) {
		allocs := []Allocation{
			{StockSymbol: "PEP", Amount: dec("0.33")},
			{StockSymbol: "NKE", Amount: dec("0.33")},
			{StockSymbol: "KO", Amount: dec("0.33")},
		}
		assert.NoError(t, ValidateAllocations(allocs, dec("1.00")))
	})

	t.Run("beyond tolerance", func(t *testing.T) {
		allocs := []Allocation{
			{StockSymbol: "PEP", Amount: dec("0.50")},
			{StockSymbol: "NKE", Amount: dec("0.40")},
		}
		assert.Error(t, ValidateAllocations(allocs, dec("1.00")))
	})

	t.Run("empty list is valid", func(t *testing.T) {
		assert.NoError(t, ValidateAllocations(nil, dec("1.00")))
		assert.NoError(t, ValidateAllocations(nil, decimal.Zero))
	})

	t.Run("negative allocation", func(t *testing.T) {
		allocs := []Allocation{
			{StockSymbol: "PEP", Amount: dec("1.50")},
			{StockSymbol: "NKE", Amount: dec("-0.50")},
		}
		assert.Error(t, ValidateAllocations(allocs, dec("1.00")))
	})

	t.Run("negative pool", func(t *testing.T) {
		assert.Error(t, ValidateAllocations(nil, dec("-1.00")))
	})
}
