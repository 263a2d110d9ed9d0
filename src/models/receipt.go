package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Retailer identifies the merchant a receipt was issued by.
// StockSymbol is set when the merchant itself maps to a tradable ticker.
type Retailer struct {
	Name        string `json:"name"`
	StockSymbol string `json:"stock_symbol,omitempty"`
}

// ReceiptItem is a single line item on a parsed receipt.
type ReceiptItem struct {
	Name            string          `json:"name"`
	Brand           string          `json:"brand,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	BrandSymbol     string          `json:"brand_symbol,omitempty"`
	BrandConfidence float64         `json:"brand_confidence,omitempty"`
}

// ParsedReceipt is the structured result of extraction (or of manual entry).
// TotalAmount approximates the sum of item amounts; receipts may carry tax or
// fees that are not itemized, so equality is not enforced.
type ParsedReceipt struct {
	Retailer    Retailer        `json:"retailer"`
	Items       []ReceiptItem   `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Allocation assigns a portion of a round-up pool to a tradable instrument.
type Allocation struct {
	StockSymbol string          `json:"stock_symbol"`
	StockName   string          `json:"stock_name"`
	Amount      decimal.Decimal `json:"amount"`
	Percentage  float64         `json:"percentage"`
	Reason      string          `json:"reason,omitempty"`
	Confidence  float64         `json:"confidence"`
}

// Confidence display tiers. Tiers classify how certain the mapping service was
// about a brand-to-ticker match; they never influence the monetary split.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// ConfidenceTier buckets a 0-1 confidence score for display.
func ConfidenceTier(confidence float64) string {
	switch {
	case confidence >= 0.90:
		return TierHigh
	case confidence >= 0.70:
		return TierMedium
	default:
		return TierLow
	}
}

// allocationTolerance is one minor currency unit. The allocation service owns
// the split; the client only checks it adds up.
var allocationTolerance = decimal.NewFromFloat(0.01)

// ValidateAllocations checks that the allocation amounts sum to the round-up
// pool within one cent. An empty allocation list is always valid.
func ValidateAllocations(allocations []Allocation, totalRoundUp decimal.Decimal) error {
	if totalRoundUp.IsNegative() {
		return fmt.Errorf("total round-up must be non-negative, got %s", totalRoundUp)
	}
	if len(allocations) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, a := range allocations {
		if a.Amount.IsNegative() {
			return fmt.Errorf("allocation %s has negative amount %s", a.StockSymbol, a.Amount)
		}
		sum = sum.Add(a.Amount)
	}
	if sum.Sub(totalRoundUp).Abs().GreaterThan(allocationTolerance) {
		return fmt.Errorf("allocation amounts sum to %s, expected %s within %s", sum, totalRoundUp, allocationTolerance)
	}
	return nil
}
