package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/shopspring/decimal"
)

// ManualItem is one row of the manual-entry form. Fields arrive as the user
// typed them; amounts are parsed on submission.
type ManualItem struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Brand  string `json:"brand"`
}

// ManualEntryForm is the manual fallback when extraction fails or needs
// review. Retailer and TotalAmount are required to submit; item rows are
// individually optional.
type ManualEntryForm struct {
	Retailer    string       `json:"retailer"`
	TotalAmount string       `json:"total_amount"`
	Items       []ManualItem `json:"items"`
}

// BuildParsedReceipt converts the form into a ParsedReceipt.
//
// Rows missing a name or an amount are placeholder rows the user never filled
// in; they are dropped without complaint. Amounts that are present but do not
// parse keep the row and record zero, and the returned warnings name each
// value that was zeroed so the caller can surface it instead of silently
// corrupting the entry.
func (f ManualEntryForm) BuildParsedReceipt(now time.Time) (*models.ParsedReceipt, []string, error) {
	retailer := strings.TrimSpace(f.Retailer)
	totalStr := strings.TrimSpace(f.TotalAmount)
	if retailer == "" || totalStr == "" {
		return nil, nil, ErrManualEntryIncomplete
	}

	var warnings []string

	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		total = decimal.Zero
		warnings = append(warnings, fmt.Sprintf("total amount %q is not a number, recorded as 0", totalStr))
	}
	if total.IsNegative() {
		return nil, nil, fmt.Errorf("%w: total amount must be non-negative", ErrManualEntryIncomplete)
	}

	var items []models.ReceiptItem
	for _, row := range f.Items {
		name := strings.TrimSpace(row.Name)
		amountStr := strings.TrimSpace(row.Amount)
		if name == "" || amountStr == "" {
			continue
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			amount = decimal.Zero
			warnings = append(warnings, fmt.Sprintf("amount %q for item %q is not a number, recorded as 0", amountStr, name))
		}
		if amount.IsNegative() {
			amount = decimal.Zero
			warnings = append(warnings, fmt.Sprintf("amount %q for item %q is negative, recorded as 0", amountStr, name))
		}
		items = append(items, models.ReceiptItem{
			Name:   name,
			Brand:  strings.TrimSpace(row.Brand),
			Amount: amount,
		})
	}

	return &models.ParsedReceipt{
		Retailer:    models.Retailer{Name: retailer},
		Items:       items,
		TotalAmount: total,
		Timestamp:   now,
	}, warnings, nil
}
