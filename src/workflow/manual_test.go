package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildParsedReceipt(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	t.Run("valid form with mixed rows", func(t *testing.T) {
		form := ManualEntryForm{
			Retailer:    "  Target  ",
			TotalAmount: "25.00",
			Items: []ManualItem{
				{Name: "Shirt", Amount: "25.00", Brand: "Target"},
				{Name: "", Amount: "3.99"},       // placeholder row, no name
				{Name: "Socks", Amount: ""},      // placeholder row, no amount
				{Name: "Candy", Amount: "oops"},   // unparsable, zeroed with warning
				{Name: "Refund", Amount: "-2.00"}, // negative, zeroed with warning
			},
		}

		parsed, warnings, err := form.BuildParsedReceipt(now)
		require.NoError(t, err)
		require.NotNil(t, parsed)

		assert.Equal(t, "Target", parsed.Retailer.Name)
		assert.True(t, parsed.TotalAmount.Equal(dec("25.00")))
		assert.Equal(t, now, parsed.Timestamp)

		require.Len(t, parsed.Items, 3, "placeholder rows are dropped, bad amounts are kept")
		assert.Equal(t, "Shirt", parsed.Items[0].Name)
		assert.True(t, parsed.Items[0].Amount.Equal(dec("25.00")))
		assert.Equal(t, "Candy", parsed.Items[1].Name)
		assert.True(t, parsed.Items[1].Amount.IsZero())
		assert.Equal(t, "Refund", parsed.Items[2].Name)
		assert.True(t, parsed.Items[2].Amount.IsZero())

		require.Len(t, warnings, 2)
		assert.Contains(t, warnings[0], "Candy")
		assert.Contains(t, warnings[1], "Refund")
	})

	t.Run("missing retailer", func(t *testing.T) {
		form := ManualEntryForm{TotalAmount: "25.00"}
		_, _, err := form.BuildParsedReceipt(now)
		assert.ErrorIs(t, err, ErrManualEntryIncomplete)
	})

	t.Run("missing total", func(t *testing.T) {
		form := ManualEntryForm{Retailer: "Target"}
		_, _, err := form.BuildParsedReceipt(now)
		assert.ErrorIs(t, err, ErrManualEntryIncomplete)
	})

	t.Run("whitespace only counts as missing", func(t *testing.T) {
		form := ManualEntryForm{Retailer: "   ", TotalAmount: "25.00"}
		_, _, err := form.BuildParsedReceipt(now)
		assert.ErrorIs(t, err, ErrManualEntryIncomplete)
	})

	t.Run("unparsable total zeroed with warning", func(t *testing.T) {
		form := ManualEntryForm{Retailer: "Target", TotalAmount: "twenty"}
		parsed, warnings, err := form.BuildParsedReceipt(now)
		require.NoError(t, err)
		assert.True(t, parsed.TotalAmount.IsZero())
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "twenty")
	})

	t.Run("negative total rejected", func(t *testing.T) {
		form := ManualEntryForm{Retailer: "Target", TotalAmount: "-25.00"}
		_, _, err := form.BuildParsedReceipt(now)
		assert.ErrorIs(t, err, ErrManualEntryIncomplete)
	})
}
