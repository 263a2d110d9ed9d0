package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundUpTransaction is the locally persisted mirror of a confirmed receipt:
// the ledger service owns the authoritative record, this row feeds the
// transaction list and investment summary without a remote round-trip.
type RoundUpTransaction struct {
	ID                  int64           `json:"id"`
	UserID              int64           `json:"user_id"`
	ReceiptID           string          `json:"receipt_id"`
	RemoteTransactionID string          `json:"transaction_id"`
	RetailerName        string          `json:"retailer_name"`
	TotalRoundUp        decimal.Decimal `json:"total_round_up"`
	AIProvider          string          `json:"ai_provider,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`

	Allocations []AllocationRecord `json:"allocations,omitempty"`
}

// AllocationRecord is one persisted per-ticker slice of a transaction.
type AllocationRecord struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"-"`
	StockSymbol   string          `json:"stock_symbol"`
	StockName     string          `json:"stock_name"`
	Amount        decimal.Decimal `json:"amount"`
	Percentage    float64         `json:"percentage"`
	Reason        string          `json:"reason,omitempty"`
	Confidence    float64         `json:"confidence"`
}

// InvestmentSummary aggregates a user's confirmed round-ups.
type InvestmentSummary struct {
	TotalInvested   decimal.Decimal            `json:"total_invested"`
	ReceiptCount    int                        `json:"receipt_count"`
	BySymbol        map[string]decimal.Decimal `json:"by_symbol"`
	LastConfirmedAt *time.Time                 `json:"last_confirmed_at,omitempty"`
}

// Receipt tracks an uploaded receipt file and where it got to in the
// workflow.
type Receipt struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Receipt status values.
const (
	ReceiptStatusUploaded  = "uploaded"
	ReceiptStatusProcessed = "processed"
	ReceiptStatusManual    = "manual"
	ReceiptStatusConfirmed = "confirmed"
)
