package services

import (
	"context"
	"errors"

	"github.com/donkeyideas/kamioi-backend/src/models"
)

var (
	// ErrRecordingFailed wraps failures to mirror a confirmed receipt into
	// the local database.
	ErrRecordingFailed = errors.New("recording confirmed receipt failed")
)

// ReceiptService serves the read side of confirmed round-ups: the
// transaction list and the investment summary, both cached until the next
// confirmation invalidates them.
type ReceiptService interface {
	GetTransactions(ctx context.Context, userID int64) ([]models.RoundUpTransaction, error)
	GetInvestmentSummary(ctx context.Context, userID int64) (*models.InvestmentSummary, error)
	InvalidateUserCache(userID int64)
}
