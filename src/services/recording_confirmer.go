package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/donkeyideas/kamioi-backend/src/workflow"
)

// recordingConfirmer decorates the remote ledger confirmer: once the remote
// service accepts the receipt, the transaction and its allocation rows are
// mirrored into the local database and the receipt row is marked confirmed.
// Mirroring failures are logged, not surfaced — the remote confirmation
// already succeeded and must not be reported as failed to the user.
type recordingConfirmer struct {
	remote workflow.Confirmer
	db     *sql.DB
	userID func(ctx context.Context) (int64, bool)
}

// NewRecordingConfirmer wraps remote so confirmed receipts land in the local
// roundup_transactions/allocations tables. userID extracts the acting user
// from the request context.
func NewRecordingConfirmer(remote workflow.Confirmer, db *sql.DB, userID func(ctx context.Context) (int64, bool)) workflow.Confirmer {
	return &recordingConfirmer{remote: remote, db: db, userID: userID}
}

func (c *recordingConfirmer) Confirm(ctx context.Context, receiptID string, override *workflow.ConfirmOverride) (*workflow.ConfirmResult, error) {
	result, err := c.remote.Confirm(ctx, receiptID, override)
	if err != nil {
		return nil, err
	}

	uid, ok := c.userID(ctx)
	if !ok {
		logger.L.Warn("Confirmed receipt has no user in context, skipping local mirror", "receiptID", receiptID)
		return result, nil
	}

	if recordErr := c.record(ctx, uid, receiptID, result, override); recordErr != nil {
		logger.L.Error("Failed to mirror confirmed receipt locally", "receiptID", receiptID, "userID", uid, "error", recordErr)
	}
	return result, nil
}

func (c *recordingConfirmer) record(ctx context.Context, userID int64, receiptID string, result *workflow.ConfirmResult, override *workflow.ConfirmOverride) error {
	dbTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", ErrRecordingFailed, err)
	}
	defer dbTx.Rollback()

	retailer := ""
	total := "0"
	provider := ""
	var allocations []models.Allocation
	if override != nil {
		if override.ParsedData != nil {
			retailer = override.ParsedData.Retailer.Name
		}
		total = override.TotalRoundUp.StringFixed(2)
		provider = override.AIProvider
		allocations = override.Allocations
	}

	res, err := dbTx.ExecContext(ctx,
		`INSERT INTO roundup_transactions (user_id, receipt_id, remote_transaction_id, retailer_name, total_round_up, ai_provider)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, receiptID, result.TransactionID, retailer, total, provider)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
			logger.L.Debug("Receipt already mirrored, skipping", "receiptID", receiptID, "userID", userID)
			return nil
		}
		return fmt.Errorf("%w: inserting transaction: %v", ErrRecordingFailed, err)
	}
	txID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: reading transaction id: %v", ErrRecordingFailed, err)
	}

	for _, alloc := range allocations {
		_, err := dbTx.ExecContext(ctx,
			`INSERT INTO allocations (transaction_id, stock_symbol, stock_name, amount, percentage, reason, confidence)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			txID, alloc.StockSymbol, alloc.StockName, alloc.Amount.StringFixed(2), alloc.Percentage, alloc.Reason, alloc.Confidence)
		if err != nil {
			return fmt.Errorf("%w: inserting allocation for %s: %v", ErrRecordingFailed, alloc.StockSymbol, err)
		}
	}

	if _, err := dbTx.ExecContext(ctx, `UPDATE receipts SET status = ? WHERE id = ?`, models.ReceiptStatusConfirmed, receiptID); err != nil {
		return fmt.Errorf("%w: updating receipt status: %v", ErrRecordingFailed, err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %v", ErrRecordingFailed, err)
	}
	return nil
}
