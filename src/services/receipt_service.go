package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/donkeyideas/kamioi-backend/src/events"
	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const (
	ckUserTransactions  = "transactions_user_%d"
	ckInvestmentSummary = "investment_summary_user_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type receiptServiceImpl struct {
	db          *sql.DB
	resultCache *cache.Cache
}

// NewReceiptService builds the read service and subscribes it to the
// receipt-processed broadcast so confirmed receipts show up on the next
// fetch.
func NewReceiptService(db *sql.DB, bus *events.Bus) ReceiptService {
	s := &receiptServiceImpl{
		db:          db,
		resultCache: cache.New(DefaultCacheExpiration, CacheCleanupInterval),
	}
	if bus != nil {
		bus.Subscribe(func(ev events.ReceiptProcessed) {
			s.InvalidateUserCache(ev.UserID)
		})
	}
	return s
}

func (s *receiptServiceImpl) InvalidateUserCache(userID int64) {
	s.resultCache.Delete(fmt.Sprintf(ckUserTransactions, userID))
	s.resultCache.Delete(fmt.Sprintf(ckInvestmentSummary, userID))
	logger.L.Debug("Invalidated round-up caches for user", "userID", userID)
}

func (s *receiptServiceImpl) GetTransactions(ctx context.Context, userID int64) ([]models.RoundUpTransaction, error) {
	cacheKey := fmt.Sprintf(ckUserTransactions, userID)
	if cached, found := s.resultCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for transactions", "userID", userID)
		return cached.([]models.RoundUpTransaction), nil
	}

	transactions, err := s.fetchTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.resultCache.Set(cacheKey, transactions, cache.DefaultExpiration)
	return transactions, nil
}

func (s *receiptServiceImpl) GetInvestmentSummary(ctx context.Context, userID int64) (*models.InvestmentSummary, error) {
	cacheKey := fmt.Sprintf(ckInvestmentSummary, userID)
	if cached, found := s.resultCache.Get(cacheKey); found {
		return cached.(*models.InvestmentSummary), nil
	}

	transactions, err := s.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &models.InvestmentSummary{
		TotalInvested: decimal.Zero,
		ReceiptCount:  len(transactions),
		BySymbol:      make(map[string]decimal.Decimal),
	}
	for _, tx := range transactions {
		summary.TotalInvested = summary.TotalInvested.Add(tx.TotalRoundUp)
		for _, alloc := range tx.Allocations {
			summary.BySymbol[alloc.StockSymbol] = summary.BySymbol[alloc.StockSymbol].Add(alloc.Amount)
		}
		if summary.LastConfirmedAt == nil || tx.CreatedAt.After(*summary.LastConfirmedAt) {
			t := tx.CreatedAt
			summary.LastConfirmedAt = &t
		}
	}

	s.resultCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

func (s *receiptServiceImpl) fetchTransactions(ctx context.Context, userID int64) ([]models.RoundUpTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, receipt_id, remote_transaction_id, retailer_name, total_round_up, ai_provider, created_at
		 FROM roundup_transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying transactions for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var transactions []models.RoundUpTransaction
	for rows.Next() {
		var tx models.RoundUpTransaction
		var remoteID, retailer, provider sql.NullString
		var totalStr string
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.ReceiptID, &remoteID, &retailer, &totalStr, &provider, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction row for userID %d: %w", userID, err)
		}
		tx.RemoteTransactionID = remoteID.String
		tx.RetailerName = retailer.String
		tx.AIProvider = provider.String
		total, err := decimal.NewFromString(totalStr)
		if err != nil {
			return nil, fmt.Errorf("parsing stored round-up %q: %w", totalStr, err)
		}
		tx.TotalRoundUp = total
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows for userID %d: %w", userID, err)
	}

	for i := range transactions {
		allocations, err := s.fetchAllocations(ctx, transactions[i].ID)
		if err != nil {
			return nil, err
		}
		transactions[i].Allocations = allocations
	}

	if transactions == nil {
		transactions = []models.RoundUpTransaction{}
	}
	logger.L.Debug("DB fetch complete", "userID", userID, "transactionCount", len(transactions))
	return transactions, nil
}

func (s *receiptServiceImpl) fetchAllocations(ctx context.Context, transactionID int64) ([]models.AllocationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, transaction_id, stock_symbol, stock_name, amount, percentage, reason, confidence
		 FROM allocations WHERE transaction_id = ? ORDER BY id ASC`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("querying allocations for transaction %d: %w", transactionID, err)
	}
	defer rows.Close()

	var records []models.AllocationRecord
	for rows.Next() {
		var rec models.AllocationRecord
		var name, reason sql.NullString
		var amountStr string
		if err := rows.Scan(&rec.ID, &rec.TransactionID, &rec.StockSymbol, &name, &amountStr, &rec.Percentage, &reason, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("scanning allocation row for transaction %d: %w", transactionID, err)
		}
		rec.StockName = name.String
		rec.Reason = reason.String
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("parsing stored allocation amount %q: %w", amountStr, err)
		}
		rec.Amount = amount
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating allocation rows for transaction %d: %w", transactionID, err)
	}
	return records, nil
}
