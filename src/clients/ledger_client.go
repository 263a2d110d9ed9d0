package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/donkeyideas/kamioi-backend/src/workflow"
	"github.com/shopspring/decimal"
)

// LedgerClient calls the service that finalizes a processed receipt into a
// persisted transaction and per-ticker allocation rows.
type LedgerClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewLedgerClient(baseURL string, timeout time.Duration) *LedgerClient {
	return &LedgerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type confirmOverridePayload struct {
	ParsedData   *models.ParsedReceipt `json:"parsed_data,omitempty"`
	Allocations  []models.Allocation   `json:"allocations"`
	TotalRoundUp decimal.Decimal       `json:"total_round_up"`
	AIProvider   string                `json:"ai_provider,omitempty"`
}

type confirmRequest struct {
	ReceiptID string                  `json:"receipt_id"`
	Override  *confirmOverridePayload `json:"override,omitempty"`
}

type confirmResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    *struct {
		TransactionID json.Number `json:"transaction_id"`
		Message       string      `json:"message,omitempty"`
	} `json:"data,omitempty"`
}

// Confirm finalizes the receipt. A nil override tells the service to use its
// own prior record for this receipt.
func (c *LedgerClient) Confirm(ctx context.Context, receiptID string, override *workflow.ConfirmOverride) (*workflow.ConfirmResult, error) {
	reqBody := confirmRequest{ReceiptID: receiptID}
	if override != nil {
		reqBody.Override = &confirmOverridePayload{
			ParsedData:   override.ParsedData,
			Allocations:  override.Allocations,
			TotalRoundUp: override.TotalRoundUp,
			AIProvider:   override.AIProvider,
		}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling confirm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/receipts/confirm", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ledger service: %w", err)
	}
	defer resp.Body.Close()

	var envelope confirmResponse
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); decodeErr != nil {
		return nil, fmt.Errorf("ledger service returned status %d with undecodable body: %w", resp.StatusCode, decodeErr)
	}

	if resp.StatusCode != http.StatusOK || !envelope.Success {
		logger.L.Warn("Ledger service reported failure", "receiptID", receiptID, "status", resp.StatusCode, "serviceError", envelope.Error)
		if envelope.Error != "" {
			return nil, &workflow.ServiceError{Message: envelope.Error}
		}
		return nil, fmt.Errorf("ledger service returned status %d", resp.StatusCode)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("ledger service returned no confirmation data")
	}

	return &workflow.ConfirmResult{
		TransactionID: envelope.Data.TransactionID.String(),
		Message:       envelope.Data.Message,
	}, nil
}
