// Package clients holds the HTTP adapters for the remote collaborators of
// the receipt workflow: the AI extraction/mapping service and the ledger
// confirmation service. Both are opaque; only their JSON envelopes are known
// here.
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

// ExtractionClient calls the AI service that parses an uploaded receipt and
// maps its merchants and brands to tradable tickers.
type ExtractionClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewExtractionClient(baseURL, apiKey string, timeout time.Duration) *ExtractionClient {
	return &ExtractionClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type processRequest struct {
	ReceiptID string                `json:"receipt_id"`
	Corrected *models.ParsedReceipt `json:"corrected_data,omitempty"`
}

type processData struct {
	ParsedData   *models.ParsedReceipt `json:"parsed_data"`
	Allocations  []models.Allocation   `json:"allocations"`
	TotalRoundUp decimal.Decimal       `json:"total_round_up"`
	AIProvider   string                `json:"ai_provider"`
}

type processResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Data    *processData `json:"data,omitempty"`
}

// Process triggers extraction and allocation for a previously uploaded
// receipt. corrected, when non-nil, re-runs allocation against manually
// corrected data.
func (c *ExtractionClient) Process(ctx context.Context, receiptID string, corrected *models.ParsedReceipt) (*workflow.ExtractionResult, error) {
	payload, err := json.Marshal(processRequest{ReceiptID: receiptID, Corrected: corrected})
	if err != nil {
		return nil, fmt.Errorf("marshaling process request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/receipts/process", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building process request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling extraction service: %w", err)
	}
	defer resp.Body.Close()

	var envelope processResponse
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); decodeErr != nil {
		return nil, fmt.Errorf("extraction service returned status %d with undecodable body: %w", resp.StatusCode, decodeErr)
	}

	if resp.StatusCode != http.StatusOK || !envelope.Success {
		logger.L.Warn("Extraction service reported failure", "receiptID", receiptID, "status", resp.StatusCode, "serviceError", envelope.Error)
		if envelope.Error != "" {
			return nil, &workflow.ServiceError{Message: envelope.Error}
		}
		return nil, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("extraction service returned no data")
	}

	return &workflow.ExtractionResult{
		ParsedData:   envelope.Data.ParsedData,
		Allocations:  envelope.Data.Allocations,
		TotalRoundUp: envelope.Data.TotalRoundUp,
		AIProvider:   envelope.Data.AIProvider,
	}, nil
}
