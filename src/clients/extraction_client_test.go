package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/donkeyideas/kamioi-backend/src/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	m.Run()
}

func TestExtractionClientProcess(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/receipts/process", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "rcpt-123", req["receipt_id"])
			assert.NotContains(t, req, "corrected_data")

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"success": true,
				"data": {
					"parsed_data": {
						"retailer": {"name": "Dollar General", "stock_symbol": "DG"},
						"items": [{"name": "Gatorade 28oz", "brand": "Gatorade", "amount": "2.50", "brand_symbol": "PEP", "brand_confidence": 0.95}],
						"total_amount": "23.45",
						"timestamp": "2026-03-14T10:30:00Z"
					},
					"allocations": [
						{"stock_symbol": "PEP", "stock_name": "PepsiCo Inc", "amount": "0.60", "percentage": 60, "confidence": 0.95},
						{"stock_symbol": "NKE", "stock_name": "Nike Inc", "amount": "0.40", "percentage": 40, "confidence": 0.88}
					],
					"total_round_up": "1.00",
					"ai_provider": "openai"
				}
			}`))
		}))
		defer server.Close()

		client := NewExtractionClient(server.URL, "test-key", 5*time.Second)
		result, err := client.Process(context.Background(), "rcpt-123", nil)
		require.NoError(t, err)

		require.NotNil(t, result.ParsedData)
		assert.Equal(t, "Dollar General", result.ParsedData.Retailer.Name)
		require.Len(t, result.Allocations, 2)
		assert.Equal(t, "PEP", result.Allocations[0].StockSymbol)
		assert.Equal(t, "1", result.TotalRoundUp.String())
		assert.Equal(t, "openai", result.AIProvider)
	})

	t.Run("corrected data forwarded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			corrected, ok := req["corrected_data"].(map[string]interface{})
			require.True(t, ok)
			retailer := corrected["retailer"].(map[string]interface{})
			assert.Equal(t, "Target", retailer["name"])

			w.Write([]byte(`{"success": true, "data": {"allocations": [], "total_round_up": "0", "ai_provider": "openai"}}`))
		}))
		defer server.Close()

		client := NewExtractionClient(server.URL, "", 5*time.Second)
		corrected := &models.ParsedReceipt{Retailer: models.Retailer{Name: "Target"}}
		result, err := client.Process(context.Background(), "rcpt-123", corrected)
		require.NoError(t, err)
		assert.Empty(t, result.Allocations)
	})

	t.Run("service error surfaces verbatim", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"success": false, "error": "Receipt image too blurry to read"}`))
		}))
		defer server.Close()

		client := NewExtractionClient(server.URL, "", 5*time.Second)
		_, err := client.Process(context.Background(), "rcpt-123", nil)
		require.Error(t, err)

		var se *workflow.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "Receipt image too blurry to read", se.Message)
	})

	t.Run("bare failure status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success": false}`))
		}))
		defer server.Close()

		client := NewExtractionClient(server.URL, "", 5*time.Second)
		_, err := client.Process(context.Background(), "rcpt-123", nil)
		require.Error(t, err)

		var se *workflow.ServiceError
		assert.False(t, errors.As(err, &se), "no message means no verbatim pass-through")
	})

	t.Run("success without data", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": true}`))
		}))
		defer server.Close()

		client := NewExtractionClient(server.URL, "", 5*time.Second)
		_, err := client.Process(context.Background(), "rcpt-123", nil)
		assert.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{"success": true, "data": {}}`))
		}))
		defer server.Close()

		client := NewExtractionClient(server.URL, "", 50*time.Millisecond)
		_, err := client.Process(context.Background(), "rcpt-123", nil)
		assert.Error(t, err)
	})
}
