package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/services"
	"github.com/donkeyideas/kamioi-backend/src/utils"
)

type TransactionHandler struct {
	receiptService services.ReceiptService
}

func NewTransactionHandler(receiptService services.ReceiptService) *TransactionHandler {
	return &TransactionHandler{
		receiptService: receiptService,
	}
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	transactions, err := h.receiptService.GetTransactions(r.Context(), userID)
	if err != nil {
		logger.L.Error("Error retrieving transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving transactions for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	if etag, err := utils.GenerateETag(transactions); err == nil && etag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", etag)
		w.Header().Set("ETag", quotedETag)
		for _, clientETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(clientETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else if err != nil {
		logger.L.Warn("Proceeding without ETag check due to ETag generation error", "userID", userID, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(transactions); err != nil {
		logger.L.Error("Error generating JSON response for transactions", "userID", userID, "error", err)
	}
}

func (h *TransactionHandler) HandleGetInvestmentSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	summary, err := h.receiptService.GetInvestmentSummary(r.Context(), userID)
	if err != nil {
		logger.L.Error("Error retrieving investment summary", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving investment summary for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Error generating JSON response for investment summary", "userID", userID, "error", err)
	}
}
