package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/donkeyideas/kamioi-backend/src/config"
	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/donkeyideas/kamioi-backend/src/security/validation"
	"github.com/donkeyideas/kamioi-backend/src/storage"
	"github.com/donkeyideas/kamioi-backend/src/utils"
	"github.com/donkeyideas/kamioi-backend/src/workflow"
)

// ReceiptHandler exposes the receipt workflow over HTTP. Each route is a thin
// shim: resolve the session, invoke the orchestrator action, return the
// session snapshot.
type ReceiptHandler struct {
	registry     *workflow.Registry
	orchestrator *workflow.Orchestrator
	store        *storage.ReceiptStore
}

func NewReceiptHandler(registry *workflow.Registry, orchestrator *workflow.Orchestrator, store *storage.ReceiptStore) *ReceiptHandler {
	return &ReceiptHandler{
		registry:     registry,
		orchestrator: orchestrator,
		store:        store,
	}
}

func (h *ReceiptHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "userID", userID, "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// The declared type and size gates live in the orchestrator; the magic
	// byte sniff happens here because only the handler holds the raw stream
	// before the workflow takes ownership of it.
	detectedType, err := validation.ValidateReceiptContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side file content validation failed", "userID", userID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Debug("Receipt content validated by magic bytes", "userID", userID, "filename", fileHeader.Filename, "detectedType", detectedType)

	session := h.registry.Create(userID)
	snap, err := h.orchestrator.StartUpload(r.Context(), session, workflow.FileUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Content:     file,
	})
	if err != nil {
		if errors.Is(err, validation.ErrInvalidFile) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.L.Error("Internal error starting receipt upload", "userID", userID, "error", err)
		utils.SendJSONError(w, "An internal error occurred while processing the receipt. Please try again later.", http.StatusInternalServerError)
		return
	}

	h.recordReceiptOutcome(r, snap)
	writeSnapshot(w, snap)
}

func (h *ReceiptHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	writeSnapshot(w, session.Snapshot())
}

func (h *ReceiptHandler) HandleManualSubmit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var form workflow.ManualEntryForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	snap, err := h.orchestrator.SubmitManual(r.Context(), session, form)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}
	h.recordReceiptOutcome(r, snap)
	writeSnapshot(w, snap)
}

func (h *ReceiptHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.orchestrator.Confirm(r.Context(), session)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}
	if result == nil {
		// Remote confirmation failed; the session holds the message and the
		// data gathered so far for a retry.
		snap := session.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   snap.Error,
			"session": snap,
		})
		return
	}

	h.registry.Delete(session.ID())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transaction_id": result.TransactionID,
		"message":        result.Message,
	})
}

func (h *ReceiptHandler) HandleEnterManually(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	snap, err := h.orchestrator.EnterManualEntry(session)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}
	writeSnapshot(w, snap)
}

func (h *ReceiptHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	snap, err := h.orchestrator.Retry(session)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}
	writeSnapshot(w, snap)
}

func (h *ReceiptHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	h.registry.Delete(session.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReceiptHandler) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*workflow.Session, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return nil, false
	}
	session, err := h.registry.Get(r.PathValue("id"), userID)
	if err != nil {
		utils.SendJSONError(w, "Upload session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (h *ReceiptHandler) writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrManualEntryIncomplete):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, validation.ErrInvalidFile):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, workflow.ErrInvalidTransition):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, workflow.ErrSessionClosed), errors.Is(err, workflow.ErrSessionNotFound):
		utils.SendJSONError(w, "Upload session not found", http.StatusNotFound)
	default:
		utils.SendJSONError(w, "An internal error occurred", http.StatusInternalServerError)
	}
}

// recordReceiptOutcome keeps the receipt row's status in step with where the
// workflow landed. Best effort; the session is the source of truth.
func (h *ReceiptHandler) recordReceiptOutcome(r *http.Request, snap workflow.Snapshot) {
	if h.store == nil || snap.ReceiptID == "" {
		return
	}
	var status string
	switch snap.Step {
	case workflow.StepCompleted:
		status = models.ReceiptStatusProcessed
	case workflow.StepManualEntry:
		status = models.ReceiptStatusManual
	default:
		return
	}
	if err := h.store.UpdateStatus(r.Context(), snap.ReceiptID, status); err != nil {
		logger.L.Warn("Failed to update receipt status", "receiptID", snap.ReceiptID, "status", status, "error", err)
	}
}

func writeSnapshot(w http.ResponseWriter, snap workflow.Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"session": snap}); err != nil {
		logger.L.Error("Error encoding session snapshot", "sessionID", snap.ID, "error", err)
	}
}
