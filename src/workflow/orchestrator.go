package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/donkeyideas/kamioi-backend/src/events"
	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/donkeyideas/kamioi-backend/src/security/validation"
	"github.com/shopspring/decimal"
)

// Config tunes the orchestrator. Zero values fall back to sane defaults.
type Config struct {
	// RequestTimeout bounds each remote call.
	RequestTimeout time.Duration
	// MaxUploadBytes is the receipt file size cap.
	MaxUploadBytes int64
	// DefaultRoundUp is the nominal pool adopted when manual entry completes
	// without any allocation, so the user can confirm rather than be blocked.
	DefaultRoundUp decimal.Decimal
}

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxUploadBytes = 10 * 1024 * 1024
)

// Orchestrator drives receipt upload sessions through the workflow: upload,
// extraction, manual fallback, and confirmation. It is the only writer of
// session state. Remote failures never escape as errors; they are converted
// into the error step or the manual-entry recovery path, and the returned
// error is reserved for caller mistakes (bad input, illegal action, closed
// session).
type Orchestrator struct {
	uploader  Uploader
	extractor Extractor
	confirmer Confirmer
	bus       *events.Bus

	timeout        time.Duration
	maxUploadBytes int64
	defaultRoundUp decimal.Decimal
}

func NewOrchestrator(uploader Uploader, extractor Extractor, confirmer Confirmer, bus *events.Bus, cfg Config) *Orchestrator {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.DefaultRoundUp.IsZero() {
		cfg.DefaultRoundUp = decimal.NewFromInt(1)
	}
	return &Orchestrator{
		uploader:       uploader,
		extractor:      extractor,
		confirmer:      confirmer,
		bus:            bus,
		timeout:        cfg.RequestTimeout,
		maxUploadBytes: cfg.MaxUploadBytes,
		defaultRoundUp: cfg.DefaultRoundUp,
	}
}

// StartUpload runs idle -> uploading -> extracting and lands the session in
// completed, manual-entry or error. The file gate (type, size) is checked
// before any remote call; a violation leaves the session in idle with the
// error message set and is returned to the caller as a local validation
// error.
func (o *Orchestrator) StartUpload(ctx context.Context, s *Session, file FileUpload) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	if !s.step.CanTransition(StepUploading) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrInvalidTransition
	}
	if err := validation.ValidateReceiptContentType(file.ContentType); err != nil {
		s.errMsg = err.Error()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	if err := validation.ValidateReceiptSize(file.Size, o.maxUploadBytes); err != nil {
		s.errMsg = err.Error()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}

	s.step = StepUploading
	s.errMsg = ""
	ep := s.epoch
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	s.cancel = cancel
	userID := s.userID
	s.mu.Unlock()

	receiptID, err := o.uploader.Upload(callCtx, userID, file)
	cancel()

	s.mu.Lock()
	if s.epoch != ep {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	if err != nil {
		s.step = StepError
		s.errMsg = remoteMessage(err, "Upload failed")
		snap := s.snapshotLocked()
		s.mu.Unlock()
		logger.L.Warn("Receipt upload failed", "sessionID", s.id, "error", err)
		return snap, nil
	}
	s.receiptID = receiptID
	s.step = StepExtracting
	s.mu.Unlock()

	return o.extract(ctx, s, ep, receiptID)
}

// extract runs the extraction/allocation pass for a freshly uploaded receipt.
// A service failure is a recoverable event, not a dead end: the session moves
// to manual entry with the failure message retained. A successful pass with
// zero allocations also lands in manual entry but without an error, as a
// normal review step.
func (o *Orchestrator) extract(ctx context.Context, s *Session, ep uint64, receiptID string) (Snapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	s.mu.Lock()
	if s.epoch != ep {
		s.mu.Unlock()
		cancel()
		return Snapshot{}, ErrSessionClosed
	}
	s.cancel = cancel
	s.mu.Unlock()

	result, err := o.extractor.Process(callCtx, receiptID, nil)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != ep {
		return Snapshot{}, ErrSessionClosed
	}
	if err != nil {
		s.step = StepManualEntry
		s.errMsg = remoteMessage(err, "AI extraction failed")
		logger.L.Warn("Receipt extraction failed, offering manual entry", "sessionID", s.id, "receiptID", receiptID, "error", err)
		return s.snapshotLocked(), nil
	}

	s.parsed = result.ParsedData
	s.aiProvider = result.AIProvider
	if len(result.Allocations) == 0 {
		s.step = StepManualEntry
		s.errMsg = ""
		logger.L.Info("Extraction returned no allocations, manual review required", "sessionID", s.id, "receiptID", receiptID)
		return s.snapshotLocked(), nil
	}

	if verr := models.ValidateAllocations(result.Allocations, result.TotalRoundUp); verr != nil {
		// The service owns the split; surface the inconsistency but display
		// what it returned.
		logger.L.Warn("Allocation sum mismatch in extraction result", "sessionID", s.id, "receiptID", receiptID, "error", verr)
	}
	s.allocations = result.Allocations
	s.totalRoundUp = result.TotalRoundUp
	s.step = StepCompleted
	s.errMsg = ""
	return s.snapshotLocked(), nil
}

// SubmitManual runs manual-entry -> analyzing -> completed. When a receipt
// was uploaded earlier, the corrected data is sent back through the
// extraction service for a fresh allocation attempt; if that fails, or no
// receipt exists to reprocess, the session still completes with an empty
// allocation set and the nominal round-up pool so the user can move on to
// confirmation.
func (o *Orchestrator) SubmitManual(ctx context.Context, s *Session, form ManualEntryForm) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	if !s.step.CanTransition(StepAnalyzing) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrInvalidTransition
	}

	parsed, warnings, err := form.BuildParsedReceipt(time.Now().UTC())
	if err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}

	s.step = StepAnalyzing
	s.parsed = parsed
	s.warnings = warnings
	s.errMsg = ""
	ep := s.epoch
	receiptID := s.receiptID

	if receiptID == "" {
		s.allocations = nil
		s.totalRoundUp = o.defaultRoundUp
		s.aiProvider = ""
		s.step = StepCompleted
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	s.cancel = cancel
	s.mu.Unlock()

	result, rerr := o.extractor.Process(callCtx, receiptID, parsed)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != ep {
		return Snapshot{}, ErrSessionClosed
	}
	if rerr != nil {
		// Completing anyway is deliberate: the corrected data is already in
		// hand, so let the user proceed to confirmation rather than block.
		logger.L.Warn("Reprocessing manual entry failed, completing without allocations", "sessionID", s.id, "receiptID", receiptID, "error", rerr)
		s.allocations = nil
		s.totalRoundUp = o.defaultRoundUp
		s.step = StepCompleted
		return s.snapshotLocked(), nil
	}

	s.allocations = result.Allocations
	s.totalRoundUp = result.TotalRoundUp
	s.aiProvider = result.AIProvider
	if len(result.Allocations) == 0 && result.TotalRoundUp.IsZero() {
		s.totalRoundUp = o.defaultRoundUp
	}
	s.step = StepCompleted
	return s.snapshotLocked(), nil
}

// Confirm finalizes a completed session against the ledger service. On
// success the session is discarded and the receipt-processed event fires
// exactly once; on failure the session moves to error keeping everything
// gathered so far, so a retry does not require re-entry. A remote failure
// returns (nil, nil): the outcome lives in the session snapshot.
func (o *Orchestrator) Confirm(ctx context.Context, s *Session) (*ConfirmResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.step != StepCompleted {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}

	var override *ConfirmOverride
	if len(s.allocations) > 0 {
		override = &ConfirmOverride{
			ParsedData:   s.parsed,
			Allocations:  append([]models.Allocation(nil), s.allocations...),
			TotalRoundUp: s.totalRoundUp,
			AIProvider:   s.aiProvider,
		}
	}
	ep := s.epoch
	receiptID := s.receiptID
	ev := events.ReceiptProcessed{
		UserID:          s.userID,
		SessionID:       s.id,
		ReceiptID:       receiptID,
		TotalRoundUp:    s.totalRoundUp,
		AllocationCount: len(s.allocations),
	}
	if s.parsed != nil {
		ev.RetailerName = s.parsed.Retailer.Name
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	s.cancel = cancel
	s.mu.Unlock()

	result, err := o.confirmer.Confirm(callCtx, receiptID, override)
	cancel()

	s.mu.Lock()
	if s.epoch != ep {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if err != nil {
		s.step = StepError
		s.errMsg = remoteMessage(err, "Failed to confirm receipt")
		s.mu.Unlock()
		logger.L.Warn("Receipt confirmation failed", "sessionID", s.id, "receiptID", receiptID, "error", err)
		return nil, nil
	}

	ev.TransactionID = result.TransactionID
	ev.ConfirmedAt = time.Now().UTC()
	s.resetLocked()
	s.closed = true
	s.mu.Unlock()

	if o.bus != nil {
		o.bus.Publish(ev)
	}
	logger.L.Info("Receipt confirmed", "sessionID", ev.SessionID, "receiptID", ev.ReceiptID, "transactionID", ev.TransactionID)
	return result, nil
}

// EnterManualEntry is the user-initiated move into the manual form, either
// as recovery from an error or to edit a completed extraction before a fresh
// confirmation. It clears any error message.
func (o *Orchestrator) EnterManualEntry(s *Session) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}
	if !s.step.CanTransition(StepManualEntry) {
		return s.snapshotLocked(), ErrInvalidTransition
	}
	s.step = StepManualEntry
	s.errMsg = ""
	return s.snapshotLocked(), nil
}

// Retry is the user-initiated "try again" from the error step: a full reset
// back to idle.
func (o *Orchestrator) Retry(s *Session) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrSessionClosed
	}
	if s.step != StepError {
		return s.snapshotLocked(), ErrInvalidTransition
	}
	s.resetLocked()
	return s.snapshotLocked(), nil
}

func remoteMessage(err error, fallback string) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}
