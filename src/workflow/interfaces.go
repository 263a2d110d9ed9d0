package workflow

import (
	"context"
	"errors"
	"io"

	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidTransition is returned when a user action is not legal in the
	// session's current step.
	ErrInvalidTransition = errors.New("action not allowed in current workflow step")
	// ErrSessionClosed is returned when an action targets a session that was
	// discarded, and by in-flight steps whose session was closed under them.
	ErrSessionClosed = errors.New("upload session closed")
	// ErrManualEntryIncomplete is a local validation failure of the manual
	// form: retailer and total amount are required to proceed.
	ErrManualEntryIncomplete = errors.New("retailer and total amount are required")
)

// ServiceError carries the message a remote service returned. The
// orchestrator surfaces it to the user verbatim; any other error is replaced
// by a generic fallback message.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

// FileUpload is a receipt file as received from the user.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.ReadSeeker
}

// Uploader accepts a receipt file and yields an opaque receipt identifier.
type Uploader interface {
	Upload(ctx context.Context, userID int64, file FileUpload) (receiptID string, err error)
}

// ExtractionResult is what the extraction/mapping service produced for a
// receipt: parsed fields plus a possibly empty allocation set.
type ExtractionResult struct {
	ParsedData   *models.ParsedReceipt
	Allocations  []models.Allocation
	TotalRoundUp decimal.Decimal
	AIProvider   string
}

// Extractor triggers extraction and allocation on an uploaded receipt.
// corrected, when non-nil, carries manually corrected receipt data for a
// re-run against the same upload.
type Extractor interface {
	Process(ctx context.Context, receiptID string, corrected *models.ParsedReceipt) (*ExtractionResult, error)
}

// ConfirmOverride carries corrected data into confirmation. When nil, the
// confirmation service finalizes from its own prior record.
type ConfirmOverride struct {
	ParsedData   *models.ParsedReceipt
	Allocations  []models.Allocation
	TotalRoundUp decimal.Decimal
	AIProvider   string
}

// ConfirmResult is the confirmation receipt from the ledger service.
type ConfirmResult struct {
	TransactionID string
	Message       string
}

// Confirmer finalizes a receipt into a persisted transaction.
type Confirmer interface {
	Confirm(ctx context.Context, receiptID string, override *ConfirmOverride) (*ConfirmResult, error)
}
