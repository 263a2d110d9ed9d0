package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/shopspring/decimal"
)

// Session is one user-initiated receipt upload: the step it is at, the data
// gathered so far, and the bookkeeping needed to ignore stale remote results.
// All mutation goes through the orchestrator.
type Session struct {
	mu sync.Mutex

	id     string
	userID int64

	step         Step
	receiptID    string
	parsed       *models.ParsedReceipt
	allocations  []models.Allocation
	totalRoundUp decimal.Decimal
	aiProvider   string
	errMsg       string
	warnings     []string

	// epoch increments on every reset/close. An in-flight remote call
	// captures the epoch before releasing the lock and only commits its
	// result if the epoch is unchanged, so a late response can never mutate
	// a discarded session.
	epoch  uint64
	cancel context.CancelFunc
	closed bool

	createdAt time.Time
}

func newSession(id string, userID int64) *Session {
	return &Session{
		id:           id,
		userID:       userID,
		step:         StepIdle,
		totalRoundUp: decimal.Zero,
		createdAt:    time.Now(),
	}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) UserID() int64 { return s.userID }

// Snapshot is an immutable view of a session for handlers and tests.
type Snapshot struct {
	ID           string                `json:"id"`
	Step         Step                  `json:"step"`
	ReceiptID    string                `json:"receipt_id,omitempty"`
	ParsedData   *models.ParsedReceipt `json:"parsed_data,omitempty"`
	Allocations  []models.Allocation   `json:"allocations"`
	TotalRoundUp decimal.Decimal       `json:"total_round_up"`
	AIProvider   string                `json:"ai_provider,omitempty"`
	Error        string                `json:"error,omitempty"`
	Warnings     []string              `json:"warnings,omitempty"`
}

// Snapshot returns a copy of the session's observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           s.id,
		Step:         s.step,
		ReceiptID:    s.receiptID,
		TotalRoundUp: s.totalRoundUp,
		AIProvider:   s.aiProvider,
		Error:        s.errMsg,
	}
	if s.parsed != nil {
		parsedCopy := *s.parsed
		parsedCopy.Items = append([]models.ReceiptItem(nil), s.parsed.Items...)
		snap.ParsedData = &parsedCopy
	}
	snap.Allocations = append([]models.Allocation(nil), s.allocations...)
	snap.Warnings = append([]string(nil), s.warnings...)
	return snap
}

// Reset returns the session to a pristine idle state. Any in-flight remote
// call is cancelled and its eventual result dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// Close discards the session for good. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.closed = true
}

func (s *Session) resetLocked() {
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.step = StepIdle
	s.receiptID = ""
	s.parsed = nil
	s.allocations = nil
	s.totalRoundUp = decimal.Zero
	s.aiProvider = ""
	s.errMsg = ""
	s.warnings = nil
}
