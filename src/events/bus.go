// Package events carries the process-wide "receipt processed" broadcast.
// Views that cache derived data (transaction lists, summaries) subscribe and
// refetch; the workflow publishes and never knows who listens.
package events

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptProcessed is published exactly once per successfully confirmed
// receipt.
type ReceiptProcessed struct {
	UserID          int64
	SessionID       string
	ReceiptID       string
	TransactionID   string
	RetailerName    string
	TotalRoundUp    decimal.Decimal
	AllocationCount int
	ConfirmedAt     time.Time
}

// Handler receives a processed-receipt notification. Handlers run
// synchronously on the publishing goroutine and must not block.
type Handler func(ReceiptProcessed)

// Bus is a minimal publish/subscribe registry.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all future publications.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(ev ReceiptProcessed) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
