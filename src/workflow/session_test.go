package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotIsACopy(t *testing.T) {
	s := newSession("sess-1", 7)
	s.step = StepCompleted
	s.parsed = groceryExtraction().ParsedData
	s.allocations = groceryExtraction().Allocations
	s.totalRoundUp = dec("1.00")

	snap := s.Snapshot()
	snap.Allocations[0].StockSymbol = "XXX"
	snap.ParsedData.Retailer.Name = "Mutated"
	snap.ParsedData.Items[0].Name = "Mutated"

	fresh := s.Snapshot()
	assert.Equal(t, "PEP", fresh.Allocations[0].StockSymbol)
	assert.Equal(t, "Dollar General", fresh.ParsedData.Retailer.Name)
	assert.Equal(t, "Gatorade 28oz", fresh.ParsedData.Items[0].Name)
}

func TestResetClearsEverything(t *testing.T) {
	s := newSession("sess-1", 7)
	s.step = StepCompleted
	s.receiptID = "rcpt-123"
	s.parsed = groceryExtraction().ParsedData
	s.allocations = groceryExtraction().Allocations
	s.totalRoundUp = dec("1.00")
	s.aiProvider = "openai"
	s.errMsg = "old failure"
	s.warnings = []string{"old warning"}

	s.Reset()

	snap := s.Snapshot()
	assert.Equal(t, StepIdle, snap.Step)
	assert.Empty(t, snap.ReceiptID)
	assert.Nil(t, snap.ParsedData)
	assert.Empty(t, snap.Allocations)
	assert.True(t, snap.TotalRoundUp.IsZero())
	assert.Empty(t, snap.AIProvider)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.Warnings)
}

func TestResetIsIdempotent(t *testing.T) {
	s := newSession("sess-1", 7)
	s.step = StepError
	s.errMsg = "failure"

	s.Reset()
	first := s.Snapshot()
	s.Reset()
	second := s.Snapshot()

	assert.Equal(t, first, second)
}

func TestRegistryScopesSessionsToUser(t *testing.T) {
	r := NewRegistry(DefaultSessionTTL)
	s := r.Create(7)

	got, err := r.Get(s.ID(), 7)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get(s.ID(), 8)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = r.Get("no-such-session", 7)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistryDeleteClosesSession(t *testing.T) {
	r := NewRegistry(DefaultSessionTTL)
	s := r.Create(7)

	r.Delete(s.ID())

	_, err := r.Get(s.ID(), 7)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	o := newTestOrchestrator(nil, nil, nil, nil)
	_, err = o.Retry(s)
	assert.ErrorIs(t, err, ErrSessionClosed)
}
