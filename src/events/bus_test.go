package events

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var first, second []ReceiptProcessed
	bus.Subscribe(func(ev ReceiptProcessed) { first = append(first, ev) })
	bus.Subscribe(func(ev ReceiptProcessed) { second = append(second, ev) })

	ev := ReceiptProcessed{
		UserID:       7,
		SessionID:    "sess-1",
		ReceiptID:    "rcpt-123",
		RetailerName: "Dollar General",
		TotalRoundUp: decimal.NewFromInt(1),
	}
	bus.Publish(ev)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "rcpt-123", first[0].ReceiptID)
	assert.Equal(t, "Dollar General", second[0].RetailerName)
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Publish(ReceiptProcessed{UserID: 7})
	})
}

func TestBusSubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	delivered := 0
	bus.Subscribe(func(ReceiptProcessed) {
		delivered++
		// Subscribing from inside a handler must not deadlock.
		bus.Subscribe(func(ReceiptProcessed) {})
	})

	bus.Publish(ReceiptProcessed{UserID: 7})
	assert.Equal(t, 1, delivered)
}
