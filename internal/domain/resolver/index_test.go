package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
)

func TestIndex_ByFingerprint(t *testing.T) {
	a := makeTransaction(t, day(2024, time.March, 1), "50.00", "EUR", "Acme GmbH")
	b := makeTransaction(t, day(2024, time.March, 1), "50.00", "EUR", "Acme GmbH")
	other := makeTransaction(t, day(2024, time.March, 1), "60.00", "EUR", "Acme GmbH")

	index := NewIndex()
	index.AddAll([]ledger.Transaction{a, b, other})

	assert.Equal(t, 3, index.Len())

	hits := index.ByFingerprint(a.Fingerprint)
	assert.Len(t, hits, 2)
	assert.Empty(t, index.ByFingerprint("no-such-fingerprint"))
}

func TestIndex_InWindow(t *testing.T) {
	txs := []ledger.Transaction{
		makeTransaction(t, day(2024, time.March, 1), "10.00", "EUR", "A"),
		makeTransaction(t, day(2024, time.March, 3), "10.00", "EUR", "B"),
		makeTransaction(t, day(2024, time.March, 5), "10.00", "EUR", "C"),
		makeTransaction(t, day(2024, time.March, 9), "10.00", "EUR", "D"),
	}

	index := NewIndex()
	index.AddAll(txs)

	assert.Len(t, index.InWindow(day(2024, time.March, 3), 2), 3)
	assert.Len(t, index.InWindow(day(2024, time.March, 3), 0), 1)
	assert.Len(t, index.InWindow(day(2024, time.March, 20), 3), 0)
	assert.Len(t, index.InWindow(day(2024, time.March, 3), 6), 4)
}
