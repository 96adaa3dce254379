package resolver

import (
	"time"

	"github.com/Oleguzik/ngo-automation/internal/domain/ledger"
)

// Index is an in-memory Snapshot implementation. Transactions are
// indexed by fingerprint and by calendar day as they are added, so
// insertion stays O(1) amortized and Evaluate never rescans the full
// set. Index is not safe for concurrent mutation; build it, then
// share it read-only.
type Index struct {
	byFingerprint map[string][]ledger.Transaction
	byDay         map[string][]ledger.Transaction
	size          int
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		byFingerprint: make(map[string][]ledger.Transaction),
		byDay:         make(map[string][]ledger.Transaction),
	}
}

// Add inserts one transaction into both indexes.
func (ix *Index) Add(tx ledger.Transaction) {
	ix.byFingerprint[tx.Fingerprint] = append(ix.byFingerprint[tx.Fingerprint], tx)
	day := dayKey(tx.Date)
	ix.byDay[day] = append(ix.byDay[day], tx)
	ix.size++
}

// AddAll inserts a batch of transactions.
func (ix *Index) AddAll(txs []ledger.Transaction) {
	for _, tx := range txs {
		ix.Add(tx)
	}
}

// Len returns the number of indexed transactions.
func (ix *Index) Len() int {
	return ix.size
}

// ByFingerprint implements Snapshot.
func (ix *Index) ByFingerprint(fp string) []ledger.Transaction {
	return ix.byFingerprint[fp]
}

// InWindow implements Snapshot by walking the 2*days+1 day buckets
// around center.
func (ix *Index) InWindow(center time.Time, days int) []ledger.Transaction {
	var out []ledger.Transaction
	for offset := -days; offset <= days; offset++ {
		day := dayKey(center.AddDate(0, 0, offset))
		out = append(out, ix.byDay[day]...)
	}
	return out
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
