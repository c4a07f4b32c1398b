package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/creatorrr/sonnun/pkg/provenance"
)

// MemoryLedger is an in-memory Ledger for tests and dev mode. The store
// handle is constructor-injected, so concurrent test instances stay
// isolated.
type MemoryLedger struct {
	mu     sync.RWMutex
	events []Record
	nextID int64
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{nextID: 1}
}

// Append stores one event under the next id.
func (m *MemoryLedger) Append(_ context.Context, event provenance.Event) (int64, error) {
	if err := event.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.events = append(m.events, Record{ID: id, Event: event})
	return id, nil
}

// Query returns records newest-first by timestamp, insertion order
// (newest inserted first) breaking ties.
func (m *MemoryLedger) Query(_ context.Context, kind *provenance.Kind, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.events))
	for _, r := range m.events {
		if kind != nil && r.Kind != *kind {
			continue
		}
		out = append(out, r)
	}

	// Stable sort: ids preserve insertion order, so equal timestamps keep
	// newest-inserted first.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Aggregate sums span lengths per kind.
func (m *MemoryLedger) Aggregate(_ context.Context) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totals Totals
	for _, r := range m.events {
		switch r.Kind {
		case provenance.KindHuman:
			totals.Human += r.SpanLength
		case provenance.KindAI:
			totals.AI += r.SpanLength
		case provenance.KindCited:
			totals.Cited += r.SpanLength
		}
	}
	return totals, nil
}

// Clear empties the ledger and resets id assignment.
func (m *MemoryLedger) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = nil
	m.nextID = 1
	return nil
}
