// Package ledger provides the append-only provenance ledger capability.
// The core consumes only this interface; any store satisfying the
// contracts is substitutable.
package ledger

import (
	"context"
	"errors"

	"github.com/creatorrr/sonnun/pkg/provenance"
)

// ErrNotFound is returned when a queried record does not exist.
var ErrNotFound = errors.New("ledger: not found")

// Record is an appended event together with its assigned id.
type Record struct {
	ID int64 `json:"id"`
	provenance.Event
}

// Totals holds per-kind character sums from aggregation.
type Totals struct {
	Human int64
	AI    int64
	Cited int64
}

// Total is the character count across all kinds.
func (t Totals) Total() int64 { return t.Human + t.AI + t.Cited }

// ForKind returns the sum for one kind.
func (t Totals) ForKind(k provenance.Kind) int64 {
	switch k {
	case provenance.KindHuman:
		return t.Human
	case provenance.KindAI:
		return t.AI
	case provenance.KindCited:
		return t.Cited
	}
	return 0
}

// Ledger is the storage capability required by the core.
//
// Append assigns a monotonically increasing id and never overwrites;
// concurrent appends must not lose events or duplicate ids. Query filters
// by kind when given and returns records ordered newest-first by timestamp
// with insertion order (newest inserted first) breaking ties; limit <= 0
// means unlimited. Aggregate returns per-kind character totals over the
// whole ledger. Clear empties the ledger and resets id assignment; it is
// a test/dev operation and is never called on a production signing path.
//
// Storage errors pass through to callers unreinterpreted. Query and
// Aggregate are safe to retry; Append is not.
type Ledger interface {
	Append(ctx context.Context, event provenance.Event) (int64, error)
	Query(ctx context.Context, kind *provenance.Kind, limit int) ([]Record, error)
	Aggregate(ctx context.Context) (Totals, error)
	Clear(ctx context.Context) error
}
