// Package manifest turns a ledger snapshot into the percentage breakdown
// that gets canonically encoded and signed.
package manifest

import (
	"context"
	"fmt"

	"github.com/creatorrr/sonnun/pkg/store/ledger"
)

// DefaultExcerptLimit bounds the recent-event excerpt embedded alongside
// the signed statistics.
const DefaultExcerptLimit = 50

// Data is the point-in-time summary that gets signed. The cryptographic
// guarantee binds to the percentages and total; Events is an advisory
// excerpt of the most recent records, included for auditability, and is
// not exhaustive.
type Data struct {
	HumanPercentage float64 `json:"human_percentage"`
	AIPercentage    float64 `json:"ai_percentage"`
	CitedPercentage float64 `json:"cited_percentage"`
	TotalCharacters int64   `json:"total_characters"`
	Events          []ledger.Record `json:"events"`
}

// Build produces a manifest from the ledger's current state. It is a pure
// function of that state: totals come from Aggregate, the excerpt from
// Query, and ledger failures propagate unreinterpreted.
//
// An empty ledger yields 0% for every kind: an empty corpus attests
// nothing, so no share is claimed.
func Build(ctx context.Context, led ledger.Ledger, excerptLimit int) (Data, error) {
	if excerptLimit <= 0 {
		excerptLimit = DefaultExcerptLimit
	}

	totals, err := led.Aggregate(ctx)
	if err != nil {
		return Data{}, fmt.Errorf("manifest: aggregate: %w", err)
	}

	data := Data{TotalCharacters: totals.Total()}
	if total := totals.Total(); total > 0 {
		// No rounding before signing; presentation rounds after the
		// signed value is fixed.
		data.HumanPercentage = float64(totals.Human) / float64(total) * 100
		data.AIPercentage = float64(totals.AI) / float64(total) * 100
		data.CitedPercentage = float64(totals.Cited) / float64(total) * 100
	}

	events, err := led.Query(ctx, nil, excerptLimit)
	if err != nil {
		return Data{}, fmt.Errorf("manifest: query: %w", err)
	}
	data.Events = events

	return data, nil
}
