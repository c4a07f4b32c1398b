package manifest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorrr/sonnun/pkg/manifest"
	"github.com/creatorrr/sonnun/pkg/provenance"
	"github.com/creatorrr/sonnun/pkg/store/ledger"
)

func appendEvent(t *testing.T, led ledger.Ledger, kind provenance.Kind, ts string, span int64) {
	t.Helper()
	_, err := led.Append(context.Background(), provenance.Event{
		Timestamp:     ts,
		Kind:          kind,
		ContentDigest: provenance.DigestText(fmt.Sprintf("%s-%s", kind, ts)),
		Source:        "test",
		SpanLength:    span,
	})
	require.NoError(t, err)
}

func TestBuild_Percentages(t *testing.T) {
	led := ledger.NewMemoryLedger()
	appendEvent(t, led, provenance.KindHuman, "2024-05-01T10:00:00Z", 60)
	appendEvent(t, led, provenance.KindAI, "2024-05-01T11:00:00Z", 30)
	appendEvent(t, led, provenance.KindCited, "2024-05-01T12:00:00Z", 10)

	data, err := manifest.Build(context.Background(), led, 0)
	require.NoError(t, err)

	assert.Equal(t, 60.0, data.HumanPercentage)
	assert.Equal(t, 30.0, data.AIPercentage)
	assert.Equal(t, 10.0, data.CitedPercentage)
	assert.Equal(t, int64(100), data.TotalCharacters)
	assert.Len(t, data.Events, 3)
}

func TestBuild_EmptyLedgerZeroDefault(t *testing.T) {
	led := ledger.NewMemoryLedger()

	data, err := manifest.Build(context.Background(), led, 0)
	require.NoError(t, err)

	// Empty corpus claims no share for any kind. No NaN, no division
	// by zero may escape.
	assert.Equal(t, 0.0, data.HumanPercentage)
	assert.Equal(t, 0.0, data.AIPercentage)
	assert.Equal(t, 0.0, data.CitedPercentage)
	assert.Equal(t, int64(0), data.TotalCharacters)
	assert.NotNil(t, data.Events)
	assert.Empty(t, data.Events)
}

func TestBuild_ExcerptBounded(t *testing.T) {
	led := ledger.NewMemoryLedger()
	for i := 0; i < 60; i++ {
		appendEvent(t, led, provenance.KindHuman, fmt.Sprintf("2024-05-01T10:00:%02dZ", i), 1)
	}

	data, err := manifest.Build(context.Background(), led, 0)
	require.NoError(t, err)
	assert.Len(t, data.Events, manifest.DefaultExcerptLimit)

	// A custom limit bounds the excerpt, not the statistics.
	data, err = manifest.Build(context.Background(), led, 5)
	require.NoError(t, err)
	assert.Len(t, data.Events, 5)
	assert.Equal(t, int64(60), data.TotalCharacters)
}

// failingLedger reports a storage failure from every operation.
type failingLedger struct {
	err error
}

func (f failingLedger) Append(context.Context, provenance.Event) (int64, error) { return 0, f.err }
func (f failingLedger) Query(context.Context, *provenance.Kind, int) ([]ledger.Record, error) {
	return nil, f.err
}
func (f failingLedger) Aggregate(context.Context) (ledger.Totals, error) {
	return ledger.Totals{}, f.err
}
func (f failingLedger) Clear(context.Context) error { return f.err }

func TestBuild_LedgerErrorPropagates(t *testing.T) {
	storageErr := errors.New("connection lost")
	_, err := manifest.Build(context.Background(), failingLedger{err: storageErr}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storageErr), "storage error must pass through uninterpreted")
}
