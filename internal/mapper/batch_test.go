package mapper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
)

func mixedBatch() []Document {
	return []Document{
		{"title": "first", "year": 2001},
		{"title": "broken", "year": "not-a-year"},
		{"title": "third", "year": 2003},
		{"title": "also broken", "price": "free"},
	}
}

func TestMapBatch_BestEffortIsolatesFailures(t *testing.T) {
	// When: mapping a batch with two bad documents
	res, err := MapBatch(context.Background(), testSchema(), mixedBatch(), BatchOptions{Mode: BestEffort, Workers: 2})

	// Then: good documents are mapped, bad ones reported by position
	require.NoError(t, err)
	require.Len(t, res.Mapped, 2)
	assert.Equal(t, 0, res.Mapped[0].Position)
	assert.Equal(t, 2, res.Mapped[1].Position)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, 1, res.Failures[0].Position)
	assert.Equal(t, 3, res.Failures[1].Position)
	for _, f := range res.Failures {
		assert.True(t, errors.Is(f.Err, txerrors.ErrFieldCoercion))
	}
}

func TestMapBatch_FailFastAbortsBatch(t *testing.T) {
	res, err := MapBatch(context.Background(), testSchema(), mixedBatch(), BatchOptions{Mode: FailFast})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, txerrors.ErrFieldCoercion))
	assert.Contains(t, err.Error(), "document ")
}

func TestMapBatch_Empty(t *testing.T) {
	res, err := MapBatch(context.Background(), testSchema(), nil, BatchOptions{})

	require.NoError(t, err)
	assert.Empty(t, res.Mapped)
	assert.Empty(t, res.Failures)
}

func TestMapBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := MapBatch(ctx, testSchema(), mixedBatch(), BatchOptions{Mode: BestEffort})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseBatchMode(t *testing.T) {
	mode, err := ParseBatchMode("")
	require.NoError(t, err)
	assert.Equal(t, BestEffort, mode)

	mode, err = ParseBatchMode("fail_fast")
	require.NoError(t, err)
	assert.Equal(t, FailFast, mode)

	_, err = ParseBatchMode("yolo")
	assert.Error(t, err)
}
