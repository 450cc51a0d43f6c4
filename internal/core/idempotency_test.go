package core_test

import (
	"context"
	"errors"
	"testing"

	"MemeLedger/internal/core"
	"MemeLedger/internal/observability"
	"MemeLedger/internal/state"
	"MemeLedger/internal/store/memory"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyLRU_Eviction(t *testing.T) {
	lru := core.NewIdempotencyLRU(2)

	assert.False(t, lru.Add("a"))
	assert.False(t, lru.Add("b"))
	assert.True(t, lru.Contains("a")) // a is now most recent
	assert.True(t, lru.Add("c"))      // evicts b

	assert.True(t, lru.Contains("a"))
	assert.False(t, lru.Contains("b"))
	assert.True(t, lru.Contains("c"))
	assert.Equal(t, 2, lru.Size())
	assert.Equal(t, int64(1), lru.Evictions())
}

func TestIdempotencyChecker_FallsBackToStore(t *testing.T) {
	ctx := context.Background()
	processed := memory.NewProcessedSet()
	require.NoError(t, processed.MarkProcessed(ctx, "Trade", "0xabc-1"))

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	ic := core.NewIdempotencyChecker(8, processed, metrics)

	dup, err := ic.IsDuplicate(ctx, "Trade", "0xabc-1")
	require.NoError(t, err)
	assert.True(t, dup)

	// second hit is served from the LRU
	dup, err = ic.IsDuplicate(ctx, "Trade", "0xabc-1")
	require.NoError(t, err)
	assert.True(t, dup)

	assert.Equal(t, float64(1), promtest.ToFloat64(metrics.IdempotencyDuplicates.WithLabelValues("Trade", "store")))
	assert.Equal(t, float64(1), promtest.ToFloat64(metrics.IdempotencyDuplicates.WithLabelValues("Trade", "lru")))
}

func TestIdempotencyChecker_KeysAreScopedByType(t *testing.T) {
	ctx := context.Background()
	ic := core.NewIdempotencyChecker(8, memory.NewProcessedSet(), nil)

	ic.Remember("Trade", "0xabc-1")
	dup, err := ic.IsDuplicate(ctx, "Transfer", "0xabc-1")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = ic.IsDuplicate(ctx, "Trade", "0xabc-1")
	require.NoError(t, err)
	assert.True(t, dup)
}

type brokenProcessed struct{}

func (brokenProcessed) IsProcessed(context.Context, string, string) (bool, error) {
	return false, errors.New("connection reset")
}

func (brokenProcessed) MarkProcessed(context.Context, string, string) error {
	return errors.New("connection reset")
}

func TestIdempotencyChecker_StoreErrorIsFatal(t *testing.T) {
	ctx := context.Background()
	ic := core.NewIdempotencyChecker(8, brokenProcessed{}, nil)

	_, err := ic.IsDuplicate(ctx, "Trade", "k")
	assert.ErrorIs(t, err, state.ErrStoreFailure)
}
