package math_test

import (
	"testing"

	fpmath "MemeLedger/internal/math"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAvgCost_WeightedBlend(t *testing.T) {
	avg, err := fpmath.ComputeAvgCost(fpmath.Zero(), fpmath.Zero(), fpmath.NewFromInt(10), fpmath.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "0.1", avg.String())

	avg, err = fpmath.ComputeAvgCost(avg, fpmath.NewFromInt(100), fpmath.NewFromInt(30), fpmath.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "0.2", avg.String())
}

func TestComputeAvgCost_ZeroQuantityKeepsAverage(t *testing.T) {
	prev := fpmath.MustFromString("0.25")
	avg, err := fpmath.ComputeAvgCost(prev, fpmath.Zero(), fpmath.NewFromInt(1), fpmath.Zero())
	require.NoError(t, err)
	assert.True(t, prev.Equal(avg))
}

func TestComputeRealizedPnL(t *testing.T) {
	pnl := fpmath.ComputeRealizedPnL(fpmath.NewFromInt(12), fpmath.MustFromString("0.2"), fpmath.NewFromInt(50))
	assert.Equal(t, "2", pnl.String())

	loss := fpmath.ComputeRealizedPnL(fpmath.NewFromInt(5), fpmath.MustFromString("0.2"), fpmath.NewFromInt(50))
	assert.Equal(t, "-5", loss.String())
}

func TestComputeUnrealizedPnL(t *testing.T) {
	u := fpmath.ComputeUnrealizedPnL(fpmath.MustFromString("0.3"), fpmath.MustFromString("0.2"), fpmath.NewFromInt(150))
	assert.Equal(t, "15", u.String())
}

func TestComputePrice(t *testing.T) {
	p, ok, err := fpmath.ComputePrice(fpmath.NewFromInt(12), fpmath.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0.24", p.String())

	_, ok, err = fpmath.ComputePrice(fpmath.NewFromInt(12), fpmath.Zero())
	require.NoError(t, err)
	assert.False(t, ok)
}
