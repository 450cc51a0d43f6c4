package state_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"
	"MemeLedger/internal/state"
	"MemeLedger/internal/store/memory"
	"MemeLedger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = testutil.Addr("alice")
	bob   = testutil.Addr("bob")
	meme  = testutil.Addr("meme")
)

func fill(side event.Side, eth, tokens int64, ts int64) state.TradeFill {
	return state.TradeFill{
		Side:      side,
		User:      alice,
		Token:     meme,
		EthQty:    fpmath.NewFromInt(eth),
		TokenQty:  fpmath.NewFromInt(tokens),
		TokenRaw:  testutil.Units(tokens),
		Decimals:  18,
		Timestamp: testutil.BlockTime(ts),
	}
}

func TestNextOnTrade_BuyBuySell(t *testing.T) {
	pos := state.NewPosition(alice, meme)

	pos, _, err := state.NextOnTrade(pos, fill(event.SideBuy, 10, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, "0.1", pos.AvgCostEthPerToken.String())

	pos, _, err = state.NextOnTrade(pos, fill(event.SideBuy, 30, 100, 2))
	require.NoError(t, err)
	assert.Equal(t, "0.2", pos.AvgCostEthPerToken.String())
	assert.Equal(t, 0, testutil.Units(200).Cmp(pos.Balance))

	pos, out, err := state.NextOnTrade(pos, fill(event.SideSell, 12, 50, 3))
	require.NoError(t, err)
	assert.Equal(t, "2", out.RealizedPnL.String())
	assert.False(t, out.Clamped)

	assert.Equal(t, "2", pos.RealizedPnLEth.String())
	assert.Equal(t, 0, testutil.Units(150).Cmp(pos.Balance))
	assert.Equal(t, "0.2", pos.AvgCostEthPerToken.String())
	assert.Equal(t, "40", pos.TotalEthBought.String())
	assert.Equal(t, "200", pos.TotalTokensBought.String())
	assert.Equal(t, "12", pos.TotalEthSold.String())
	assert.Equal(t, "50", pos.TotalTokensSold.String())
	assert.Equal(t, testutil.BlockTime(3), pos.UpdatedAt)
}

func TestNextOnTrade_DoesNotMutatePrevious(t *testing.T) {
	prev := state.NewPosition(alice, meme)
	_, _, err := state.NextOnTrade(prev, fill(event.SideBuy, 1, 10, 1))
	require.NoError(t, err)

	assert.True(t, prev.IsFlat())
	assert.True(t, prev.AvgCostEthPerToken.IsZero())
}

func TestNextOnTrade_AvgIsQuantityWeightedMean(t *testing.T) {
	buys := []struct{ eth, tok int64 }{{3, 7}, {11, 13}, {5, 2}, {1, 9}}

	pos := state.NewPosition(alice, meme)
	var sumEth, sumTok int64
	for i, b := range buys {
		var err error
		pos, _, err = state.NextOnTrade(pos, fill(event.SideBuy, b.eth, b.tok, int64(i)))
		require.NoError(t, err)
		sumEth += b.eth
		sumTok += b.tok
	}

	want, err := fpmath.NewFromInt(sumEth).Div(fpmath.NewFromInt(sumTok))
	require.NoError(t, err)

	// Each blend truncates once, so allow a few units in the last place.
	diff := pos.AvgCostEthPerToken.Sub(want)
	tolerance := fpmath.MustFromString("0.00000000000000001")
	assert.True(t, diff.Cmp(tolerance) <= 0 && diff.Neg().Cmp(tolerance) <= 0,
		"avg %s want %s", pos.AvgCostEthPerToken, want)
	assert.Equal(t, 0, testutil.Units(sumTok).Cmp(pos.Balance))
}

func TestNextOnTrade_SellClampsAtZero(t *testing.T) {
	pos := state.NewPosition(alice, meme)
	pos, _, err := state.NextOnTrade(pos, fill(event.SideBuy, 1, 10, 1))
	require.NoError(t, err)

	pos, out, err := state.NextOnTrade(pos, fill(event.SideSell, 2, 25, 2))
	require.NoError(t, err)
	assert.True(t, out.Clamped)
	assert.Equal(t, 0, pos.Balance.Sign())
	// PnL still uses the pre-sell average over the full quantity sold.
	assert.Equal(t, "-0.5", pos.RealizedPnLEth.String())
}

func TestNextOnTrade_SellOnFreshPosition(t *testing.T) {
	pos, out, err := state.NextOnTrade(state.NewPosition(alice, meme), fill(event.SideSell, 4, 10, 1))
	require.NoError(t, err)
	assert.True(t, out.Clamped)
	assert.Equal(t, "4", pos.RealizedPnLEth.String())
	assert.True(t, pos.IsFlat())
}

func TestNextOnTrade_ZeroQuantityBuyKeepsAverage(t *testing.T) {
	pos := state.NewPosition(alice, meme)
	pos.AvgCostEthPerToken = fpmath.MustFromString("0.3")

	f := fill(event.SideBuy, 1, 0, 1)
	next, _, err := state.NextOnTrade(pos, f)
	require.NoError(t, err)
	assert.Equal(t, "0.3", next.AvgCostEthPerToken.String())
	assert.Equal(t, "1", next.TotalEthBought.String())
}

func TestNextOnTrade_RejectsUnknownSide(t *testing.T) {
	_, _, err := state.NextOnTrade(state.NewPosition(alice, meme), fill(0, 1, 1, 1))
	assert.ErrorIs(t, err, event.ErrInvalidEvent)
}

func TestPositionManager_ApplyTradePersists(t *testing.T) {
	ctx := context.Background()
	pm := state.NewPositionManager(memory.NewStore[state.Position]())

	_, _, err := pm.ApplyTrade(ctx, fill(event.SideBuy, 10, 100, 1))
	require.NoError(t, err)
	_, _, err = pm.ApplyTrade(ctx, fill(event.SideBuy, 30, 100, 2))
	require.NoError(t, err)
	_, _, err = pm.ApplyTrade(ctx, fill(event.SideSell, 12, 50, 3))
	require.NoError(t, err)

	pos, ok, err := pm.GetPosition(ctx, alice, meme)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state.PositionID(alice, meme), pos.ID)
	assert.Equal(t, "2", pos.RealizedPnLEth.String())
	assert.Equal(t, 0, testutil.Units(150).Cmp(pos.Balance))
}

func TestPositionManager_ApplyTransfer(t *testing.T) {
	ctx := context.Background()
	pm := state.NewPositionManager(memory.NewStore[state.Position]())

	// Mint to alice.
	out, err := pm.ApplyTransfer(ctx, event.ZeroAddress, alice, meme, testutil.Units(100), testutil.BlockTime(1))
	require.NoError(t, err)
	assert.True(t, out.Applied)

	// Alice -> Bob.
	_, err = pm.ApplyTransfer(ctx, alice, bob, meme, testutil.Units(30), testutil.BlockTime(2))
	require.NoError(t, err)

	// Bob burns more than he has.
	out, err = pm.ApplyTransfer(ctx, bob, event.ZeroAddress, meme, testutil.Units(50), testutil.BlockTime(3))
	require.NoError(t, err)
	assert.True(t, out.SenderClamped)

	a, _, err := pm.GetPosition(ctx, alice, meme)
	require.NoError(t, err)
	assert.Equal(t, 0, testutil.Units(70).Cmp(a.Balance))
	assert.True(t, a.AvgCostEthPerToken.IsZero())
	assert.True(t, a.RealizedPnLEth.IsZero())

	b, _, err := pm.GetPosition(ctx, bob, meme)
	require.NoError(t, err)
	assert.True(t, b.IsFlat())
	assert.Equal(t, testutil.BlockTime(3), b.UpdatedAt)

	_, ok, err := pm.GetPosition(ctx, event.ZeroAddress, meme)
	require.NoError(t, err)
	assert.False(t, ok, "zero address must never get a position")
}

func TestPositionManager_ZeroTransferIsNoop(t *testing.T) {
	ctx := context.Background()
	positions := memory.NewStore[state.Position]()
	pm := state.NewPositionManager(positions)

	out, err := pm.ApplyTransfer(ctx, alice, bob, meme, big.NewInt(0), testutil.BlockTime(1))
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, 0, positions.Len())
}

type failingStore[T any] struct{ err error }

func (f failingStore[T]) Load(context.Context, string) (*T, bool, error) { return nil, false, nil }
func (f failingStore[T]) Save(context.Context, *T) error                 { return f.err }

func TestPositionManager_SaveFailureIsStoreFailure(t *testing.T) {
	cause := errors.New("disk on fire")
	pm := state.NewPositionManager(failingStore[state.Position]{err: cause})

	_, _, err := pm.ApplyTrade(context.Background(), fill(event.SideBuy, 1, 1, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrStoreFailure)
	assert.ErrorIs(t, err, cause)

	var se *state.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save", se.Op)
	assert.Equal(t, state.KindPosition, se.Kind)
}
