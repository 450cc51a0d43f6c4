package query_test

import (
	"context"
	"testing"

	"MemeLedger/internal/core"
	"MemeLedger/internal/event"
	"MemeLedger/internal/query"
	"MemeLedger/internal/state"
	"MemeLedger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = testutil.Addr("alice")
	meme  = testutil.Addr("meme")
	curve = testutil.Addr("meme-curve")
)

func TestGetPosition_UnrealizedPnL(t *testing.T) {
	f := testutil.NewFixture(core.TransferToHolders)
	f.CreateToken(t, meme, curve, "MEME")
	f.Trade(t, alice, meme, event.SideBuy, "10", "100")
	f.Trade(t, alice, meme, event.SideBuy, "30", "100")
	// last price 0.5 ETH/token
	f.Trade(t, alice, meme, event.SideSell, "25", "50")

	qs := query.NewQueryService(f.Stores, state.DecimalsTable{Default: 18})
	pos, err := qs.GetPosition(context.Background(), alice, meme)
	require.NoError(t, err)

	assert.Equal(t, "0.2", pos.AvgCostEthPerToken.String())
	assert.Equal(t, "150", pos.Balance.String())
	assert.Equal(t, testutil.Units(150).String(), pos.BalanceRaw)
	assert.Equal(t, "15", pos.RealizedPnLEth.String())
	require.NotNil(t, pos.LatestPriceEth)
	assert.Equal(t, "0.5", pos.LatestPriceEth.String())
	// 150*0.5 - 150*0.2
	require.NotNil(t, pos.UnrealizedPnLEth)
	assert.Equal(t, "45", pos.UnrealizedPnLEth.String())
}

func TestGetPosition_UnknownTokenHasNoMark(t *testing.T) {
	f := testutil.NewFixture(core.TransferToHolders)
	other := testutil.Addr("never-created")
	f.Trade(t, alice, other, event.SideBuy, "1", "10")

	qs := query.NewQueryService(f.Stores, nil)
	pos, err := qs.GetPosition(context.Background(), alice, other)
	require.NoError(t, err)
	assert.Nil(t, pos.UnrealizedPnLEth)
	assert.Nil(t, pos.LatestPriceEth)
}

func TestGetToken(t *testing.T) {
	f := testutil.NewFixture(core.TransferToHolders)
	f.CreateToken(t, meme, curve, "MEME")

	qs := query.NewQueryService(f.Stores, nil)
	tok, err := qs.GetToken(context.Background(), meme)
	require.NoError(t, err)
	assert.Equal(t, event.AddressID(meme), tok.Address)
	assert.Equal(t, "Created", tok.Lifecycle)
	assert.Nil(t, tok.Pair)
	assert.Nil(t, tok.LatestPriceEth)

	f.Apply(t, &event.Bonded{LogRef: f.NextRef(), Token: meme})
	tok, err = qs.GetToken(context.Background(), meme)
	require.NoError(t, err)
	assert.Equal(t, "Bonded", tok.Lifecycle)
	assert.NotNil(t, tok.BondedAt)
}

func TestGetTradeHolderUser(t *testing.T) {
	f := testutil.NewFixture(core.TransferToHolders)
	f.CreateToken(t, meme, curve, "MEME")
	tr := f.Trade(t, alice, meme, event.SideBuy, "1", "10")
	f.Apply(t, &event.Transfer{
		LogRef:   f.NextRef(),
		Token:    meme,
		From:     curve,
		To:       alice,
		ValueRaw: testutil.Units(10),
	})

	qs := query.NewQueryService(f.Stores, nil)
	ctx := context.Background()

	got, err := qs.GetTrade(ctx, tr.IdempotencyKey())
	require.NoError(t, err)
	assert.Equal(t, "BUY", got.Side)
	assert.Equal(t, "CURVE", got.Venue)
	assert.Equal(t, "10", got.TokenQty.String())

	h, err := qs.GetHolder(ctx, meme, alice)
	require.NoError(t, err)
	assert.Equal(t, "10", h.Balance.String())

	u, err := qs.GetUser(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, event.AddressID(alice), u.Address)
	assert.Equal(t, testutil.BlockTime(3), u.UpdatedAt)
}

func TestGetPosition_StoredTokenDecimals(t *testing.T) {
	f := testutil.NewFixture(core.TransferToHolders)
	f.Apply(t, &event.NewToken{
		LogRef:       f.NextRef(),
		Token:        meme,
		Creator:      testutil.Addr("creator"),
		BondingCurve: curve,
		Symbol:       "USDM",
		Decimals:     6,
	})
	f.Apply(t, &event.Trade{
		LogRef:   f.NextRef(),
		Venue:    event.VenueCurve,
		Side:     event.SideBuy,
		User:     alice,
		Token:    meme,
		EthRaw:   testutil.Units(1),
		TokenRaw: testutil.Wei(100_000_000),
	})

	// the table says 18; the stored token says 6
	qs := query.NewQueryService(f.Stores, state.DecimalsTable{Default: 18})
	pos, err := qs.GetPosition(context.Background(), alice, meme)
	require.NoError(t, err)
	assert.Equal(t, "100", pos.Balance.String())
	assert.Equal(t, "100000000", pos.BalanceRaw)
	assert.Equal(t, "0.01", pos.AvgCostEthPerToken.String())
	require.NotNil(t, pos.LatestPriceEth)
	assert.Equal(t, "0.01", pos.LatestPriceEth.String())
}

func TestNotFound(t *testing.T) {
	qs := query.NewQueryService(testutil.NewFixture(core.TransferToHolders).Stores, nil)
	ctx := context.Background()

	_, err := qs.GetToken(ctx, meme)
	assert.ErrorIs(t, err, state.ErrEntityNotFound)
	_, err = qs.GetTrade(ctx, "0xdead-0")
	assert.ErrorIs(t, err, state.ErrEntityNotFound)
	_, err = qs.GetPosition(ctx, alice, meme)
	assert.ErrorIs(t, err, state.ErrEntityNotFound)
	_, err = qs.GetHolder(ctx, meme, alice)
	assert.ErrorIs(t, err, state.ErrEntityNotFound)
	_, err = qs.GetUser(ctx, alice)
	assert.ErrorIs(t, err, state.ErrEntityNotFound)
}
