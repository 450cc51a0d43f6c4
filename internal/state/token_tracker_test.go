package state_test

import (
	"context"
	"errors"
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
	weth  = testutil.Addr("weth")
	curve = testutil.Addr("curve")
	dev   = testutil.Addr("dev")
)

func newTracker(sub state.Subscriber) *state.TokenTracker {
	return state.NewTokenTracker(
		memory.NewStore[state.Token](),
		sub,
		state.DecimalsTable{Default: 18},
		weth,
	)
}

func newToken(token, curve string, ts int64) *event.NewToken {
	return &event.NewToken{
		LogRef:       event.LogRef{Timestamp: testutil.BlockTime(ts)},
		Token:        testutil.Addr(token),
		Creator:      dev,
		BondingCurve: testutil.Addr(curve),
		Name:         "Meme",
		Symbol:       "MEME",
	}
}

func TestTokenTracker_NewTokenCreatesAndSubscribes(t *testing.T) {
	ctx := context.Background()
	sub := &testutil.RecordingSubscriber{}
	tt := newTracker(sub)

	tok, err := tt.HandleNewToken(ctx, newToken("meme", "curve", 1))
	require.NoError(t, err)

	assert.Equal(t, meme, tok.ID)
	assert.Equal(t, dev, tok.Creator)
	assert.Equal(t, curve, tok.BondingCurve)
	assert.Equal(t, "MEME", tok.Symbol)
	assert.Equal(t, uint8(18), tok.Decimals)
	assert.False(t, tok.Bonded)
	assert.Equal(t, state.LifecycleCreated, tok.Lifecycle())
	assert.Equal(t, testutil.BlockTime(1), tok.CreatedAt)

	assert.Equal(t, []testutil.WatchCall{
		{Addr: meme, Kind: state.WatchTransfers},
		{Addr: curve, Kind: state.WatchCurveTrades},
	}, sub.Calls)
}

func TestTokenTracker_NewTokenTwiceKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	tt := newTracker(&testutil.RecordingSubscriber{})

	_, err := tt.HandleNewToken(ctx, newToken("meme", "curve", 1))
	require.NoError(t, err)
	tok, err := tt.HandleNewToken(ctx, newToken("meme", "curve", 5))
	require.NoError(t, err)

	assert.Equal(t, testutil.BlockTime(1), tok.CreatedAt)
	assert.Equal(t, testutil.BlockTime(5), tok.UpdatedAt)
}

func TestTokenTracker_SubscribeFailurePropagates(t *testing.T) {
	boom := errors.New("rpc down")
	tt := newTracker(&testutil.RecordingSubscriber{Err: boom})

	_, err := tt.HandleNewToken(context.Background(), newToken("meme", "curve", 1))
	assert.ErrorIs(t, err, boom)
}

func TestTokenTracker_BondedOnce(t *testing.T) {
	ctx := context.Background()
	tt := newTracker(&testutil.RecordingSubscriber{})

	_, err := tt.HandleNewToken(ctx, newToken("meme", "curve", 1))
	require.NoError(t, err)

	tok, err := tt.HandleBonded(ctx, &event.Bonded{LogRef: event.LogRef{Timestamp: testutil.BlockTime(10)}, Token: meme})
	require.NoError(t, err)
	assert.True(t, tok.Bonded)
	require.NotNil(t, tok.BondedAt)
	assert.Equal(t, testutil.BlockTime(10), *tok.BondedAt)

	tok, err = tt.HandleBonded(ctx, &event.Bonded{LogRef: event.LogRef{Timestamp: testutil.BlockTime(20)}, Token: meme})
	require.NoError(t, err)
	assert.Equal(t, testutil.BlockTime(10), *tok.BondedAt, "bonding fires exactly once")
}

func TestTokenTracker_BondedUnknownToken(t *testing.T) {
	tt := newTracker(&testutil.RecordingSubscriber{})

	_, err := tt.HandleBonded(context.Background(), &event.Bonded{Token: testutil.Addr("ghost")})
	assert.ErrorIs(t, err, state.ErrEntityNotFound)
}

func TestPairedToken(t *testing.T) {
	x := testutil.Addr("x")
	y := testutil.Addr("y")

	got, ok := state.PairedToken(weth, weth, x)
	assert.True(t, ok)
	assert.Equal(t, x, got)

	got, ok = state.PairedToken(weth, x, weth)
	assert.True(t, ok)
	assert.Equal(t, x, got)

	_, ok = state.PairedToken(weth, x, y)
	assert.False(t, ok)

	_, ok = state.PairedToken(weth, weth, weth)
	assert.False(t, ok)
}

func TestTokenTracker_PairCreated(t *testing.T) {
	ctx := context.Background()
	tt := newTracker(&testutil.RecordingSubscriber{})
	pair := testutil.Addr("pair")

	_, err := tt.HandleNewToken(ctx, newToken("meme", "curve", 1))
	require.NoError(t, err)

	tok, err := tt.HandlePairCreated(ctx, &event.PairCreated{
		LogRef: event.LogRef{Timestamp: testutil.BlockTime(2)},
		Token0: weth, Token1: meme, Pair: pair,
	})
	require.NoError(t, err)
	require.NotNil(t, tok)
	require.NotNil(t, tok.Pair)
	assert.Equal(t, pair, *tok.Pair)

	_, ok, err := tt.GetToken(ctx, weth)
	require.NoError(t, err)
	assert.False(t, ok, "base token is never touched")
}

func TestTokenTracker_PairWithoutBaseLeavesTokensAlone(t *testing.T) {
	ctx := context.Background()
	tt := newTracker(&testutil.RecordingSubscriber{})

	_, err := tt.HandleNewToken(ctx, newToken("meme", "curve", 1))
	require.NoError(t, err)

	tok, err := tt.HandlePairCreated(ctx, &event.PairCreated{
		Token0: meme, Token1: testutil.Addr("z"), Pair: testutil.Addr("q"),
	})
	require.NoError(t, err)
	assert.Nil(t, tok)

	stored, _, err := tt.GetToken(ctx, meme)
	require.NoError(t, err)
	assert.Nil(t, stored.Pair)
}

func TestTokenTracker_TouchPrice(t *testing.T) {
	ctx := context.Background()
	tt := newTracker(&testutil.RecordingSubscriber{})

	_, err := tt.HandleNewToken(ctx, newToken("meme", "curve", 1))
	require.NoError(t, err)

	price := fpmath.MustFromString("0.24")
	require.NoError(t, tt.TouchPrice(ctx, meme, &price, testutil.BlockTime(3)))

	tok, _, err := tt.GetToken(ctx, meme)
	require.NoError(t, err)
	require.NotNil(t, tok.LatestPriceEth)
	assert.Equal(t, "0.24", tok.LatestPriceEth.String())

	require.NoError(t, tt.TouchPrice(ctx, meme, nil, testutil.BlockTime(4)))
	tok, _, err = tt.GetToken(ctx, meme)
	require.NoError(t, err)
	assert.Equal(t, "0.24", tok.LatestPriceEth.String())
	assert.Equal(t, testutil.BlockTime(4), tok.UpdatedAt)

	// Unknown tokens are skipped without error.
	require.NoError(t, tt.TouchPrice(ctx, testutil.Addr("ghost"), &price, testutil.BlockTime(5)))
}

func TestLifecycleTransitions(t *testing.T) {
	assert.True(t, state.LifecycleCreated.CanTransitionTo(state.LifecycleBonded))
	assert.False(t, state.LifecycleBonded.CanTransitionTo(state.LifecycleBonded))
	assert.False(t, state.LifecycleBonded.CanTransitionTo(state.LifecycleCreated))
}

func TestResubscribeTokens(t *testing.T) {
	ctx := context.Background()
	tokens := memory.NewStore[state.Token]()
	tt := state.NewTokenTracker(tokens, &testutil.RecordingSubscriber{}, state.DecimalsTable{Default: 18}, weth)
	_, err := tt.HandleNewToken(ctx, newToken("meme", "curve", 1))
	require.NoError(t, err)
	_, err = tt.HandleNewToken(ctx, newToken("other", "other-curve", 2))
	require.NoError(t, err)

	sub := &testutil.RecordingSubscriber{}
	n, err := state.ResubscribeTokens(ctx, tokens, sub)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []testutil.WatchCall{
		{Addr: meme, Kind: state.WatchTransfers},
		{Addr: curve, Kind: state.WatchCurveTrades},
		{Addr: testutil.Addr("other"), Kind: state.WatchTransfers},
		{Addr: testutil.Addr("other-curve"), Kind: state.WatchCurveTrades},
	}, sub.Calls)
}

func TestResubscribeTokens_NeedsListableStore(t *testing.T) {
	_, err := state.ResubscribeTokens(context.Background(), failingStore[state.Token]{}, &testutil.RecordingSubscriber{})
	require.Error(t, err)
}
