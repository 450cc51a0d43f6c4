package state_test

import (
	"context"
	"math/big"
	"testing"

	"MemeLedger/internal/event"
	"MemeLedger/internal/state"
	"MemeLedger/internal/store/memory"
	"MemeLedger/internal/testutil"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type holderFixture struct {
	holders *memory.Store[state.TokenHolder, *state.TokenHolder]
	users   *memory.Store[state.User, *state.User]
	tracker *state.HolderTracker
}

func newHolderFixture() holderFixture {
	holders := memory.NewStore[state.TokenHolder]()
	users := memory.NewStore[state.User]()
	return holderFixture{
		holders: holders,
		users:   users,
		tracker: state.NewHolderTracker(holders, state.NewUserRegistry(users)),
	}
}

func transfer(from, to common.Address, value *big.Int, ts int64) *event.Transfer {
	return &event.Transfer{
		LogRef:   event.LogRef{TxHash: testutil.TxHash("t"), LogIndex: uint(ts), Timestamp: testutil.BlockTime(ts)},
		Token:    meme,
		From:     from,
		To:       to,
		ValueRaw: value,
	}
}

func TestHolderTracker_MintAndTransfer(t *testing.T) {
	ctx := context.Background()
	f := newHolderFixture()

	_, err := f.tracker.ApplyTransfer(ctx, transfer(event.ZeroAddress, alice, testutil.Units(100), 1), 18)
	require.NoError(t, err)
	_, err = f.tracker.ApplyTransfer(ctx, transfer(alice, bob, testutil.UnitsOf("12.5"), 2), 18)
	require.NoError(t, err)

	a, ok, err := f.tracker.GetHolder(ctx, meme, alice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "87.5", a.Balance.String())
	assert.Equal(t, state.HolderID(meme, alice), a.ID)

	b, ok, err := f.tracker.GetHolder(ctx, meme, bob)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12.5", b.Balance.String())
	assert.Equal(t, testutil.BlockTime(2), b.UpdatedAt)

	// Both receivers became users; the zero address did not.
	assert.Equal(t, 2, f.users.Len())
}

func TestHolderTracker_ZeroValueCreatesNothing(t *testing.T) {
	f := newHolderFixture()

	out, err := f.tracker.ApplyTransfer(context.Background(), transfer(alice, bob, big.NewInt(0), 1), 18)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, 0, f.holders.Len())
	assert.Equal(t, 0, f.users.Len())
}

func TestHolderTracker_UnknownSenderIsNotCreated(t *testing.T) {
	ctx := context.Background()
	f := newHolderFixture()

	_, err := f.tracker.ApplyTransfer(ctx, transfer(alice, bob, testutil.Units(5), 1), 18)
	require.NoError(t, err)

	_, ok, err := f.tracker.GetHolder(ctx, meme, alice)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.holders.Len())
}

func TestHolderTracker_DebitClampsAtZero(t *testing.T) {
	ctx := context.Background()
	f := newHolderFixture()

	_, err := f.tracker.ApplyTransfer(ctx, transfer(event.ZeroAddress, alice, testutil.Units(1), 1), 18)
	require.NoError(t, err)

	out, err := f.tracker.ApplyTransfer(ctx, transfer(alice, event.ZeroAddress, testutil.Units(3), 2), 18)
	require.NoError(t, err)
	assert.True(t, out.SenderClamped)

	a, _, err := f.tracker.GetHolder(ctx, meme, alice)
	require.NoError(t, err)
	assert.True(t, a.Balance.IsZero())
}

func TestUserRegistry_TouchKeepsFirstSeen(t *testing.T) {
	ctx := context.Background()
	reg := state.NewUserRegistry(memory.NewStore[state.User]())

	require.NoError(t, reg.Touch(ctx, alice, testutil.BlockTime(1)))
	require.NoError(t, reg.Touch(ctx, alice, testutil.BlockTime(9)))

	u, ok, err := reg.GetUser(ctx, alice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testutil.BlockTime(1), u.FirstSeenAt)
	assert.Equal(t, testutil.BlockTime(9), u.UpdatedAt)

	// an older receipt never moves UpdatedAt back
	require.NoError(t, reg.Touch(ctx, alice, testutil.BlockTime(4)))
	u, _, err = reg.GetUser(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, testutil.BlockTime(9), u.UpdatedAt)
}
