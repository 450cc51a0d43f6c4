package persistence

import (
	"context"
	"math/big"
	"testing"

	"MemeLedger/internal/state"
	"MemeLedger/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitter_WritesChangesetAndKey(t *testing.T) {
	db := setupDB(t)
	stores := NewStores(db)
	ctx := context.Background()

	cs := &state.Changeset{
		Tokens:    []*state.Token{sampleToken()},
		Trades:    []*state.Trade{sampleTrade()},
		Positions: []*state.Position{samplePosition()},
		Holders:   []*state.TokenHolder{sampleHolder()},
		Users:     []*state.User{sampleUser()},
		EventType: "Trade",
		Key:       "0xabc-7",
	}
	require.NoError(t, stores.Committer.Commit(ctx, cs))

	_, ok, err := stores.Trades.Load(ctx, sampleTrade().ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = stores.Users.Load(ctx, sampleUser().EntityID())
	require.NoError(t, err)
	assert.True(t, ok)

	seen, err := stores.Processed.IsProcessed(ctx, "Trade", "0xabc-7")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestCommitter_RollsBackOnFailure(t *testing.T) {
	db := setupDB(t)
	stores := NewStores(db)
	ctx := context.Background()

	bad := samplePosition()
	bad.Balance = big.NewInt(-1)
	cs := &state.Changeset{
		Tokens:    []*state.Token{sampleToken()},
		Positions: []*state.Position{bad},
		EventType: "Trade",
		Key:       "0xabc-8",
	}
	require.Error(t, stores.Committer.Commit(ctx, cs))

	_, ok, err := stores.Tokens.Load(ctx, sampleToken().EntityID())
	require.NoError(t, err)
	assert.False(t, ok, "token upsert must roll back with the failed position")

	seen, err := stores.Processed.IsProcessed(ctx, "Trade", "0xabc-8")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestPostgresStores_ListAndCursors(t *testing.T) {
	db := setupDB(t)
	stores := NewStores(db)
	ctx := context.Background()

	a, b := sampleToken(), sampleToken()
	b.ID = testutil.Addr("other-token")
	require.NoError(t, stores.Tokens.Save(ctx, a))
	require.NoError(t, stores.Tokens.Save(ctx, b))

	all, err := stores.Tokens.(state.Lister[state.Token]).List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].EntityID(), all[1].EntityID())

	_, ok, err := stores.Cursors.LoadCursor(ctx, "rpc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, stores.Cursors.SaveCursor(ctx, "rpc", 100))
	require.NoError(t, stores.Cursors.SaveCursor(ctx, "rpc", 250))
	block, ok, err := stores.Cursors.LoadCursor(ctx, "rpc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(250), block)
}
