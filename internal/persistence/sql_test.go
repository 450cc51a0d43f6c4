package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL("users", []string{"id", "first_seen_at"})
	assert.Equal(t,
		"INSERT INTO users (id, first_seen_at) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET first_seen_at = EXCLUDED.first_seen_at",
		got)
}

func TestSelectSQL(t *testing.T) {
	assert.Equal(t, "SELECT id, token FROM token_holders WHERE id = $1",
		selectSQL("token_holders", []string{"id", "token"}))
	assert.Equal(t, "SELECT id, symbol FROM tokens ORDER BY id",
		listSQL("tokens", []string{"id", "symbol"}))
}

func TestTablesCoverEveryValue(t *testing.T) {
	cases := []struct {
		name    string
		columns int
		values  int
	}{
		{"tokens", len(tokensTable.columns), mustLen(tokensTable.values(sampleToken()))},
		{"trades", len(tradesTable.columns), mustLen(tradesTable.values(sampleTrade()))},
		{"positions", len(positionsTable.columns), mustLen(positionsTable.values(samplePosition()))},
		{"token_holders", len(holdersTable.columns), mustLen(holdersTable.values(sampleHolder()))},
		{"users", len(usersTable.columns), mustLen(usersTable.values(sampleUser()))},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.columns, tc.values, tc.name)
	}
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, "000001", extractVersion("000001_entities.up.sql"))
	assert.Equal(t, "nounderscore.sql", extractVersion("nounderscore.sql"))
}

func TestPositionRejectsNegativeBalance(t *testing.T) {
	p := samplePosition()
	p.Balance.SetInt64(-1)
	_, err := positionsTable.values(p)
	assert.Error(t, err)
}

func mustLen(v []interface{}, err error) int {
	if err != nil {
		panic(err)
	}
	return len(v)
}
