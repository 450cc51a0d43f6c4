package persistence

import (
	"math/big"

	"MemeLedger/internal/event"
	"MemeLedger/internal/state"
	"MemeLedger/internal/testutil"
)

func sampleToken() *state.Token {
	pair := testutil.Addr("pair")
	bondedAt := testutil.BlockTime(20)
	price := testutil.Dec("0.000000123456789012")
	return &state.Token{
		ID:             testutil.Addr("token"),
		Creator:        testutil.Addr("creator"),
		BondingCurve:   testutil.Addr("curve"),
		Pair:           &pair,
		Name:           "Pepe Classic",
		Symbol:         "PEPEC",
		Decimals:       18,
		Bonded:         true,
		CreatedAt:      testutil.BlockTime(1),
		UpdatedAt:      testutil.BlockTime(20),
		BondedAt:       &bondedAt,
		LatestPriceEth: &price,
	}
}

func sampleTrade() *state.Trade {
	tx := testutil.TxHash("trade")
	return &state.Trade{
		ID:          event.LogID(tx, 7),
		TxHash:      tx,
		LogIndex:    7,
		BlockNumber: 12_345_678,
		Timestamp:   testutil.BlockTime(5),
		User:        testutil.Addr("alice"),
		Token:       testutil.Addr("token"),
		Side:        event.SideSell,
		Venue:       event.VenueDEX,
		EthQty:      testutil.Dec("1.5"),
		TokenQty:    testutil.Dec("1234567.000000000000000001"),
	}
}

func samplePosition() *state.Position {
	p := state.NewPosition(testutil.Addr("alice"), testutil.Addr("token"))
	// larger than int64 and float64-exact range
	p.Balance, _ = new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457", 10)
	p.AvgCostEthPerToken = testutil.Dec("0.000000001")
	p.TotalEthBought = testutil.Dec("3")
	p.TotalTokensBought = testutil.Dec("3000000000")
	p.TotalEthSold = testutil.Dec("1")
	p.TotalTokensSold = testutil.Dec("500000000")
	p.RealizedPnLEth = testutil.Dec("0.5")
	p.UpdatedAt = testutil.BlockTime(9)
	return p
}

func sampleHolder() *state.TokenHolder {
	token, holder := testutil.Addr("token"), testutil.Addr("bob")
	return &state.TokenHolder{
		ID:        state.HolderID(token, holder),
		Token:     token,
		Holder:    holder,
		Balance:   testutil.Dec("42.000000000000000001"),
		UpdatedAt: testutil.BlockTime(3),
	}
}

func sampleUser() *state.User {
	return &state.User{ID: testutil.Addr("alice"), FirstSeenAt: testutil.BlockTime(2), UpdatedAt: testutil.BlockTime(5)}
}
