package state

import (
	"time"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"

	"github.com/ethereum/go-ethereum/common"
)

// Trade is the immutable record of one buy or sell log.
type Trade struct {
	ID          string         `json:"id"` // txHash-logIndex
	TxHash      common.Hash    `json:"txHash"`
	LogIndex    uint           `json:"logIndex"`
	BlockNumber uint64         `json:"blockNumber"`
	Timestamp   time.Time      `json:"timestamp"`
	User        common.Address `json:"user"`
	Token       common.Address `json:"token"`
	Side        event.Side     `json:"side"`
	Venue       event.Venue    `json:"venue"`
	EthQty      fpmath.Decimal `json:"ethQty"`
	TokenQty    fpmath.Decimal `json:"tokenQty"`
}

func (t *Trade) EntityID() string {
	return t.ID
}

func (t *Trade) Clone() *Trade {
	c := *t
	return &c
}
