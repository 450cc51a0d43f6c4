package chain

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"MemeLedger/internal/event"
	"MemeLedger/internal/state"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrUnknownLog is returned for logs whose topic the decoder does not handle
// under the given watch kind.
var ErrUnknownLog = errors.New("unknown log")

// Decoder turns raw logs into typed events.
type Decoder struct {
	abi    abi.ABI
	byID   map[common.Hash]*abi.Event
	topics map[state.WatchKind]map[common.Hash]bool
}

func NewDecoder() (*Decoder, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parse event abi: %w", err)
	}

	d := &Decoder{
		abi:    parsed,
		byID:   make(map[common.Hash]*abi.Event, len(parsed.Events)),
		topics: make(map[state.WatchKind]map[common.Hash]bool),
	}
	for name := range parsed.Events {
		ev := parsed.Events[name]
		d.byID[ev.ID] = &ev
	}

	id := func(name string) common.Hash { return parsed.Events[name].ID }
	d.topics[state.WatchTokenFactory] = map[common.Hash]bool{id(EventNewTokenCreated): true, id(EventBonded): true}
	d.topics[state.WatchCurveTrades] = map[common.Hash]bool{id(EventBuy): true, id(EventSell): true}
	d.topics[state.WatchDexTrades] = map[common.Hash]bool{id(EventBuy): true, id(EventSell): true}
	d.topics[state.WatchPairs] = map[common.Hash]bool{id(EventPairCreated): true}
	d.topics[state.WatchTransfers] = map[common.Hash]bool{id(EventTransfer): true}
	return d, nil
}

// Topics returns the topic0 values logs of kind can carry.
func (d *Decoder) Topics(kind state.WatchKind) []common.Hash {
	out := make([]common.Hash, 0, len(d.topics[kind]))
	for t := range d.topics[kind] {
		out = append(out, t)
	}
	return out
}

// Accepts reports whether a log with topic0 is decodable under kind.
func (d *Decoder) Accepts(kind state.WatchKind, topic0 common.Hash) bool {
	return d.topics[kind][topic0]
}

// Decode maps lg onto an event. kind decides the venue of Buy/Sell logs; ts
// is the block timestamp.
func (d *Decoder) Decode(lg types.Log, kind state.WatchKind, ts time.Time) (event.Event, error) {
	if len(lg.Topics) == 0 || !d.Accepts(kind, lg.Topics[0]) {
		return nil, ErrUnknownLog
	}
	ev := d.byID[lg.Topics[0]]

	indexed := make(abi.Arguments, 0, len(ev.Inputs))
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	// ERC721 Transfer shares the topic but indexes the third argument.
	if len(lg.Topics)-1 != len(indexed) {
		return nil, fmt.Errorf("%w: %s with %d topics", ErrUnknownLog, ev.Name, len(lg.Topics))
	}

	args := make(map[string]interface{}, len(ev.Inputs))
	if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%s topics: %w", ev.Name, err)
	}
	if err := d.abi.UnpackIntoMap(args, ev.Name, lg.Data); err != nil {
		return nil, fmt.Errorf("%s data: %w", ev.Name, err)
	}

	ref := event.LogRef{
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
		LogIndex:    lg.Index,
		Timestamp:   ts,
	}

	switch ev.Name {
	case EventNewTokenCreated:
		return &event.NewToken{
			LogRef:       ref,
			Token:        address(args, "token"),
			Creator:      address(args, "dev"),
			BondingCurve: address(args, "bondingCurve"),
			Name:         str(args, "name"),
			Symbol:       str(args, "symbol"),
		}, nil

	case EventBonded:
		return &event.Bonded{LogRef: ref, Token: address(args, "token")}, nil

	case EventBuy, EventSell:
		side := event.SideBuy
		if ev.Name == EventSell {
			side = event.SideSell
		}
		venue := event.VenueCurve
		if kind == state.WatchDexTrades {
			venue = event.VenueDEX
		}
		return &event.Trade{
			LogRef:   ref,
			Venue:    venue,
			Side:     side,
			User:     address(args, "user"),
			Token:    address(args, "token"),
			EthRaw:   uint256(args, "quantityETH"),
			TokenRaw: uint256(args, "quantityTokens"),
		}, nil

	case EventPairCreated:
		return &event.PairCreated{
			LogRef: ref,
			Token0: address(args, "token0"),
			Token1: address(args, "token1"),
			Pair:   address(args, "pair"),
		}, nil

	case EventTransfer:
		return &event.Transfer{
			LogRef:   ref,
			Token:    lg.Address,
			From:     address(args, "from"),
			To:       address(args, "to"),
			ValueRaw: uint256(args, "value"),
		}, nil
	}
	return nil, ErrUnknownLog
}

func address(args map[string]interface{}, name string) common.Address {
	a, _ := args[name].(common.Address)
	return a
}

func str(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}

func uint256(args map[string]interface{}, name string) *big.Int {
	if v, ok := args[name].(*big.Int); ok && v != nil {
		return v
	}
	return new(big.Int)
}
