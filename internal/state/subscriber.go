package state

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// WatchKind is a class of logs a watched contract emits.
type WatchKind int32

const (
	WatchTransfers WatchKind = iota + 1
	WatchCurveTrades
	WatchDexTrades
	WatchPairs
	WatchTokenFactory
)

func (k WatchKind) String() string {
	switch k {
	case WatchTransfers:
		return "transfers"
	case WatchCurveTrades:
		return "curve_trades"
	case WatchDexTrades:
		return "dex_trades"
	case WatchPairs:
		return "pairs"
	case WatchTokenFactory:
		return "token_factory"
	default:
		return "unknown"
	}
}

func ParseWatchKind(s string) (WatchKind, error) {
	for _, k := range []WatchKind{WatchTransfers, WatchCurveTrades, WatchDexTrades, WatchPairs, WatchTokenFactory} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown watch kind %q", s)
}

// Subscriber starts delivery of future logs from a contract.
// Watching the same address and kind twice must be harmless.
type Subscriber interface {
	Watch(ctx context.Context, addr common.Address, kinds ...WatchKind) error
}
