package testutil

import (
	"context"
	"math/big"
	"strconv"
	"testing"

	"MemeLedger/internal/core"
	"MemeLedger/internal/event"
	"MemeLedger/internal/observability"
	"MemeLedger/internal/state"
	"MemeLedger/internal/store/memory"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Wei returns n base units.
func Wei(n int64) *big.Int {
	return big.NewInt(n)
}

// Fixture is a processor over fresh memory stores with a private registry.
type Fixture struct {
	Stores     state.Stores
	Subscriber *RecordingSubscriber
	Metrics    *observability.Metrics
	Processor  *core.Processor
	Base       common.Address

	block uint64
}

func NewFixture(mode core.TransferMode) *Fixture {
	f := &Fixture{
		Stores:     memory.NewStores(),
		Subscriber: &RecordingSubscriber{},
		Metrics:    observability.NewMetrics(prometheus.NewRegistry()),
		Base:       Addr("weth"),
	}
	f.Processor = core.NewProcessor(f.Stores, f.Subscriber, core.ProcessorConfig{
		BaseAddress:  f.Base,
		Decimals:     state.DecimalsTable{Default: 18},
		LRUSize:      1024,
		TransferMode: mode,
	}, f.Metrics, zerolog.Nop())
	return f
}

// NextRef returns a LogRef one block after the previous one.
func (f *Fixture) NextRef() event.LogRef {
	f.block++
	return event.LogRef{
		BlockNumber: f.block,
		TxHash:      TxHash("fixture-" + strconv.FormatUint(f.block, 10)),
		LogIndex:    0,
		Timestamp:   BlockTime(int64(f.block)),
	}
}

// Apply processes events in order and fails the test on the first error.
func (f *Fixture) Apply(t *testing.T, events ...event.Event) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, f.Processor.ProcessEvent(context.Background(), e))
	}
}

// CreateToken applies a NewToken for token with the given curve.
func (f *Fixture) CreateToken(t *testing.T, token, curve common.Address, symbol string) {
	t.Helper()
	f.Apply(t, &event.NewToken{
		LogRef:       f.NextRef(),
		Token:        token,
		Creator:      Addr("creator"),
		BondingCurve: curve,
		Name:         symbol,
		Symbol:       symbol,
	})
}

// Trade applies a curve trade of eth for tokens, both decimal strings.
func (f *Fixture) Trade(t *testing.T, user, token common.Address, side event.Side, eth, tokens string) *event.Trade {
	t.Helper()
	tr := &event.Trade{
		LogRef:   f.NextRef(),
		Venue:    event.VenueCurve,
		Side:     side,
		User:     user,
		Token:    token,
		EthRaw:   UnitsOf(eth),
		TokenRaw: UnitsOf(tokens),
	}
	f.Apply(t, tr)
	return tr
}
