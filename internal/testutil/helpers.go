package testutil

import (
	"context"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	fpmath "MemeLedger/internal/math"
	"MemeLedger/internal/state"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Addr derives a stable address from a label, e.g. Addr("alice").
func Addr(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label))[12:])
}

// TxHash derives a stable transaction hash from a label.
func TxHash(label string) common.Hash {
	return crypto.Keccak256Hash([]byte(label))
}

// Units returns n whole tokens in 18-decimal base units.
func Units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

// UnitsOf parses a decimal string such as "0.25" into 18-decimal base units.
func UnitsOf(s string) *big.Int {
	return fpmath.MustFromString(s).Raw(18)
}

// Dec is fpmath.MustFromString.
func Dec(s string) fpmath.Decimal {
	return fpmath.MustFromString(s)
}

// BlockTime returns a deterministic block timestamp n seconds after a fixed epoch.
func BlockTime(n int64) time.Time {
	return time.Unix(1_700_000_000+n, 0).UTC()
}

// WatchCall is one recorded Subscriber.Watch invocation.
type WatchCall struct {
	Addr common.Address
	Kind state.WatchKind
}

// RecordingSubscriber is a state.Subscriber that records calls and can be
// told to fail.
type RecordingSubscriber struct {
	mu    sync.Mutex
	Calls []WatchCall
	Err   error
}

func (r *RecordingSubscriber) Watch(_ context.Context, addr common.Address, kinds ...state.WatchKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	for _, k := range kinds {
		r.Calls = append(r.Calls, WatchCall{Addr: addr, Kind: k})
	}
	return nil
}

// RequireIntegration skips the test if not running integration tests.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("skipping integration test (set INTEGRATION_TEST=1 to run)")
	}
}
