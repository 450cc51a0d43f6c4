package state

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"MemeLedger/internal/event"
)

// PositionManager loads, transitions and saves positions.
// Every call reads the current record, computes the next one and writes it
// back; it holds no state of its own.
type PositionManager struct {
	positions EntityStore[Position]
}

func NewPositionManager(positions EntityStore[Position]) *PositionManager {
	return &PositionManager{positions: positions}
}

// GetPosition returns the stored position, or ok=false.
func (pm *PositionManager) GetPosition(ctx context.Context, user, token common.Address) (*Position, bool, error) {
	return loadEntity(ctx, pm.positions, KindPosition, PositionID(user, token))
}

// GetOrCreatePosition returns the stored position or a zeroed one.
func (pm *PositionManager) GetOrCreatePosition(ctx context.Context, user, token common.Address) (*Position, error) {
	pos, ok, err := pm.GetPosition(ctx, user, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewPosition(user, token), nil
	}
	return pos, nil
}

// ApplyTrade applies a recorded buy or sell to the (user, token) position.
func (pm *PositionManager) ApplyTrade(ctx context.Context, f TradeFill) (*Position, TradeOutcome, error) {
	pos, err := pm.GetOrCreatePosition(ctx, f.User, f.Token)
	if err != nil {
		return nil, TradeOutcome{}, err
	}

	next, out, err := NextOnTrade(pos, f)
	if err != nil {
		return nil, TradeOutcome{}, err
	}

	if err := saveEntity(ctx, pm.positions, KindPosition, next.ID, next); err != nil {
		return nil, TradeOutcome{}, err
	}
	return next, out, nil
}

// TransferOutcome reports clamps hit while applying a transfer.
type TransferOutcome struct {
	Applied       bool
	SenderClamped bool
}

// ApplyTransfer moves raw units between positions. Zero values are no-ops and
// the zero address never gets a position, so mints only credit and burns only
// debit.
func (pm *PositionManager) ApplyTransfer(
	ctx context.Context,
	from, to, token common.Address,
	valueRaw *big.Int,
	ts time.Time,
) (TransferOutcome, error) {
	var out TransferOutcome
	if valueRaw == nil || valueRaw.Sign() == 0 {
		return out, nil
	}

	if to != event.ZeroAddress {
		pos, err := pm.GetOrCreatePosition(ctx, to, token)
		if err != nil {
			return out, err
		}
		next := NextOnCredit(pos, valueRaw, ts)
		if err := saveEntity(ctx, pm.positions, KindPosition, next.ID, next); err != nil {
			return out, err
		}
	}

	if from != event.ZeroAddress {
		pos, err := pm.GetOrCreatePosition(ctx, from, token)
		if err != nil {
			return out, err
		}
		next, clamped := NextOnDebit(pos, valueRaw, ts)
		if err := saveEntity(ctx, pm.positions, KindPosition, next.ID, next); err != nil {
			return out, err
		}
		out.SenderClamped = clamped
	}

	out.Applied = true
	return out, nil
}
