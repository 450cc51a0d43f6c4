package state

import (
	"fmt"
	"math/big"
	"time"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"

	"github.com/ethereum/go-ethereum/common"
)

// Position is a user's cost-basis account in one token.
// Balance is in raw token units and never negative.
type Position struct {
	ID                 string         `json:"id"` // user-token
	User               common.Address `json:"user"`
	Token              common.Address `json:"token"`
	Balance            *big.Int       `json:"balance"`
	AvgCostEthPerToken fpmath.Decimal `json:"avgCostEthPerToken"`
	TotalEthBought     fpmath.Decimal `json:"totalEthBought"`
	TotalTokensBought  fpmath.Decimal `json:"totalTokensBought"`
	TotalEthSold       fpmath.Decimal `json:"totalEthSold"`
	TotalTokensSold    fpmath.Decimal `json:"totalTokensSold"`
	RealizedPnLEth     fpmath.Decimal `json:"realizedPnlEth"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

func PositionID(user, token common.Address) string {
	return event.AddressID(user) + "-" + event.AddressID(token)
}

// NewPosition returns a position with every numeric field at zero.
func NewPosition(user, token common.Address) *Position {
	return &Position{
		ID:      PositionID(user, token),
		User:    user,
		Token:   token,
		Balance: new(big.Int),
	}
}

func (p *Position) EntityID() string {
	return p.ID
}

func (p *Position) Clone() *Position {
	c := *p
	if p.Balance != nil {
		c.Balance = new(big.Int).Set(p.Balance)
	} else {
		c.Balance = new(big.Int)
	}
	return &c
}

// IsFlat returns true if nothing is held
func (p *Position) IsFlat() bool {
	return p.Balance == nil || p.Balance.Sign() == 0
}

// Held returns the balance as a decimal quantity.
func (p *Position) Held(decimals uint8) (fpmath.Decimal, error) {
	return fpmath.RawToDecimal(p.Balance, decimals)
}

// TradeFill is a recorded trade as the reducer sees it.
type TradeFill struct {
	Side      event.Side
	User      common.Address
	Token     common.Address
	EthQty    fpmath.Decimal
	TokenQty  fpmath.Decimal
	TokenRaw  *big.Int
	Decimals  uint8
	Timestamp time.Time
}

// TradeOutcome reports what a fill did beyond the new position.
type TradeOutcome struct {
	RealizedPnL fpmath.Decimal // zero for buys
	Clamped     bool           // sell exceeded balance; balance floored at zero
}

// NextOnTrade is the pure trade transition. prev is not modified.
//
// BUY blends the purchase into the average cost and adds to the balance.
// SELL realizes ethQty - avgCost*tokenQty and subtracts from the balance
// with a floor at zero. The average cost is unchanged by sells.
func NextOnTrade(prev *Position, f TradeFill) (*Position, TradeOutcome, error) {
	next := prev.Clone()
	var out TradeOutcome

	switch f.Side {
	case event.SideBuy:
		held, err := next.Held(f.Decimals)
		if err != nil {
			return nil, out, fmt.Errorf("position %s held: %w", next.ID, err)
		}
		avg, err := fpmath.ComputeAvgCost(next.AvgCostEthPerToken, held, f.EthQty, f.TokenQty)
		if err != nil {
			return nil, out, fmt.Errorf("position %s avg cost: %w", next.ID, err)
		}
		next.AvgCostEthPerToken = avg
		next.TotalEthBought = next.TotalEthBought.Add(f.EthQty)
		next.TotalTokensBought = next.TotalTokensBought.Add(f.TokenQty)
		next.Balance = fpmath.AddRaw(next.Balance, f.TokenRaw)

	case event.SideSell:
		pnl := fpmath.ComputeRealizedPnL(f.EthQty, next.AvgCostEthPerToken, f.TokenQty)
		next.RealizedPnLEth = next.RealizedPnLEth.Add(pnl)
		next.TotalEthSold = next.TotalEthSold.Add(f.EthQty)
		next.TotalTokensSold = next.TotalTokensSold.Add(f.TokenQty)
		next.Balance, out.Clamped = fpmath.SubRawFloor(next.Balance, f.TokenRaw)
		out.RealizedPnL = pnl

	default:
		return nil, out, fmt.Errorf("%w: side %d", event.ErrInvalidEvent, f.Side)
	}

	next.UpdatedAt = f.Timestamp
	return next, out, nil
}

// NextOnCredit adds transferred units. Cost basis and PnL are untouched.
func NextOnCredit(prev *Position, raw *big.Int, ts time.Time) *Position {
	next := prev.Clone()
	next.Balance = fpmath.AddRaw(next.Balance, raw)
	next.UpdatedAt = ts
	return next
}

// NextOnDebit removes transferred units with a floor at zero.
func NextOnDebit(prev *Position, raw *big.Int, ts time.Time) (*Position, bool) {
	next := prev.Clone()
	var clamped bool
	next.Balance, clamped = fpmath.SubRawFloor(next.Balance, raw)
	next.UpdatedAt = ts
	return next, clamped
}
