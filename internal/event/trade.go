package event

import (
	"fmt"
	"math/big"

	fpmath "MemeLedger/internal/math"

	"github.com/ethereum/go-ethereum/common"
)

// Side represents trade direction
type Side int32

const (
	SideBuy Side = iota + 1
	SideSell
)

// Venue is the mechanism that produced a trade.
type Venue int32

const (
	VenueCurve Venue = iota + 1
	VenueDEX
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY", "buy":
		return SideBuy, nil
	case "SELL", "sell":
		return SideSell, nil
	default:
		return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidEvent, s)
	}
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (v Venue) String() string {
	switch v {
	case VenueCurve:
		return "CURVE"
	case VenueDEX:
		return "DEX"
	default:
		return "UNKNOWN"
	}
}

func ParseVenue(s string) (Venue, error) {
	switch s {
	case "CURVE", "curve":
		return VenueCurve, nil
	case "DEX", "dex":
		return VenueDEX, nil
	default:
		return 0, fmt.Errorf("%w: unknown venue %q", ErrInvalidEvent, s)
	}
}

func (v Venue) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Venue) UnmarshalText(b []byte) error {
	p, err := ParseVenue(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// Trade is a buy or sell emitted by a bonding curve or the DEX factory.
// Idempotency key: txHash-logIndex, which is also the trade record id.
type Trade struct {
	LogRef
	Venue    Venue
	Side     Side
	User     common.Address
	Token    common.Address
	EthRaw   *big.Int // wei
	TokenRaw *big.Int // token base units
}

func (t *Trade) IdempotencyKey() string {
	return t.LogID()
}

func (t *Trade) EventType() EventType {
	return EventTypeTrade
}

func (t *Trade) Validate() error {
	if t.Side != SideBuy && t.Side != SideSell {
		return fmt.Errorf("%w: trade side %d", ErrInvalidEvent, t.Side)
	}
	if t.Venue != VenueCurve && t.Venue != VenueDEX {
		return fmt.Errorf("%w: trade venue %d", ErrInvalidEvent, t.Venue)
	}
	if err := fpmath.ValidateRaw(t.EthRaw); err != nil {
		return fmt.Errorf("%w: eth amount: %v", ErrInvalidEvent, err)
	}
	if err := fpmath.ValidateRaw(t.TokenRaw); err != nil {
		return fmt.Errorf("%w: token amount: %v", ErrInvalidEvent, err)
	}
	return nil
}
