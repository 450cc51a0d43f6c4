package event

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NewToken announces a token launched through the factory together with the
// bonding curve that prices it until it bonds.
type NewToken struct {
	LogRef
	Token        common.Address
	Creator      common.Address
	BondingCurve common.Address
	Name         string
	Symbol       string
	Decimals     uint8 // 0 means use the configured default
}

func (e *NewToken) IdempotencyKey() string {
	return "newtoken:" + AddressID(e.Token)
}

func (e *NewToken) EventType() EventType {
	return EventTypeNewToken
}

func (e *NewToken) Validate() error {
	if e.Token == (common.Address{}) {
		return fmt.Errorf("%w: new token with zero address", ErrInvalidEvent)
	}
	return nil
}

// Bonded marks a token as graduated from its curve.
type Bonded struct {
	LogRef
	Token common.Address
}

func (e *Bonded) IdempotencyKey() string {
	return "bonded:" + AddressID(e.Token)
}

func (e *Bonded) EventType() EventType {
	return EventTypeBonded
}

// PairCreated is emitted by the DEX factory when a trading pair is deployed.
type PairCreated struct {
	LogRef
	Token0 common.Address
	Token1 common.Address
	Pair   common.Address
}

func (e *PairCreated) IdempotencyKey() string {
	return "pair:" + AddressID(e.Pair)
}

func (e *PairCreated) EventType() EventType {
	return EventTypePairCreated
}
