package state

import (
	"time"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"

	"github.com/ethereum/go-ethereum/common"
)

// LifecycleState tracks a token's progress from curve to DEX
type LifecycleState int32

const (
	LifecycleCreated LifecycleState = iota
	LifecycleBonded
)

func (ls LifecycleState) String() string {
	switch ls {
	case LifecycleCreated:
		return "Created"
	case LifecycleBonded:
		return "Bonded"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates state transitions. Bonding is one-way and fires once.
func (ls LifecycleState) CanTransitionTo(next LifecycleState) bool {
	return ls == LifecycleCreated && next == LifecycleBonded
}

// Token is the per-contract metadata record.
type Token struct {
	ID             common.Address  `json:"id"`
	Creator        common.Address  `json:"creator"`
	BondingCurve   common.Address  `json:"bondingCurve"`
	Pair           *common.Address `json:"pair,omitempty"`
	Name           string          `json:"name,omitempty"`
	Symbol         string          `json:"symbol,omitempty"`
	Decimals       uint8           `json:"decimals"`
	Bonded         bool            `json:"bonded"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	BondedAt       *time.Time      `json:"bondedAt,omitempty"`
	LatestPriceEth *fpmath.Decimal `json:"latestPriceEth,omitempty"`
}

func (t *Token) EntityID() string {
	return event.AddressID(t.ID)
}

func (t *Token) Lifecycle() LifecycleState {
	if t.Bonded {
		return LifecycleBonded
	}
	return LifecycleCreated
}

func (t *Token) Clone() *Token {
	c := *t
	if t.Pair != nil {
		p := *t.Pair
		c.Pair = &p
	}
	if t.BondedAt != nil {
		b := *t.BondedAt
		c.BondedAt = &b
	}
	if t.LatestPriceEth != nil {
		l := *t.LatestPriceEth
		c.LatestPriceEth = &l
	}
	return &c
}

// User is created the first time an address trades or receives tokens.
// UpdatedAt follows its latest trade or receipt.
type User struct {
	ID          common.Address `json:"id"`
	FirstSeenAt time.Time      `json:"firstSeenAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (u *User) EntityID() string {
	return event.AddressID(u.ID)
}

func (u *User) Clone() *User {
	c := *u
	return &c
}
