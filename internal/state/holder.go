package state

import (
	"context"
	"time"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"

	"github.com/ethereum/go-ethereum/common"
)

// TokenHolder is the transfer-driven balance of one holder in one token.
type TokenHolder struct {
	ID        string         `json:"id"` // token-holder
	Token     common.Address `json:"token"`
	Holder    common.Address `json:"holder"`
	Balance   fpmath.Decimal `json:"balance"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func HolderID(token, holder common.Address) string {
	return event.AddressID(token) + "-" + event.AddressID(holder)
}

func (h *TokenHolder) EntityID() string {
	return h.ID
}

func (h *TokenHolder) Clone() *TokenHolder {
	c := *h
	return &c
}

// HolderTracker maintains TokenHolder balances from ERC20 transfers.
type HolderTracker struct {
	holders EntityStore[TokenHolder]
	users   *UserRegistry
}

func NewHolderTracker(holders EntityStore[TokenHolder], users *UserRegistry) *HolderTracker {
	return &HolderTracker{holders: holders, users: users}
}

func (ht *HolderTracker) GetHolder(ctx context.Context, token, holder common.Address) (*TokenHolder, bool, error) {
	return loadEntity(ctx, ht.holders, KindTokenHolder, HolderID(token, holder))
}

// ApplyTransfer debits the sender when a holder record exists for it, then
// credits the receiver, creating the record on first receipt. Zero-value
// transfers create and mutate nothing.
func (ht *HolderTracker) ApplyTransfer(
	ctx context.Context,
	t *event.Transfer,
	decimals uint8,
) (TransferOutcome, error) {
	var out TransferOutcome
	if t.ValueRaw == nil || t.ValueRaw.Sign() == 0 {
		return out, nil
	}

	amount, err := fpmath.RawToDecimal(t.ValueRaw, decimals)
	if err != nil {
		return out, err
	}
	ts := t.Timestamp

	if t.From != event.ZeroAddress {
		sender, ok, err := ht.GetHolder(ctx, t.Token, t.From)
		if err != nil {
			return out, err
		}
		if ok {
			next := sender.Clone()
			next.Balance = next.Balance.Sub(amount)
			if next.Balance.IsNegative() {
				next.Balance = fpmath.Zero()
				out.SenderClamped = true
			}
			next.UpdatedAt = ts
			if err := saveEntity(ctx, ht.holders, KindTokenHolder, next.ID, next); err != nil {
				return out, err
			}
		}
	}

	if t.To != event.ZeroAddress {
		if err := ht.users.Touch(ctx, t.To, ts); err != nil {
			return out, err
		}
		receiver, ok, err := ht.GetHolder(ctx, t.Token, t.To)
		if err != nil {
			return out, err
		}
		if !ok {
			receiver = &TokenHolder{
				ID:     HolderID(t.Token, t.To),
				Token:  t.Token,
				Holder: t.To,
			}
		}
		next := receiver.Clone()
		next.Balance = next.Balance.Add(amount)
		next.UpdatedAt = ts
		if err := saveEntity(ctx, ht.holders, KindTokenHolder, next.ID, next); err != nil {
			return out, err
		}
	}

	out.Applied = true
	return out, nil
}

// UserRegistry creates User records on first sight.
type UserRegistry struct {
	users EntityStore[User]
}

func NewUserRegistry(users EntityStore[User]) *UserRegistry {
	return &UserRegistry{users: users}
}

// Touch creates the user on first sight and otherwise moves UpdatedAt
// forward to ts. FirstSeenAt never changes.
func (ur *UserRegistry) Touch(ctx context.Context, addr common.Address, ts time.Time) error {
	id := event.AddressID(addr)
	u, ok, err := loadEntity(ctx, ur.users, KindUser, id)
	if err != nil {
		return err
	}
	if !ok {
		return saveEntity(ctx, ur.users, KindUser, id, &User{ID: addr, FirstSeenAt: ts, UpdatedAt: ts})
	}
	if !ts.After(u.UpdatedAt) {
		return nil
	}
	next := u.Clone()
	next.UpdatedAt = ts
	return saveEntity(ctx, ur.users, KindUser, id, next)
}

func (ur *UserRegistry) GetUser(ctx context.Context, addr common.Address) (*User, bool, error) {
	return loadEntity(ctx, ur.users, KindUser, event.AddressID(addr))
}
