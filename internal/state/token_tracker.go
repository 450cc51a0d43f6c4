package state

import (
	"context"
	"fmt"
	"time"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"

	"github.com/ethereum/go-ethereum/common"
)

// TokenTracker owns the Token lifecycle: creation, bonding, pair linkage
// and the denormalized latest price.
type TokenTracker struct {
	tokens     EntityStore[Token]
	subscriber Subscriber
	decimals   DecimalsResolver
	base       common.Address
}

func NewTokenTracker(
	tokens EntityStore[Token],
	subscriber Subscriber,
	decimals DecimalsResolver,
	base common.Address,
) *TokenTracker {
	return &TokenTracker{
		tokens:     tokens,
		subscriber: subscriber,
		decimals:   decimals,
		base:       base,
	}
}

func (tt *TokenTracker) GetToken(ctx context.Context, token common.Address) (*Token, bool, error) {
	return loadEntity(ctx, tt.tokens, KindToken, event.AddressID(token))
}

// HandleNewToken creates the token and starts watching its transfer logs and
// its curve's trades. A repeated creation keeps the original identity and
// createdAt and only fills in metadata that was missing.
func (tt *TokenTracker) HandleNewToken(ctx context.Context, e *event.NewToken) (*Token, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	tok, ok, err := tt.GetToken(ctx, e.Token)
	if err != nil {
		return nil, err
	}

	if !ok {
		decimals := e.Decimals
		if decimals == 0 {
			decimals = tt.decimals.DecimalsFor(e.Token)
		}
		tok = &Token{
			ID:           e.Token,
			Creator:      e.Creator,
			BondingCurve: e.BondingCurve,
			Name:         e.Name,
			Symbol:       e.Symbol,
			Decimals:     decimals,
			CreatedAt:    e.Timestamp,
		}
	} else {
		tok = tok.Clone()
		if tok.Name == "" {
			tok.Name = e.Name
		}
		if tok.Symbol == "" {
			tok.Symbol = e.Symbol
		}
	}
	tok.UpdatedAt = e.Timestamp

	if err := saveEntity(ctx, tt.tokens, KindToken, tok.EntityID(), tok); err != nil {
		return nil, err
	}

	if err := watchToken(ctx, tt.subscriber, e.Token, e.BondingCurve); err != nil {
		return nil, err
	}
	return tok, nil
}

func watchToken(ctx context.Context, sub Subscriber, token, curve common.Address) error {
	if err := sub.Watch(ctx, token, WatchTransfers); err != nil {
		return fmt.Errorf("watch token %s: %w", event.AddressID(token), err)
	}
	if curve != event.ZeroAddress {
		if err := sub.Watch(ctx, curve, WatchCurveTrades); err != nil {
			return fmt.Errorf("watch curve %s: %w", event.AddressID(curve), err)
		}
	}
	return nil
}

// ResubscribeTokens re-issues the watches HandleNewToken made for every
// stored token. Run it at startup: a NewToken replayed after a restart is a
// duplicate and never reaches HandleNewToken again.
func ResubscribeTokens(ctx context.Context, tokens EntityStore[Token], sub Subscriber) (int, error) {
	lister, ok := tokens.(Lister[Token])
	if !ok {
		return 0, fmt.Errorf("token store %T cannot list records", tokens)
	}
	all, err := lister.List(ctx)
	if err != nil {
		return 0, &StoreError{Op: "load", Kind: KindToken, ID: "*", Err: err}
	}
	for _, tok := range all {
		if err := watchToken(ctx, sub, tok.ID, tok.BondingCurve); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}

// HandleBonded moves the token to Bonded. An unknown token yields
// ErrEntityNotFound; an already bonded token is returned unchanged.
func (tt *TokenTracker) HandleBonded(ctx context.Context, e *event.Bonded) (*Token, error) {
	tok, ok, err := tt.GetToken(ctx, e.Token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("bonded token %s: %w", event.AddressID(e.Token), ErrEntityNotFound)
	}
	if !tok.Lifecycle().CanTransitionTo(LifecycleBonded) {
		return tok, nil
	}

	next := tok.Clone()
	next.Bonded = true
	bondedAt := e.Timestamp
	next.BondedAt = &bondedAt
	next.UpdatedAt = e.Timestamp

	if err := saveEntity(ctx, tt.tokens, KindToken, next.EntityID(), next); err != nil {
		return nil, err
	}
	return next, nil
}

// PairedToken classifies a pair against the base asset. It returns the
// non-base side when exactly one side is the base.
func PairedToken(base, token0, token1 common.Address) (common.Address, bool) {
	switch {
	case token0 == base && token1 != base:
		return token1, true
	case token1 == base && token0 != base:
		return token0, true
	default:
		return common.Address{}, false
	}
}

// HandlePairCreated links the non-base token to its pair. Pairs that do not
// include the base exactly once, and tokens this indexer never saw created,
// are left alone and return nil.
func (tt *TokenTracker) HandlePairCreated(ctx context.Context, e *event.PairCreated) (*Token, error) {
	other, ok := PairedToken(tt.base, e.Token0, e.Token1)
	if !ok {
		return nil, nil
	}

	tok, found, err := tt.GetToken(ctx, other)
	if err != nil || !found {
		return nil, err
	}

	next := tok.Clone()
	pair := e.Pair
	next.Pair = &pair
	next.UpdatedAt = e.Timestamp

	if err := saveEntity(ctx, tt.tokens, KindToken, next.EntityID(), next); err != nil {
		return nil, err
	}
	return next, nil
}

// TouchPrice records the last traded price. A nil price only bumps
// updatedAt. Unknown tokens are skipped.
func (tt *TokenTracker) TouchPrice(ctx context.Context, token common.Address, price *fpmath.Decimal, ts time.Time) error {
	tok, ok, err := tt.GetToken(ctx, token)
	if err != nil || !ok {
		return err
	}

	next := tok.Clone()
	if price != nil {
		p := *price
		next.LatestPriceEth = &p
	}
	next.UpdatedAt = ts
	return saveEntity(ctx, tt.tokens, KindToken, next.EntityID(), next)
}
