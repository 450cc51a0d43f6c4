package query

import (
	"context"
	"fmt"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"
	"MemeLedger/internal/state"

	"github.com/ethereum/go-ethereum/common"
)

// QueryService provides read-only access to the entity stores. Derived
// values such as unrealized PnL are computed at query time and never stored.
type QueryService struct {
	stores   state.Stores
	decimals *state.TokenDecimals
}

// NewQueryService reads token decimals from the stored Token and falls back
// to the given resolver (18 when nil).
func NewQueryService(stores state.Stores, fallback state.DecimalsResolver) *QueryService {
	return &QueryService{stores: stores, decimals: state.NewTokenDecimals(stores.Tokens, fallback)}
}

// GetToken returns a token's lifecycle and latest price.
func (qs *QueryService) GetToken(ctx context.Context, addr common.Address) (*TokenResponse, error) {
	tok, err := load(ctx, qs.stores.Tokens, state.KindToken, event.AddressID(addr))
	if err != nil {
		return nil, err
	}

	resp := &TokenResponse{
		Address:        tok.EntityID(),
		Creator:        event.AddressID(tok.Creator),
		BondingCurve:   event.AddressID(tok.BondingCurve),
		Name:           tok.Name,
		Symbol:         tok.Symbol,
		Decimals:       tok.Decimals,
		Lifecycle:      tok.Lifecycle().String(),
		Bonded:         tok.Bonded,
		CreatedAt:      tok.CreatedAt,
		UpdatedAt:      tok.UpdatedAt,
		BondedAt:       tok.BondedAt,
		LatestPriceEth: tok.LatestPriceEth,
	}
	if tok.Pair != nil {
		pair := event.AddressID(*tok.Pair)
		resp.Pair = &pair
	}
	return resp, nil
}

// GetTrade returns one trade by its "txHash-logIndex" id.
func (qs *QueryService) GetTrade(ctx context.Context, id string) (*TradeResponse, error) {
	tr, err := load(ctx, qs.stores.Trades, state.KindTrade, id)
	if err != nil {
		return nil, err
	}
	return &TradeResponse{
		ID:          tr.ID,
		TxHash:      tr.TxHash.Hex(),
		LogIndex:    tr.LogIndex,
		BlockNumber: tr.BlockNumber,
		Timestamp:   tr.Timestamp,
		User:        event.AddressID(tr.User),
		Token:       event.AddressID(tr.Token),
		Side:        tr.Side.String(),
		Venue:       tr.Venue.String(),
		EthQty:      tr.EthQty,
		TokenQty:    tr.TokenQty,
	}, nil
}

// GetPosition returns a user's position in a token with unrealized PnL
// marked to the token's latest trade price.
func (qs *QueryService) GetPosition(ctx context.Context, user, token common.Address) (*PositionResponse, error) {
	pos, err := load(ctx, qs.stores.Positions, state.KindPosition, state.PositionID(user, token))
	if err != nil {
		return nil, err
	}

	decimals, err := qs.decimals.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	held, err := pos.Held(decimals)
	if err != nil {
		return nil, fmt.Errorf("position %s: %w", pos.ID, err)
	}

	resp := &PositionResponse{
		ID:                 pos.ID,
		User:               event.AddressID(pos.User),
		Token:              event.AddressID(pos.Token),
		BalanceRaw:         pos.Balance.String(),
		Balance:            held,
		AvgCostEthPerToken: pos.AvgCostEthPerToken,
		TotalEthBought:     pos.TotalEthBought,
		TotalTokensBought:  pos.TotalTokensBought,
		TotalEthSold:       pos.TotalEthSold,
		TotalTokensSold:    pos.TotalTokensSold,
		RealizedPnLEth:     pos.RealizedPnLEth,
		UpdatedAt:          pos.UpdatedAt,
	}

	// A position can exist for a token the indexer never saw created
	// (DEX trades); it then has no price to mark against.
	tok, ok, err := qs.stores.Tokens.Load(ctx, event.AddressID(token))
	if err != nil {
		return nil, &state.StoreError{Op: "load", Kind: state.KindToken, ID: event.AddressID(token), Err: err}
	}
	if ok && tok.LatestPriceEth != nil {
		price := *tok.LatestPriceEth
		upnl := fpmath.ComputeUnrealizedPnL(price, pos.AvgCostEthPerToken, held)
		resp.LatestPriceEth = &price
		resp.UnrealizedPnLEth = &upnl
	}
	return resp, nil
}

func (qs *QueryService) GetHolder(ctx context.Context, token, holder common.Address) (*HolderResponse, error) {
	h, err := load(ctx, qs.stores.Holders, state.KindTokenHolder, state.HolderID(token, holder))
	if err != nil {
		return nil, err
	}
	return &HolderResponse{
		ID:        h.ID,
		Token:     event.AddressID(h.Token),
		Holder:    event.AddressID(h.Holder),
		Balance:   h.Balance,
		UpdatedAt: h.UpdatedAt,
	}, nil
}

func (qs *QueryService) GetUser(ctx context.Context, addr common.Address) (*UserResponse, error) {
	u, err := load(ctx, qs.stores.Users, state.KindUser, event.AddressID(addr))
	if err != nil {
		return nil, err
	}
	return &UserResponse{Address: u.EntityID(), FirstSeenAt: u.FirstSeenAt, UpdatedAt: u.UpdatedAt}, nil
}

// load maps a miss onto state.ErrEntityNotFound.
func load[T any](ctx context.Context, s state.EntityStore[T], kind, id string) (*T, error) {
	rec, ok, err := s.Load(ctx, id)
	if err != nil {
		return nil, &state.StoreError{Op: "load", Kind: kind, ID: id, Err: err}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", state.ErrEntityNotFound, kind, id)
	}
	return rec, nil
}
