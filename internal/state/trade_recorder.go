package state

import (
	"context"
	"fmt"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"

	"github.com/ethereum/go-ethereum/common"
)

// EthDecimals is the native currency's unit exponent.
const EthDecimals uint8 = 18

// DecimalsResolver returns the unit exponent of a token.
type DecimalsResolver interface {
	DecimalsFor(token common.Address) uint8
}

// DecimalsTable resolves from explicit overrides, falling back to Default.
type DecimalsTable struct {
	Default   uint8
	Overrides map[common.Address]uint8
}

func (dt DecimalsTable) DecimalsFor(token common.Address) uint8 {
	if d, ok := dt.Overrides[token]; ok {
		return d
	}
	if dt.Default == 0 {
		return 18
	}
	return dt.Default
}

// Resolve implements DecimalsLookup.
func (dt DecimalsTable) Resolve(_ context.Context, token common.Address) (uint8, error) {
	return dt.DecimalsFor(token), nil
}

// DecimalsLookup resolves a token's unit exponent at event time.
type DecimalsLookup interface {
	Resolve(ctx context.Context, token common.Address) (uint8, error)
}

// TokenDecimals prefers the exponent stored on the Token record and falls
// back to a static resolver for tokens this indexer never saw created.
type TokenDecimals struct {
	tokens   EntityStore[Token]
	fallback DecimalsResolver
}

func NewTokenDecimals(tokens EntityStore[Token], fallback DecimalsResolver) *TokenDecimals {
	if fallback == nil {
		fallback = DecimalsTable{Default: 18}
	}
	return &TokenDecimals{tokens: tokens, fallback: fallback}
}

func (td *TokenDecimals) Resolve(ctx context.Context, token common.Address) (uint8, error) {
	tok, ok, err := loadEntity(ctx, td.tokens, KindToken, event.AddressID(token))
	if err != nil {
		return 0, err
	}
	if ok && tok.Decimals != 0 {
		return tok.Decimals, nil
	}
	return td.fallback.DecimalsFor(token), nil
}

// TradeRecorder converts trade events into Trade records.
type TradeRecorder struct {
	trades   EntityStore[Trade]
	decimals DecimalsLookup
}

func NewTradeRecorder(trades EntityStore[Trade], decimals DecimalsLookup) *TradeRecorder {
	return &TradeRecorder{trades: trades, decimals: decimals}
}

// Record writes the Trade for e under txHash-logIndex. A repeated key
// overwrites the previous record. The returned fill is the reducer input.
func (r *TradeRecorder) Record(ctx context.Context, e *event.Trade) (*Trade, TradeFill, error) {
	if err := e.Validate(); err != nil {
		return nil, TradeFill{}, err
	}

	decimals, err := r.decimals.Resolve(ctx, e.Token)
	if err != nil {
		return nil, TradeFill{}, err
	}
	ethQty, err := fpmath.RawToDecimal(e.EthRaw, EthDecimals)
	if err != nil {
		return nil, TradeFill{}, fmt.Errorf("trade %s eth: %w", e.LogID(), err)
	}
	tokenQty, err := fpmath.RawToDecimal(e.TokenRaw, decimals)
	if err != nil {
		return nil, TradeFill{}, fmt.Errorf("trade %s tokens: %w", e.LogID(), err)
	}

	rec := &Trade{
		ID:          e.LogID(),
		TxHash:      e.TxHash,
		LogIndex:    e.LogIndex,
		BlockNumber: e.BlockNumber,
		Timestamp:   e.Timestamp,
		User:        e.User,
		Token:       e.Token,
		Side:        e.Side,
		Venue:       e.Venue,
		EthQty:      ethQty,
		TokenQty:    tokenQty,
	}

	if err := saveEntity(ctx, r.trades, KindTrade, rec.ID, rec); err != nil {
		return nil, TradeFill{}, err
	}

	fill := TradeFill{
		Side:      rec.Side,
		User:      rec.User,
		Token:     rec.Token,
		EthQty:    rec.EthQty,
		TokenQty:  rec.TokenQty,
		TokenRaw:  e.TokenRaw,
		Decimals:  decimals,
		Timestamp: rec.Timestamp,
	}
	return rec, fill, nil
}

func (r *TradeRecorder) GetTrade(ctx context.Context, id string) (*Trade, bool, error) {
	return loadEntity(ctx, r.trades, KindTrade, id)
}
