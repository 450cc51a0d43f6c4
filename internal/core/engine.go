package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"
	"MemeLedger/internal/observability"
	"MemeLedger/internal/state"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// TransferMode selects which balances ERC20 transfers update.
type TransferMode int32

const (
	// TransferToHolders keeps transfer-driven balances in TokenHolder only.
	TransferToHolders TransferMode = iota
	// TransferToPositions applies transfers to Position.balance as well as
	// trades, so a trade that also emits a Transfer moves the balance twice.
	TransferToPositions
	TransferToBoth
)

func (m TransferMode) String() string {
	switch m {
	case TransferToHolders:
		return "holders"
	case TransferToPositions:
		return "positions"
	case TransferToBoth:
		return "both"
	default:
		return "unknown"
	}
}

func ParseTransferMode(s string) (TransferMode, error) {
	switch s {
	case "holders", "":
		return TransferToHolders, nil
	case "positions":
		return TransferToPositions, nil
	case "both":
		return TransferToBoth, nil
	default:
		return 0, fmt.Errorf("unknown transfer mode %q", s)
	}
}

// ProcessorConfig holds the processor's tunables.
type ProcessorConfig struct {
	BaseAddress  common.Address
	Decimals     state.DecimalsResolver
	LRUSize      int
	TransferMode TransferMode
}

// Processor applies events one at a time. Each event's loads and saves
// complete before the next event starts.
type Processor struct {
	mu sync.Mutex

	uow       *state.UnitOfWork
	recorder  *state.TradeRecorder
	positions *state.PositionManager
	holders   *state.HolderTracker
	tokens    *state.TokenTracker
	users     *state.UserRegistry
	decimals  state.DecimalsLookup

	idempotency  *IdempotencyChecker
	order        *OrderMonitor
	transferMode TransferMode

	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewProcessor(
	stores state.Stores,
	subscriber state.Subscriber,
	cfg ProcessorConfig,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Processor {
	decimals := cfg.Decimals
	if decimals == nil {
		decimals = state.DecimalsTable{Default: 18}
	}
	lruSize := cfg.LRUSize
	if lruSize <= 0 {
		lruSize = 100_000
	}

	// Handlers see the unit of work; only Commit reaches the backend.
	uow := state.NewUnitOfWork(stores)
	view := uow.Stores()
	users := state.NewUserRegistry(view.Users)
	lookup := state.NewTokenDecimals(view.Tokens, decimals)

	return &Processor{
		uow:          uow,
		recorder:     state.NewTradeRecorder(view.Trades, lookup),
		positions:    state.NewPositionManager(view.Positions),
		holders:      state.NewHolderTracker(view.Holders, users),
		tokens:       state.NewTokenTracker(view.Tokens, subscriber, decimals, cfg.BaseAddress),
		users:        users,
		decimals:     lookup,
		idempotency:  NewIdempotencyChecker(lruSize, stores.Processed, metrics),
		order:        NewOrderMonitor(),
		transferMode: cfg.TransferMode,
		metrics:      metrics,
		log:          log,
	}
}

// ProcessEvent is the main processing pipeline:
// order check, dedup, dispatch, commit, metrics.
// Handlers write into a unit of work that is committed together with the
// processed key. Errors other than an unknown-entity miss discard it, so
// nothing of the event is stored and a redelivery applies it from scratch.
func (p *Processor) ProcessEvent(ctx context.Context, evt event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	eventType := evt.EventType().String()
	key := evt.IdempotencyKey()
	ref := evt.Ref()

	if p.order.Observe(ref) {
		if p.metrics != nil {
			p.metrics.EventOutOfOrder.WithLabelValues(eventType).Inc()
		}
		p.log.Warn().
			Str("event_type", eventType).
			Str("key", key).
			Uint64("block", ref.BlockNumber).
			Uint("log_index", ref.LogIndex).
			Uint64("last_block", p.order.LastBlock()).
			Msg("event arrived out of chain order")
	}

	dup, err := p.idempotency.IsDuplicate(ctx, eventType, key)
	if err != nil {
		return p.fail(eventType, key, err)
	}
	if dup {
		p.reject(eventType, "duplicate")
		p.log.Debug().Str("event_type", eventType).Str("key", key).Msg("duplicate event skipped")
		return nil
	}

	p.uow.Reset()
	if err := p.dispatch(ctx, evt); err != nil {
		if !errors.Is(err, state.ErrEntityNotFound) {
			p.uow.Reset()
			return p.fail(eventType, key, err)
		}
		p.reject(eventType, "unknown_entity")
		if p.metrics != nil {
			p.metrics.UnknownTokenEvents.WithLabelValues(eventType).Inc()
		}
		p.log.Warn().Err(err).Str("event_type", eventType).Str("key", key).Msg("event for unknown entity dropped")
	}

	if err := p.uow.Commit(ctx, eventType, key); err != nil {
		return p.fail(eventType, key, err)
	}
	p.idempotency.Remember(eventType, key)

	if p.metrics != nil {
		p.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		p.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		p.metrics.CoreLastBlock.Set(float64(p.order.LastBlock()))
	}
	return nil
}

func (p *Processor) dispatch(ctx context.Context, evt event.Event) error {
	switch e := evt.(type) {
	case *event.NewToken:
		tok, err := p.tokens.HandleNewToken(ctx, e)
		if err != nil {
			return err
		}
		p.log.Info().Str("token", tok.EntityID()).Str("symbol", tok.Symbol).Msg("token created")
		return nil

	case *event.Bonded:
		tok, err := p.tokens.HandleBonded(ctx, e)
		if err != nil {
			return err
		}
		p.log.Info().Str("token", tok.EntityID()).Msg("token bonded")
		return nil

	case *event.PairCreated:
		tok, err := p.tokens.HandlePairCreated(ctx, e)
		if err != nil {
			return err
		}
		if tok != nil {
			p.log.Info().Str("token", tok.EntityID()).Str("pair", event.AddressID(e.Pair)).Msg("token paired")
		}
		return nil

	case *event.Trade:
		return p.handleTrade(ctx, e)

	case *event.Transfer:
		return p.handleTransfer(ctx, e)

	default:
		return fmt.Errorf("%w: unhandled event type %T", event.ErrInvalidEvent, evt)
	}
}

// handleTrade records the trade, applies it to the position, then updates
// the token's latest price.
func (p *Processor) handleTrade(ctx context.Context, e *event.Trade) error {
	rec, fill, err := p.recorder.Record(ctx, e)
	if err != nil {
		return err
	}

	if err := p.users.Touch(ctx, e.User, e.Timestamp); err != nil {
		return err
	}

	pos, out, err := p.positions.ApplyTrade(ctx, fill)
	if err != nil {
		return err
	}
	if out.Clamped {
		p.clamped("position", "sell", pos.ID)
	}

	price, ok, err := fpmath.ComputePrice(rec.EthQty, rec.TokenQty)
	if err != nil {
		return err
	}
	var latest *fpmath.Decimal
	if ok {
		latest = &price
	}
	return p.tokens.TouchPrice(ctx, e.Token, latest, e.Timestamp)
}

func (p *Processor) handleTransfer(ctx context.Context, e *event.Transfer) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ValueRaw.Sign() == 0 {
		if p.metrics != nil {
			p.metrics.ZeroValueTransfers.Inc()
		}
		return nil
	}

	if p.transferMode == TransferToHolders || p.transferMode == TransferToBoth {
		decimals, err := p.decimals.Resolve(ctx, e.Token)
		if err != nil {
			return err
		}
		out, err := p.holders.ApplyTransfer(ctx, e, decimals)
		if err != nil {
			return err
		}
		if out.SenderClamped {
			p.clamped("token_holder", "transfer", state.HolderID(e.Token, e.From))
		}
	}

	if p.transferMode == TransferToPositions || p.transferMode == TransferToBoth {
		out, err := p.positions.ApplyTransfer(ctx, e.From, e.To, e.Token, e.ValueRaw, e.Timestamp)
		if err != nil {
			return err
		}
		if out.SenderClamped {
			p.clamped("position", "transfer", state.PositionID(e.From, e.Token))
		}
	}
	return nil
}

func (p *Processor) clamped(entity, cause, id string) {
	if p.metrics != nil {
		p.metrics.BalanceClamps.WithLabelValues(entity, cause).Inc()
	}
	p.log.Warn().Str("entity", entity).Str("cause", cause).Str("id", id).Msg("balance floored at zero")
}

func (p *Processor) reject(eventType, reason string) {
	if p.metrics != nil {
		p.metrics.CoreEventsRejected.WithLabelValues(eventType, reason).Inc()
	}
}

func (p *Processor) fail(eventType, key string, err error) error {
	if p.metrics != nil {
		p.metrics.CoreEventsFailed.WithLabelValues(eventType).Inc()
	}
	p.log.Error().Err(err).Str("event_type", eventType).Str("key", key).Msg("event processing failed")
	return fmt.Errorf("process %s %s: %w", eventType, key, err)
}
